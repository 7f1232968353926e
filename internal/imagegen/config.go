package imagegen

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"visiond/internal/artifact"
	"visiond/internal/device"
	"visiond/internal/events"
	"visiond/internal/slot"
	"visiond/internal/tasks"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultResultPrefix = "/result/"
)

// Config encapsulates all tunables for Orchestrator construction.
type Config struct {
	// Loader builds pipelines; nil selects UnavailableLoader.
	Loader Loader
	// Device clears caches and reports memory; nil selects device.None.
	Device device.Device
	// Artifacts stores {task_id}.png results. Required.
	Artifacts *artifact.Store
	// HistorySize bounds the recent-task list in admin status.
	HistorySize int
	// DrainTimeout bounds how long a model switch waits for in-flight
	// generations on the outgoing pipeline. Zero waits for all of them.
	DrainTimeout time.Duration
	// ResultPrefix is joined with the task id to form result_url.
	ResultPrefix string
	Publisher    events.Publisher
	Logger       *zerolog.Logger
	// Clock and NewID are overridable for tests.
	Clock func() time.Time
	NewID func() string
}

// New constructs an Orchestrator from Config.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Artifacts == nil {
		return nil, errors.New("imagegen: artifact store is required")
	}
	o := &Orchestrator{
		artifacts:    cfg.Artifacts,
		device:       cfg.Device,
		pub:          events.OrNoop(cfg.Publisher),
		log:          zerolog.Nop(),
		resultPrefix: cfg.ResultPrefix,
		workers:      make(map[string]*workerHandle),
	}
	if cfg.Logger != nil {
		o.log = cfg.Logger.With().Str("component", "imagegen").Logger()
	}
	if o.device == nil {
		o.device = device.None{}
	}
	if o.resultPrefix == "" {
		o.resultPrefix = defaultResultPrefix
	}
	loader := cfg.Loader
	if loader == nil {
		loader = UnavailableLoader("")
	}
	o.store = tasks.NewStore(tasks.StoreConfig{
		HistorySize: cfg.HistorySize,
		Logger:      &o.log,
		Clock:       cfg.Clock,
		NewID:       cfg.NewID,
	})
	o.slot = slot.New(slot.Config[Pipeline]{
		Name:         "imagegen",
		Loader:       loader,
		Cache:        o.device,
		DrainTimeout: cfg.DrainTimeout,
		Publisher:    o.pub,
		Logger:       &o.log,
	})
	return o, nil
}
