// Package inject wires the services from configuration.
package inject

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/do"

	"visiond/internal/artifact"
	"visiond/internal/config"
	"visiond/internal/device"
	"visiond/internal/events"
	"visiond/internal/httpapi"
	"visiond/internal/imagegen"
	"visiond/internal/logging"
	"visiond/internal/registry"
	"visiond/internal/runtime"
	"visiond/internal/segment"
)

// Named services. The injector keys named services by name alone, so names
// are unique across types.
const (
	ResultStore       = "store.results"
	UploadStore       = "store.uploads"
	ProcessedStore    = "store.processed"
	ImageGenRegistry  = "registry.imagegen"
	SegmentRegistry   = "registry.segment"
	ImageGenHandler   = "handler.imagegen"
	SegmentHandler    = "handler.segment"
	mirrorPrefixImage = "imagegen/"
	mirrorPrefixSeg   = "segment/"
)

// Setup registers every provider; nothing is built until invoked.
func Setup(ctx context.Context, cfg config.Config) *do.Injector {
	log := logging.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug().Msg(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[config.Config](injector, cfg)
	do.ProvideValue[*zerolog.Logger](injector, log)

	do.Provide[events.Publisher](injector, providePublisher)
	do.Provide[*runtime.Client](injector, provideRuntime)
	do.Provide[device.Device](injector, provideDevice)
	do.Provide[artifact.Mirror](injector, func(i *do.Injector) (artifact.Mirror, error) {
		return provideMirror(ctx, i)
	})

	do.ProvideNamed[*registry.Registry](injector, ImageGenRegistry, func(i *do.Injector) (*registry.Registry, error) {
		g := cfg.ImageGen
		return registry.New(registry.Config{
			WeightsDir:     g.WeightsDir,
			FastCheckpoint: g.FastCheckpoint,
			FastRepo:       g.FastRepo,
			SlowRepo:       g.SlowRepo,
			CacheDir:       g.CacheDir,
			HFToken:        g.HFToken,
		}), nil
	})
	do.ProvideNamed[*registry.Registry](injector, SegmentRegistry, func(i *do.Injector) (*registry.Registry, error) {
		return registry.New(registry.Config{WeightsDir: cfg.Segment.WeightsDir}), nil
	})

	do.ProvideNamed[*artifact.Store](injector, ResultStore, storeProvider(cfg.ImageGen.OutputDir, mirrorPrefixImage, true))
	do.ProvideNamed[*artifact.Store](injector, UploadStore, storeProvider(cfg.Segment.UploadDir, "", false))
	do.ProvideNamed[*artifact.Store](injector, ProcessedStore, storeProvider(cfg.Segment.ProcessedDir, mirrorPrefixSeg, true))

	do.Provide[*imagegen.Orchestrator](injector, provideOrchestrator)
	do.Provide[*segment.Service](injector, provideSegment)

	do.ProvideNamed[http.Handler](injector, ImageGenHandler, func(i *do.Injector) (http.Handler, error) {
		configureHTTP(cfg, log)
		return httpapi.NewImageMux(do.MustInvoke[*imagegen.Orchestrator](i)), nil
	})
	do.ProvideNamed[http.Handler](injector, SegmentHandler, func(i *do.Injector) (http.Handler, error) {
		configureHTTP(cfg, log)
		return httpapi.NewSegmentMux(do.MustInvoke[*segment.Service](i)), nil
	})

	return injector
}

// Preflight logs the local checkpoints in weightsDir and whether the model
// runtime answers. It never fails startup; requests degrade to errors instead.
func Preflight(ctx context.Context, i *do.Injector, weightsDir string) {
	log := do.MustInvoke[*zerolog.Logger](i)
	if names, err := registry.ScanWeights(weightsDir); err != nil {
		log.Debug().Err(err).Str("dir", weightsDir).Msg("weights scan failed")
	} else {
		log.Info().Str("dir", weightsDir).Strs("checkpoints", names).Msg("local checkpoints")
	}
	client := do.MustInvoke[*runtime.Client](i)
	if client == nil {
		log.Warn().Msg("no model runtime configured; model loads will fail")
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pctx); err != nil {
		log.Warn().Err(err).Str("url", client.BaseURL()).Msg("model runtime not reachable")
		return
	}
	log.Info().Str("url", client.BaseURL()).Msg("model runtime reachable")
}

func configureHTTP(cfg config.Config, log *zerolog.Logger) {
	h := cfg.HTTP
	httpapi.SetLogger(*log)
	httpapi.SetMaxBodyBytes(h.MaxBodyBytes)
	httpapi.SetMaxUploadBytes(int64(cfg.Segment.MaxUploadMB) << 20)
	httpapi.SetCORSOptions(h.CORSEnabled != nil && *h.CORSEnabled, h.CORSOrigins, h.CORSMethods, h.CORSHeaders)
}

func providePublisher(i *do.Injector) (events.Publisher, error) {
	cfg := do.MustInvoke[config.Config](i).Events
	if cfg.NATSURL == "" {
		return events.Noop{}, nil
	}
	p, err := events.ConnectNATS(events.NATSConfig{
		URL:           cfg.NATSURL,
		SubjectPrefix: cfg.SubjectPrefix,
		Name:          "visiond",
		Logger:        do.MustInvoke[*zerolog.Logger](i),
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// provideRuntime returns nil when no runtime URL is configured.
func provideRuntime(i *do.Injector) (*runtime.Client, error) {
	cfg := do.MustInvoke[config.Config](i).Runtime
	if cfg.URL == "" {
		return nil, nil
	}
	return runtime.New(runtime.Config{
		BaseURL:        cfg.URL,
		APIKey:         cfg.APIKey,
		ConnectTimeout: config.Seconds(cfg.ConnectTimeout),
		RequestTimeout: config.Seconds(cfg.RequestTimeout),
		Logger:         do.MustInvoke[*zerolog.Logger](i),
	})
}

func provideDevice(i *do.Injector) (device.Device, error) {
	cfg := do.MustInvoke[config.Config](i).Runtime
	log := do.MustInvoke[*zerolog.Logger](i)
	d, err := selectDevice(cfg, do.MustInvoke[*runtime.Client](i), exec.LookPath, log)
	if err != nil {
		return nil, err
	}
	if cfg.HostMemory != nil && *cfg.HostMemory {
		d = device.WithHost(d, nil)
	}
	return d, nil
}

// selectDevice picks the device backend named by cfg.Device. "auto" prefers
// the runtime, then nvidia-smi when it is on PATH, then none.
func selectDevice(cfg config.RuntimeConfig, client *runtime.Client, lookPath func(string) (string, error), log *zerolog.Logger) (device.Device, error) {
	smi := func() device.Device { return &device.SMI{Path: cfg.SMIPath, Index: cfg.GPUIndex, Logger: log} }
	switch cfg.Device {
	case "none":
		return device.None{}, nil
	case "runtime":
		if client == nil {
			return nil, fmt.Errorf("device %q requires runtime.url", cfg.Device)
		}
		return client, nil
	case "nvidia-smi":
		return smi(), nil
	case "auto", "":
		if client != nil {
			return client, nil
		}
		if _, err := lookPath(cfg.SMIPath); err == nil {
			return smi(), nil
		}
		log.Info().Msg("no accelerator backend found; gpu memory will be reported as null")
		return device.None{}, nil
	}
	return nil, fmt.Errorf("unknown device %q", cfg.Device)
}

// provideMirror returns nil when no mirror endpoint is configured.
func provideMirror(ctx context.Context, i *do.Injector) (artifact.Mirror, error) {
	cfg := do.MustInvoke[config.Config](i).Mirror
	if cfg.Endpoint == "" {
		return nil, nil
	}
	m, err := artifact.NewMinioMirror(ctx, artifact.MinioConfig{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
		Logger:    do.MustInvoke[*zerolog.Logger](i),
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func storeProvider(dir, prefix string, mirrored bool) do.Provider[*artifact.Store] {
	return func(i *do.Injector) (*artifact.Store, error) {
		cfg := artifact.Config{Dir: dir, Logger: do.MustInvoke[*zerolog.Logger](i)}
		if mirrored {
			cfg.Mirror = do.MustInvoke[artifact.Mirror](i)
			cfg.Prefix = do.MustInvoke[config.Config](i).Mirror.Prefix + prefix
		}
		return artifact.NewStore(cfg)
	}
}

func provideOrchestrator(i *do.Injector) (*imagegen.Orchestrator, error) {
	cfg := do.MustInvoke[config.Config](i).ImageGen
	log := do.MustInvoke[*zerolog.Logger](i)
	loader := imagegen.UnavailableLoader("")
	if client := do.MustInvoke[*runtime.Client](i); client != nil {
		loader = &imagegen.RuntimeLoader{
			Client:   client,
			Registry: do.MustInvokeNamed[*registry.Registry](i, ImageGenRegistry),
			Logger:   log,
		}
	}
	return imagegen.New(imagegen.Config{
		Loader:       loader,
		Device:       do.MustInvoke[device.Device](i),
		Artifacts:    do.MustInvokeNamed[*artifact.Store](i, ResultStore),
		HistorySize:  cfg.HistorySize,
		DrainTimeout: config.Seconds(cfg.SwitchTimeout),
		Publisher:    do.MustInvoke[events.Publisher](i),
		Logger:       log,
	})
}

func provideSegment(i *do.Injector) (*segment.Service, error) {
	cfg := do.MustInvoke[config.Config](i).Segment
	log := do.MustInvoke[*zerolog.Logger](i)
	loader := segment.UnavailableLoader("")
	if client := do.MustInvoke[*runtime.Client](i); client != nil {
		loader = &segment.RuntimeLoader{
			Client:     client,
			Registry:   do.MustInvokeNamed[*registry.Registry](i, SegmentRegistry),
			Checkpoint: cfg.Checkpoint,
			Logger:     log,
		}
	}
	return segment.New(segment.Config{
		Uploads:   do.MustInvokeNamed[*artifact.Store](i, UploadStore),
		Processed: do.MustInvokeNamed[*artifact.Store](i, ProcessedStore),
		Loader:    loader,
		ModelType: cfg.ModelType,
		Device:    do.MustInvoke[device.Device](i),
		Publisher: do.MustInvoke[events.Publisher](i),
		Logger:    log,
	})
}
