package config

import (
	"strconv"
	"time"

	"github.com/samber/lo"

	"visiond/internal/events"
	"visiond/internal/registry"
	"visiond/internal/tasks"
)

// Defaults returns a Config with every field set to its default.
func Defaults() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unspecified fields.
func (c *Config) ApplyDefaults() {
	g := &c.ImageGen
	setStr(&g.Addr, ":5000")
	setStr(&g.OutputDir, "./generated_images")
	setStr(&g.WeightsDir, ".")
	setStr(&g.CacheDir, "./model_cache")
	setStr(&g.FastCheckpoint, registry.DefaultFastCheckpoint)
	setStr(&g.FastRepo, registry.DefaultFastRepo)
	setStr(&g.SlowRepo, registry.DefaultSlowRepo)
	setInt(&g.HistorySize, tasks.DefaultHistorySize)
	setInt(&g.DrainTimeout, 30)
	setInt(&g.SweepInterval, 60)

	s := &c.Segment
	setStr(&s.Addr, ":5001")
	setStr(&s.UploadDir, "uploads")
	setStr(&s.ProcessedDir, "processed")
	setStr(&s.WeightsDir, ".")
	setStr(&s.ModelType, registry.DefaultSAMModelType)
	setStr(&s.Checkpoint, registry.DefaultSAMCheckpoint)
	setInt(&s.MaxUploadMB, 32)

	r := &c.Runtime
	setStr(&r.Device, "auto")
	setStr(&r.SMIPath, "nvidia-smi")
	setInt(&r.ConnectTimeout, 5)
	if r.HostMemory == nil {
		r.HostMemory = lo.ToPtr(true)
	}

	setStr(&c.Events.SubjectPrefix, events.DefaultSubjectPrefix)
	setStr(&c.Mirror.Bucket, "visiond")
	setStr(&c.Mirror.Region, "us-east-1")

	h := &c.HTTP
	if h.MaxBodyBytes <= 0 {
		h.MaxBodyBytes = 1 << 20
	}
	if h.CORSEnabled == nil {
		h.CORSEnabled = lo.ToPtr(true)
	}
	if len(h.CORSOrigins) == 0 {
		h.CORSOrigins = []string{"*"}
	}
	if len(h.CORSMethods) == 0 {
		h.CORSMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(h.CORSHeaders) == 0 {
		h.CORSHeaders = []string{"Accept", "Content-Type", "X-Log-Level", "X-Request-Id"}
	}
	setInt(&h.ReadHeaderTimeout, 10)
	setInt(&h.ShutdownTimeout, 30)

	setStr(&c.Log.Level, "info")
	setStr(&c.Log.Format, "json")
}

// ApplyEnv overrides fields from VISIOND_* variables (and HF_TOKEN) read
// through getenv. Unparseable numbers are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	envStr(getenv, "VISIOND_IMAGEGEN_ADDR", &c.ImageGen.Addr)
	envStr(getenv, "VISIOND_OUTPUT_DIR", &c.ImageGen.OutputDir)
	envStr(getenv, "VISIOND_WEIGHTS_DIR", &c.ImageGen.WeightsDir)
	envStr(getenv, "VISIOND_CACHE_DIR", &c.ImageGen.CacheDir)
	envStr(getenv, "HF_TOKEN", &c.ImageGen.HFToken)
	envInt(getenv, "VISIOND_HISTORY_SIZE", &c.ImageGen.HistorySize)
	envStr(getenv, "VISIOND_SEGMENT_ADDR", &c.Segment.Addr)
	envStr(getenv, "VISIOND_UPLOAD_DIR", &c.Segment.UploadDir)
	envStr(getenv, "VISIOND_PROCESSED_DIR", &c.Segment.ProcessedDir)
	envStr(getenv, "VISIOND_SAM_CHECKPOINT", &c.Segment.Checkpoint)
	envStr(getenv, "VISIOND_RUNTIME_URL", &c.Runtime.URL)
	envStr(getenv, "VISIOND_RUNTIME_API_KEY", &c.Runtime.APIKey)
	envStr(getenv, "VISIOND_DEVICE", &c.Runtime.Device)
	envStr(getenv, "VISIOND_NATS_URL", &c.Events.NATSURL)
	envStr(getenv, "VISIOND_MIRROR_ENDPOINT", &c.Mirror.Endpoint)
	envStr(getenv, "VISIOND_MIRROR_ACCESS_KEY", &c.Mirror.AccessKey)
	envStr(getenv, "VISIOND_MIRROR_SECRET_KEY", &c.Mirror.SecretKey)
	envStr(getenv, "VISIOND_MIRROR_BUCKET", &c.Mirror.Bucket)
	envStr(getenv, "VISIOND_LOG_LEVEL", &c.Log.Level)
	envStr(getenv, "VISIOND_LOG_FORMAT", &c.Log.Format)
}

// Seconds converts an integer-seconds field to a Duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func setStr(p *string, def string) {
	if *p == "" {
		*p = def
	}
}

func setInt(p *int, def int) {
	if *p == 0 {
		*p = def
	}
}

func envStr(getenv func(string) string, key string, p *string) {
	if v := getenv(key); v != "" {
		*p = v
	}
}

func envInt(getenv func(string) string, key string, p *int) {
	if v := getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*p = n
		}
	}
}
