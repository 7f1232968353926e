package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for both services.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	ImageGen ImageGenConfig `json:"imagegen" yaml:"imagegen" toml:"imagegen"`
	Segment  SegmentConfig  `json:"segment" yaml:"segment" toml:"segment"`
	Runtime  RuntimeConfig  `json:"runtime" yaml:"runtime" toml:"runtime"`
	Events   EventsConfig   `json:"events" yaml:"events" toml:"events"`
	Mirror   MirrorConfig   `json:"mirror" yaml:"mirror" toml:"mirror"`
	HTTP     HTTPConfig     `json:"http" yaml:"http" toml:"http"`
	Log      LogConfig      `json:"log" yaml:"log" toml:"log"`
}

// ImageGenConfig configures imagegend.
type ImageGenConfig struct {
	Addr           string `json:"addr" yaml:"addr" toml:"addr"`
	OutputDir      string `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	WeightsDir     string `json:"weights_dir" yaml:"weights_dir" toml:"weights_dir"`
	CacheDir       string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	FastCheckpoint string `json:"fast_checkpoint" yaml:"fast_checkpoint" toml:"fast_checkpoint"`
	FastRepo       string `json:"fast_repo" yaml:"fast_repo" toml:"fast_repo"`
	SlowRepo       string `json:"slow_repo" yaml:"slow_repo" toml:"slow_repo"`
	HFToken        string `json:"hf_token" yaml:"hf_token" toml:"hf_token"`
	HistorySize    int    `json:"history_size" yaml:"history_size" toml:"history_size"`
	// DrainTimeout bounds the shutdown wait for in-flight tasks.
	DrainTimeout int `json:"drain_timeout_sec" yaml:"drain_timeout_sec" toml:"drain_timeout_sec"`
	// SwitchTimeout bounds how long a model switch waits for running tasks
	// on the outgoing model. Zero waits for all of them.
	SwitchTimeout int `json:"switch_timeout_sec" yaml:"switch_timeout_sec" toml:"switch_timeout_sec"`
	// ResultRetention enables the result sweeper when positive.
	ResultRetention int `json:"result_retention_hours" yaml:"result_retention_hours" toml:"result_retention_hours"`
	SweepInterval   int `json:"sweep_interval_min" yaml:"sweep_interval_min" toml:"sweep_interval_min"`
}

// SegmentConfig configures segmentd.
type SegmentConfig struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	UploadDir    string `json:"upload_dir" yaml:"upload_dir" toml:"upload_dir"`
	ProcessedDir string `json:"processed_dir" yaml:"processed_dir" toml:"processed_dir"`
	WeightsDir   string `json:"weights_dir" yaml:"weights_dir" toml:"weights_dir"`
	ModelType    string `json:"model_type" yaml:"model_type" toml:"model_type"`
	Checkpoint   string `json:"checkpoint" yaml:"checkpoint" toml:"checkpoint"`
	MaxUploadMB  int    `json:"max_upload_mb" yaml:"max_upload_mb" toml:"max_upload_mb"`
}

// RuntimeConfig points at the model runtime sidecar and selects the device
// backend.
type RuntimeConfig struct {
	URL            string `json:"url" yaml:"url" toml:"url"`
	APIKey         string `json:"api_key" yaml:"api_key" toml:"api_key"`
	ConnectTimeout int    `json:"connect_timeout_sec" yaml:"connect_timeout_sec" toml:"connect_timeout_sec"`
	// RequestTimeout of 0 leaves runtime calls without a deadline.
	RequestTimeout int `json:"request_timeout_sec" yaml:"request_timeout_sec" toml:"request_timeout_sec"`
	// Device is auto, runtime, nvidia-smi or none.
	Device     string `json:"device" yaml:"device" toml:"device"`
	SMIPath    string `json:"smi_path" yaml:"smi_path" toml:"smi_path"`
	GPUIndex   int    `json:"gpu_index" yaml:"gpu_index" toml:"gpu_index"`
	HostMemory *bool  `json:"host_memory" yaml:"host_memory" toml:"host_memory"`
}

// EventsConfig enables NATS publishing when URL is set.
type EventsConfig struct {
	NATSURL       string `json:"nats_url" yaml:"nats_url" toml:"nats_url"`
	SubjectPrefix string `json:"subject_prefix" yaml:"subject_prefix" toml:"subject_prefix"`
}

// MirrorConfig enables the object-store mirror when Endpoint is set.
type MirrorConfig struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	AccessKey string `json:"access_key" yaml:"access_key" toml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key" toml:"secret_key"`
	Bucket    string `json:"bucket" yaml:"bucket" toml:"bucket"`
	Region    string `json:"region" yaml:"region" toml:"region"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl" toml:"use_ssl"`
	Prefix    string `json:"prefix" yaml:"prefix" toml:"prefix"`
}

// HTTPConfig configures the listeners shared by both services.
type HTTPConfig struct {
	MaxBodyBytes      int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSEnabled       *bool    `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins       []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods       []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders       []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`
	ReadHeaderTimeout int      `json:"read_header_timeout_sec" yaml:"read_header_timeout_sec" toml:"read_header_timeout_sec"`
	ShutdownTimeout   int      `json:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec" toml:"shutdown_timeout_sec"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
