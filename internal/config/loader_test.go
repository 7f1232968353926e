package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `
imagegen:
  addr: ":9999"
  output_dir: /tmp/out
  history_size: 7
runtime:
  url: http://127.0.0.1:7000
  device: nvidia-smi
  host_memory: false
http:
  cors_enabled: false
  cors_origins: ["http://a"]
log:
  level: debug
`)
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.ImageGen.Addr != ":9999" || cfg.ImageGen.OutputDir != "/tmp/out" || cfg.ImageGen.HistorySize != 7 { t.Fatalf("imagegen: %+v", cfg.ImageGen) }
	if cfg.Runtime.URL != "http://127.0.0.1:7000" || cfg.Runtime.Device != "nvidia-smi" || cfg.Runtime.HostMemory == nil || *cfg.Runtime.HostMemory { t.Fatalf("runtime: %+v", cfg.Runtime) }
	if cfg.HTTP.CORSEnabled == nil || *cfg.HTTP.CORSEnabled || len(cfg.HTTP.CORSOrigins) != 1 { t.Fatalf("http: %+v", cfg.HTTP) }
	if cfg.Log.Level != "debug" { t.Fatalf("log: %+v", cfg.Log) }
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"segment":{"addr":":7070","processed_dir":"/p","max_upload_mb":4},"events":{"nats_url":"nats://x:4222"}}`)
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Segment.Addr != ":7070" || cfg.Segment.ProcessedDir != "/p" || cfg.Segment.MaxUploadMB != 4 || cfg.Events.NATSURL != "nats://x:4222" { t.Fatalf("unexpected cfg: %+v", cfg) }
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "[mirror]\nendpoint=\"minio:9000\"\nbucket=\"art\"\nuse_ssl=true\n\n[imagegen]\ndrain_timeout_sec=5\nswitch_timeout_sec=12\n")
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Mirror.Endpoint != "minio:9000" || cfg.Mirror.Bucket != "art" || !cfg.Mirror.UseSSL || cfg.ImageGen.DrainTimeout != 5 || cfg.ImageGen.SwitchTimeout != 12 { t.Fatalf("unexpected cfg: %+v", cfg) }
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil { t.Fatalf("expected error on empty path") }
	d := t.TempDir()
	if _, err := Load(filepath.Join(d, "missing.yaml")); err == nil { t.Fatalf("expected error on missing file") }
	p := writeTempFile(t, d, "cfg.ini", "x=1")
	if _, err := Load(p); err == nil { t.Fatalf("expected error on unsupported extension") }
	p = writeTempFile(t, d, "bad.json", "{")
	if _, err := Load(p); err == nil { t.Fatalf("expected parse error") }
}

func TestDefaults(t *testing.T) {
	c := Defaults()
	if c.ImageGen.Addr != ":5000" || c.Segment.Addr != ":5001" { t.Fatalf("addrs: %q %q", c.ImageGen.Addr, c.Segment.Addr) }
	if c.ImageGen.OutputDir != "./generated_images" || c.ImageGen.HistorySize != 100 || c.ImageGen.DrainTimeout != 30 { t.Fatalf("imagegen: %+v", c.ImageGen) }
	if c.Segment.ModelType != "vit_b" || c.Segment.Checkpoint != "sam_model_vitb.pth" { t.Fatalf("segment: %+v", c.Segment) }
	if c.Runtime.RequestTimeout != 0 || c.Runtime.Device != "auto" || !*c.Runtime.HostMemory { t.Fatalf("runtime: %+v", c.Runtime) }
	if !*c.HTTP.CORSEnabled || c.HTTP.CORSOrigins[0] != "*" { t.Fatalf("cors: %+v", c.HTTP) }
	if c.ImageGen.ResultRetention != 0 { t.Fatalf("sweeper enabled by default") }
	if c.ImageGen.SwitchTimeout != 0 { t.Fatalf("model switch drain bounded by default: %d", c.ImageGen.SwitchTimeout) }
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	off := false
	c := Config{ImageGen: ImageGenConfig{Addr: ":1"}, HTTP: HTTPConfig{CORSEnabled: &off}}
	c.ApplyDefaults()
	if c.ImageGen.Addr != ":1" || *c.HTTP.CORSEnabled { t.Fatalf("overwrote explicit values: %+v", c) }
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"VISIOND_IMAGEGEN_ADDR": ":8000",
		"VISIOND_RUNTIME_URL":   "http://rt:9000",
		"HF_TOKEN":              "hf_abc",
		"VISIOND_HISTORY_SIZE":  "notanumber",
		"VISIOND_LOG_LEVEL":     "warn",
	}
	c := Defaults()
	c.ApplyEnv(func(k string) string { return env[k] })
	if c.ImageGen.Addr != ":8000" || c.Runtime.URL != "http://rt:9000" || c.ImageGen.HFToken != "hf_abc" || c.Log.Level != "warn" { t.Fatalf("cfg: %+v", c) }
	if c.ImageGen.HistorySize != 100 { t.Fatalf("bad integer applied: %d", c.ImageGen.HistorySize) }
}

func TestSeconds(t *testing.T) {
	if Seconds(3) != 3*time.Second { t.Fatalf("Seconds(3)=%v", Seconds(3)) }
}
