package main

import "testing"

func TestServeOptions_FlagsOverrideEnv(t *testing.T) {
	env := map[string]string{"VISIOND_UPLOAD_DIR": "/env/up", "VISIOND_SEGMENT_ADDR": ":6001"}
	opts := &serveOptions{processedDir: "/flag/out", addr: ":7001"}
	cfg, err := opts.load(func(k string) string { return env[k] })
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Segment.Addr != ":7001" { t.Fatalf("addr=%q", cfg.Segment.Addr) }
	if cfg.Segment.UploadDir != "/env/up" { t.Fatalf("upload_dir=%q", cfg.Segment.UploadDir) }
	if cfg.Segment.ProcessedDir != "/flag/out" { t.Fatalf("processed_dir=%q", cfg.Segment.ProcessedDir) }
	if cfg.Segment.ModelType != "vit_b" { t.Fatalf("model_type=%q", cfg.Segment.ModelType) }
}
