// Package registry maps model variants to the weights the runtime should load.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"visiond/internal/common/fsutil"
)

const (
	VariantFast = "fast"
	VariantSlow = "slow"

	DefaultFastCheckpoint = "sd_xl_base_1.0.safetensors"
	DefaultFastRepo       = "stabilityai/stable-diffusion-xl-base-1.0"
	DefaultSlowRepo       = "stabilityai/stable-diffusion-3.5-large"

	DefaultSAMModelType  = "vit_b"
	DefaultSAMCheckpoint = "sam_model_vitb.pth"
)

// Source describes what the runtime must load for one variant.
type Source struct {
	Variant string `json:"variant"`
	// Pipeline is the runtime pipeline family: "sdxl", "sd3" or "sam".
	Pipeline string `json:"pipeline"`
	// Location is a local file path when SingleFile is set, otherwise a hub
	// repository id.
	Location   string `json:"location"`
	SingleFile bool   `json:"single_file"`
	DType      string `json:"dtype,omitempty"`
	CPUOffload bool   `json:"cpu_offload,omitempty"`
	CacheDir   string `json:"cache_dir,omitempty"`
	Token      string `json:"token,omitempty"`
}

// Config carries the weights locations. Zero values select defaults.
type Config struct {
	WeightsDir     string
	FastCheckpoint string
	FastRepo       string
	SlowRepo       string
	CacheDir       string
	HFToken        string
}

// Registry resolves image generation variants.
type Registry struct {
	cfg Config
}

// New returns a Registry with defaults applied.
func New(cfg Config) *Registry {
	if cfg.FastCheckpoint == "" {
		cfg.FastCheckpoint = DefaultFastCheckpoint
	}
	if cfg.FastRepo == "" {
		cfg.FastRepo = DefaultFastRepo
	}
	if cfg.SlowRepo == "" {
		cfg.SlowRepo = DefaultSlowRepo
	}
	return &Registry{cfg: cfg}
}

// Resolve returns the Source for variant. The fast tier prefers a local
// single-file checkpoint and falls back to the hub repository.
func (r *Registry) Resolve(variant string) (Source, error) {
	cacheDir, err := fsutil.ExpandHome(r.cfg.CacheDir)
	if err != nil {
		return Source{}, err
	}
	switch variant {
	case VariantFast:
		src := Source{Variant: variant, Pipeline: "sdxl", DType: "float16", CacheDir: cacheDir, Token: r.cfg.HFToken}
		if p, ok := r.localFile(r.cfg.FastCheckpoint); ok {
			src.Location, src.SingleFile = p, true
			return src, nil
		}
		src.Location = r.cfg.FastRepo
		return src, nil
	case VariantSlow:
		return Source{
			Variant:    variant,
			Pipeline:   "sd3",
			Location:   r.cfg.SlowRepo,
			DType:      "bfloat16",
			CPUOffload: true,
			CacheDir:   cacheDir,
			Token:      r.cfg.HFToken,
		}, nil
	}
	return Source{}, fmt.Errorf("unknown variant %q", variant)
}

// ResolveSAM returns the Source for a segmentation checkpoint.
func (r *Registry) ResolveSAM(modelType, checkpoint string) (Source, error) {
	if modelType == "" {
		modelType = DefaultSAMModelType
	}
	if checkpoint == "" {
		checkpoint = DefaultSAMCheckpoint
	}
	p, ok := r.localFile(checkpoint)
	if !ok {
		return Source{}, fmt.Errorf("sam checkpoint %s not found", checkpoint)
	}
	return Source{Variant: modelType, Pipeline: "sam", Location: p, SingleFile: true}, nil
}

// localFile resolves name against the weights dir (or as given when absolute)
// and reports whether it is an existing file.
func (r *Registry) localFile(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	p, err := fsutil.ExpandHome(name)
	if err != nil {
		return "", false
	}
	if !filepath.IsAbs(p) && r.cfg.WeightsDir != "" {
		dir, err := fsutil.ExpandHome(r.cfg.WeightsDir)
		if err != nil {
			return "", false
		}
		p = filepath.Join(dir, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return p, fsutil.IsRegularFile(p)
}

var checkpointExts = map[string]bool{".safetensors": true, ".ckpt": true, ".pth": true, ".bin": true}

// ScanWeights lists checkpoint files directly inside dir, sorted by name.
func ScanWeights(dir string) ([]string, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if checkpointExts[strings.ToLower(filepath.Ext(e.Name()))] {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
