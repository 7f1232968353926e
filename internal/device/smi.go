package device

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const mib = 1 << 20

// RunFunc runs a command and returns its standard output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// SMI reads memory from nvidia-smi. It cannot release cached allocations, so
// EmptyCache is a no-op; the model runtime owns the allocator.
type SMI struct {
	Path   string
	Index  int
	Run    RunFunc
	Logger *zerolog.Logger
}

func (d *SMI) EmptyCache(context.Context) error { return nil }

func (d *SMI) MemoryInfo(ctx context.Context) (MemoryInfo, error) {
	path := d.Path
	if path == "" {
		path = "nvidia-smi"
	}
	run := d.Run
	if run == nil {
		if _, err := exec.LookPath(path); err != nil {
			return MemoryInfo{}, ErrNoDevice
		}
		run = execRun
	}
	out, err := run(ctx, path,
		"--query-gpu=memory.total,memory.used,memory.free",
		"--format=csv,noheader,nounits",
		"-i", strconv.Itoa(d.Index))
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return MemoryInfo{}, ErrNoDevice
		}
		return MemoryInfo{}, fmt.Errorf("nvidia-smi: %w", err)
	}
	info, err := parseSMI(out)
	if err != nil && d.Logger != nil {
		d.Logger.Warn().Err(err).Str("output", strings.TrimSpace(string(out))).Msg("malformed nvidia-smi output")
	}
	return info, err
}

// parseSMI parses one "total, used, free" line in MiB.
func parseSMI(out []byte) (MemoryInfo, error) {
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return MemoryInfo{}, ErrNoDevice
	}
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return MemoryInfo{}, fmt.Errorf("nvidia-smi: expected 3 fields, got %d", len(fields))
	}
	var vals [3]uint64
	for i, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return MemoryInfo{}, fmt.Errorf("nvidia-smi: field %d: %w", i, err)
		}
		vals[i] = v * mib
	}
	// nvidia-smi has no allocator view; used memory stands in for both.
	return MemoryInfo{Total: vals[0], Reserved: vals[1], Allocated: vals[1], Free: vals[2]}, nil
}
