package artifact

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// Sweep removes files matching pattern (for example "*.png") whose
// modification time is older than retention. It returns how many were removed.
func (s *Store) Sweep(pattern string, retention time.Duration) (int, error) {
	if pattern == "" {
		pattern = "*"
	}
	files, err := filepath.Glob(filepath.Join(s.dir, pattern))
	if err != nil {
		s.log.Error().Err(err).Msg("artifact sweep failed")
		return 0, err
	}
	cutoff := time.Now().Add(-retention)
	cleaned := 0
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(f); err != nil {
				s.log.Warn().Err(err).Str("file", f).Msg("failed to remove expired artifact")
			} else {
				cleaned++
			}
		}
	}
	if cleaned > 0 {
		s.log.Info().Int("count", cleaned).Msg("removed expired artifacts")
	}
	return cleaned, nil
}

// RunSweeper sweeps every interval until ctx is done. A zero retention
// disables it.
func (s *Store) RunSweeper(ctx context.Context, pattern string, retention, interval time.Duration) {
	if retention <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = s.Sweep(pattern, retention)
		}
	}
}
