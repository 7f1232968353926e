// Package device reports accelerator memory and releases cached allocations.
package device

import (
	"context"
	"errors"
)

var (
	// ErrOutOfMemory marks a failure caused by exhausted accelerator memory.
	// Wrap it with fmt.Errorf("%w") so errors.Is finds it anywhere in a chain.
	ErrOutOfMemory = errors.New("device out of memory")
	// ErrNoDevice is returned by MemoryInfo when no accelerator is present.
	ErrNoDevice = errors.New("no accelerator device")
)

// Device is an accelerator as seen by the model services.
type Device interface {
	// EmptyCache returns cached but unused allocations to the device.
	EmptyCache(ctx context.Context) error
	// MemoryInfo returns a snapshot of device memory, or ErrNoDevice.
	MemoryInfo(ctx context.Context) (MemoryInfo, error)
}

// MemoryInfo is a device memory snapshot in bytes.
type MemoryInfo struct {
	Total     uint64      `json:"total"`
	Reserved  uint64      `json:"reserved"`
	Allocated uint64      `json:"allocated"`
	Free      uint64      `json:"free"`
	Host      *HostMemory `json:"host,omitempty"`
}

// HostMemory is a system RAM snapshot in bytes.
type HostMemory struct {
	Total     uint64 `json:"total"`
	Available uint64 `json:"available"`
	Used      uint64 `json:"used"`
}

// IsOutOfMemory reports whether err is, or wraps, ErrOutOfMemory.
func IsOutOfMemory(err error) bool { return errors.Is(err, ErrOutOfMemory) }

// None is a host without an accelerator.
type None struct{}

func (None) EmptyCache(context.Context) error { return nil }

func (None) MemoryInfo(context.Context) (MemoryInfo, error) { return MemoryInfo{}, ErrNoDevice }
