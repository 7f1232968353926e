package device

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"
)

// HostMemoryFunc reads system RAM.
type HostMemoryFunc func(ctx context.Context) (*HostMemory, error)

// ReadHostMemory reads system RAM through gopsutil.
func ReadHostMemory(ctx context.Context) (*HostMemory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return &HostMemory{Total: vm.Total, Available: vm.Available, Used: vm.Used}, nil
}

// WithHost decorates d so successful snapshots carry host memory. A failed
// host read leaves Host nil and does not fail the snapshot.
func WithHost(d Device, read HostMemoryFunc) Device {
	if read == nil {
		read = ReadHostMemory
	}
	return &withHost{Device: d, read: read}
}

type withHost struct {
	Device
	read HostMemoryFunc
}

func (d *withHost) MemoryInfo(ctx context.Context) (MemoryInfo, error) {
	info, err := d.Device.MemoryInfo(ctx)
	if err != nil {
		return info, err
	}
	if h, herr := d.read(ctx); herr == nil {
		info.Host = h
	}
	return info, nil
}
