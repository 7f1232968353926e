package device

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNone(t *testing.T) {
	var d Device = None{}
	if err := d.EmptyCache(context.Background()); err != nil { t.Fatalf("empty cache: %v", err) }
	if _, err := d.MemoryInfo(context.Background()); !errors.Is(err, ErrNoDevice) { t.Fatalf("err=%v", err) }
}

func TestIsOutOfMemory_Wrapped(t *testing.T) {
	err := fmt.Errorf("generate: %w", fmt.Errorf("runtime: %w", ErrOutOfMemory))
	if !IsOutOfMemory(err) { t.Fatalf("wrapped OOM not detected") }
	if IsOutOfMemory(errors.New("out of memory")) { t.Fatalf("plain string must not match") }
}

func TestSMI_Parse(t *testing.T) {
	var gotArgs []string
	d := &SMI{Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte("24576, 1024, 23552\n"), nil
	}}
	info, err := d.MemoryInfo(context.Background())
	if err != nil { t.Fatalf("memory info: %v", err) }
	if info.Total != 24576*mib || info.Allocated != 1024*mib || info.Free != 23552*mib { t.Fatalf("info=%+v", info) }
	if len(gotArgs) == 0 || gotArgs[len(gotArgs)-1] != "0" { t.Fatalf("args=%v", gotArgs) }
}

func TestSMI_Malformed(t *testing.T) {
	d := &SMI{Run: func(context.Context, string, ...string) ([]byte, error) { return []byte("N/A, 1"), nil }}
	if _, err := d.MemoryInfo(context.Background()); err == nil { t.Fatalf("expected parse error") }
}

func TestSMI_CommandError(t *testing.T) {
	d := &SMI{Run: func(context.Context, string, ...string) ([]byte, error) { return nil, errors.New("exit status 9") }}
	_, err := d.MemoryInfo(context.Background())
	if err == nil || errors.Is(err, ErrNoDevice) { t.Fatalf("err=%v", err) }
}

func TestWithHost(t *testing.T) {
	base := &SMI{Run: func(context.Context, string, ...string) ([]byte, error) { return []byte("8, 2, 6"), nil }}
	d := WithHost(base, func(context.Context) (*HostMemory, error) { return &HostMemory{Total: 64}, nil })
	info, err := d.MemoryInfo(context.Background())
	if err != nil { t.Fatalf("memory info: %v", err) }
	if info.Host == nil || info.Host.Total != 64 { t.Fatalf("host=%+v", info.Host) }

	noDev := WithHost(None{}, func(context.Context) (*HostMemory, error) { return &HostMemory{}, nil })
	if _, err := noDev.MemoryInfo(context.Background()); !errors.Is(err, ErrNoDevice) { t.Fatalf("err=%v", err) }

	failing := WithHost(base, func(context.Context) (*HostMemory, error) { return nil, errors.New("no proc") })
	info, err = failing.MemoryInfo(context.Background())
	if err != nil || info.Host != nil { t.Fatalf("info=%+v err=%v", info, err) }
}
