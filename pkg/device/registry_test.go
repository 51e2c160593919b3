package device_test

import (
	"errors"
	"testing"

	"github.com/samcharles93/ashlar/pkg/device"
	"github.com/samcharles93/ashlar/pkg/device/host"
)

func TestRegistryValidRecords(t *testing.T) {
	resources := []device.Resource{
		{FreeMemory: 1 << 20, Handle: host.New(1, 1<<20), ID: 1},
		{FreeMemory: 1 << 20, Handle: host.New(0, 1<<20), ID: 0},
	}
	reg, err := device.NewRegistry(resources)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	ids := reg.IDs()
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 1 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if _, ok := reg.Handle(1); !ok {
		t.Fatal("handle 1 missing")
	}
	if _, ok := reg.Handle(7); ok {
		t.Fatal("handle 7 should not exist")
	}
	if got := reg.Len(); got != 2 {
		t.Fatalf("len %d, want 2", got)
	}
}

func TestRegistryNilHandle(t *testing.T) {
	resources := []device.Resource{
		{FreeMemory: 1 << 20, Handle: host.New(0, 1<<20), ID: 0},
		{FreeMemory: 1 << 20, Handle: nil, ID: 1},
	}
	_, err := device.NewRegistry(resources)
	var cfg *device.ConfigError
	if !errors.As(err, &cfg) {
		t.Fatalf("want ConfigError, got %v", err)
	}
	if cfg.Index != 1 || cfg.ID != 1 {
		t.Fatalf("error does not name the offending entry: %+v", cfg)
	}
}

func TestRegistryDuplicateID(t *testing.T) {
	resources := []device.Resource{
		{FreeMemory: 1 << 20, Handle: host.New(2, 1<<20), ID: 2},
		{FreeMemory: 1 << 20, Handle: host.New(2, 1<<20), ID: 2},
	}
	_, err := device.NewRegistry(resources)
	var cfg *device.ConfigError
	if !errors.As(err, &cfg) {
		t.Fatalf("want ConfigError, got %v", err)
	}
	if cfg.Index != 1 {
		t.Fatalf("duplicate not attributed to second entry: %+v", cfg)
	}
}

func TestRegistryMismatchedHandle(t *testing.T) {
	resources := []device.Resource{
		{FreeMemory: 1 << 20, Handle: host.New(5, 1<<20), ID: 3},
	}
	_, err := device.NewRegistry(resources)
	var cfg *device.ConfigError
	if !errors.As(err, &cfg) {
		t.Fatalf("want ConfigError, got %v", err)
	}
}
