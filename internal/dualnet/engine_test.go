package dualnet

import "testing"

func TestDiscoverDevicesAutoDetect(t *testing.T) {
	ids := discoverDevices(0, func() int { return 3 })
	if len(ids) != 3 {
		t.Fatalf("got %d device ids, want 3", len(ids))
	}
	for i, id := range ids {
		if id != i {
			t.Fatalf("device %d: got id %d, want %d", i, id, i)
		}
	}
}

func TestDiscoverDevicesExplicitCount(t *testing.T) {
	ids := discoverDevices(2, func() int { panic("probe should not be consulted when NumDevices is explicit") })
	if len(ids) != 2 {
		t.Fatalf("got %d device ids, want 2", len(ids))
	}
}

func TestDiscoverDevicesFallsBackToOneDevice(t *testing.T) {
	ids := discoverDevices(0, func() int { return 0 })
	if len(ids) != 1 || ids[0] != 0 {
		t.Fatalf("got %v, want a single device 0", ids)
	}
}

func TestNewEngineRejectsEmptyTag(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for an empty engine tag")
		}
	}()
	NewEngine(Config{}, nil)
}

func TestNewEngineRejectsUnknownTag(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for an unrecognized engine tag")
		}
	}()
	NewEngine(Config{Engine: "quantum"}, nil)
}

func TestConfigBatchSizeDefault(t *testing.T) {
	var cfg Config
	if got := cfg.batchSize(); got != DefaultBatchSize {
		t.Fatalf("got %d, want DefaultBatchSize %d", got, DefaultBatchSize)
	}
	cfg.BatchSize = 128
	if got := cfg.batchSize(); got != 128 {
		t.Fatalf("got %d, want 128", got)
	}
}
