package board

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.CoreClockHz == 0 {
		t.Error("zero core clock")
	}
	if cfg.TickHz == 0 {
		t.Error("zero tick frequency")
	}
	if cfg.Flash.PageSize != 256 {
		t.Errorf("page size %d, want 256", cfg.Flash.PageSize)
	}
	if cfg.Flash.DummyClocks == 0 {
		t.Error("zero dummy clocks")
	}
	lines := cfg.FICLines()
	if len(lines) == 0 {
		t.Fatal("no interrupt lines")
	}
	found := false
	for _, ln := range lines {
		if ln.Name == "spi_flash" {
			found = true
		}
	}
	if !found {
		t.Error("spi_flash line missing")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestLoadRejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	raw := []byte("name: broken\ncoreClockHz: 50000000\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("board without flash parameters accepted")
	}
}

func TestLoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	raw := []byte(`name: fpga
coreClockHz: 15000000
tickHz: 1000000
flash:
  maxClockHz: 133000000
  dummyClocks: 4
  pageSize: 256
  sectorSize: 4096
  sizeBytes: 16777216
interruptLines:
  - {name: spi_flash, enableReg: 0, bit: 21, coreBit: 21}
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CoreClockHz != 15_000_000 {
		t.Errorf("core clock %d", cfg.CoreClockHz)
	}
	if cfg.Flash.DummyClocks != 4 {
		t.Errorf("dummy clocks %d, want 4", cfg.Flash.DummyClocks)
	}
}
