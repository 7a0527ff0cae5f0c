package fic

import (
	"errors"
	"testing"
)

type fakeRegs map[uint32]uint32

func (f fakeRegs) Read32(offset uint32) uint32         { return f[offset] }
func (f fakeRegs) Write32(offset uint32, value uint32) { f[offset] = value }

type fakeCore struct{ mie uint32 }

func (c *fakeCore) EnableMachineIrq(bit uint8, enable bool) {
	if enable {
		c.mie |= 1 << bit
	} else {
		c.mie &^= 1 << bit
	}
}

var testLines = []Line{
	{Name: "spi", EnableReg: 0, Bit: 20, CoreBit: 20},
	{Name: "spi_flash", EnableReg: 0, Bit: 21, CoreBit: 21},
}

func TestEnableDisableLine(t *testing.T) {
	regs := fakeRegs{}
	core := &fakeCore{}
	c, err := New(regs, core, testLines)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.EnableLine("spi_flash"); err != nil {
		t.Fatal(err)
	}
	if regs[0]&(1<<21) == 0 {
		t.Error("controller enable bit not set")
	}
	if core.mie&(1<<21) == 0 {
		t.Error("core enable bit not set")
	}
	if err := c.DisableLine("spi_flash"); err != nil {
		t.Fatal(err)
	}
	if regs[0]&(1<<21) != 0 || core.mie&(1<<21) != 0 {
		t.Error("enable bits not cleared")
	}
}

func TestUnknownLine(t *testing.T) {
	c, _ := New(fakeRegs{}, &fakeCore{}, testLines)
	if err := c.EnableLine("uart"); !errors.Is(err, ErrUnknownLine) {
		t.Errorf("got %v, want %v", err, ErrUnknownLine)
	}
}

func TestDuplicateLine(t *testing.T) {
	dup := append([]Line{}, testLines...)
	dup = append(dup, Line{Name: "spi", EnableReg: 4, Bit: 3})
	if _, err := New(fakeRegs{}, &fakeCore{}, dup); !errors.Is(err, ErrDuplicateLine) {
		t.Errorf("got %v, want %v", err, ErrDuplicateLine)
	}
}

func TestDispatch(t *testing.T) {
	c, _ := New(fakeRegs{}, &fakeCore{}, testLines)
	fired := 0
	if err := c.Register("spi_flash", func() { fired++ }); err != nil {
		t.Fatal(err)
	}
	c.Dispatch(21)
	c.Dispatch(20) // no handler, must not panic
	if fired != 1 {
		t.Errorf("handler fired %d times, want 1", fired)
	}
}
