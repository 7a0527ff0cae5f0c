// Package rvtimer drives the free-running 64-bit tick counter used for
// profiling. The counter advances step ticks every prescale+1 core clock
// cycles; tick frequency is therefore clock * step / (prescale + 1).
package rvtimer

import (
	"errors"
	"fmt"

	"github.com/consanii/x-heep/mmio"
)

// Register block byte offsets. Per-hart registers live in a fixed-stride
// window starting at hartStride*hart.
const (
	RegCtrl = 0x00

	hartBase   = 0x100
	hartStride = 0x100

	regHartCfg        = 0x00 // prescale [11:0], step [23:16]
	regHartValueLower = 0x04
	regHartValueUpper = 0x08
)

const (
	MaxPrescale = 1<<12 - 1
	MaxStep     = 1<<8 - 1
)

var (
	ErrHartRange     = errors.New("rvtimer: hart index out of range")
	ErrNoTickParams  = errors.New("rvtimer: no prescale/step reaches the requested tick frequency")
	ErrZeroFrequency = errors.New("rvtimer: zero frequency")
)

// TickParams hold the counter rate configuration for one hart.
type TickParams struct {
	Prescale uint16
	Step     uint8
}

// ApproximateTickParams finds prescale and step so the counter ticks as
// close as possible to tickHz given the core clock. An exact divisor is
// preferred; otherwise the best approximation within the field widths is
// returned.
func ApproximateTickParams(clockHz, tickHz uint64) (TickParams, error) {
	if clockHz == 0 || tickHz == 0 {
		return TickParams{}, ErrZeroFrequency
	}
	if tickHz > clockHz {
		return TickParams{}, fmt.Errorf("%w: tick %d Hz above clock %d Hz", ErrNoTickParams, tickHz, clockHz)
	}
	best := TickParams{}
	var bestErr uint64
	found := false
	for p := uint64(0); p <= MaxPrescale; p++ {
		step := tickHz * (p + 1) / clockHz
		if step == 0 || step > MaxStep {
			continue
		}
		got := clockHz * step / (p + 1)
		diff := got - tickHz
		if tickHz > got {
			diff = tickHz - got
		}
		if !found || diff < bestErr {
			best = TickParams{Prescale: uint16(p), Step: uint8(step)}
			bestErr = diff
			found = true
		}
		if diff == 0 {
			break
		}
	}
	if !found {
		return TickParams{}, ErrNoTickParams
	}
	return best, nil
}

type Config struct {
	HartCount       int
	ComparatorCount int
}

// Timer programs one rv_timer register block.
type Timer struct {
	regs mmio.Region32
	cfg  Config
}

func New(regs mmio.Region32, cfg Config) (*Timer, error) {
	if cfg.HartCount < 1 {
		return nil, fmt.Errorf("rvtimer: hart count %d", cfg.HartCount)
	}
	return &Timer{regs: regs, cfg: cfg}, nil
}

func (t *Timer) checkHart(hart int) error {
	if hart < 0 || hart >= t.cfg.HartCount {
		return fmt.Errorf("%w: %d", ErrHartRange, hart)
	}
	return nil
}

func hartReg(hart int, reg uint32) uint32 {
	return uint32(hartBase+hart*hartStride) + reg
}

// SetTickParams programs the counter rate for one hart.
func (t *Timer) SetTickParams(hart int, p TickParams) error {
	if err := t.checkHart(hart); err != nil {
		return err
	}
	t.regs.Write32(hartReg(hart, regHartCfg), uint32(p.Prescale&MaxPrescale)|uint32(p.Step)<<16)
	return nil
}

// SetCounterEnabled starts or stops the counter for one hart. The CTRL
// register carries one active bit per hart.
func (t *Timer) SetCounterEnabled(hart int, enabled bool) error {
	if err := t.checkHart(hart); err != nil {
		return err
	}
	if enabled {
		mmio.SetBits32(t.regs, RegCtrl, 1<<uint(hart))
	} else {
		mmio.ClearBits32(t.regs, RegCtrl, 1<<uint(hart))
	}
	return nil
}

// CounterRead returns the 64-bit counter value. The upper half is read
// before and after the lower half and the read retried if it moved, so a
// carry between the two halves cannot tear the value.
func (t *Timer) CounterRead(hart int) (uint64, error) {
	if err := t.checkHart(hart); err != nil {
		return 0, err
	}
	for {
		upper := t.regs.Read32(hartReg(hart, regHartValueUpper))
		lower := t.regs.Read32(hartReg(hart, regHartValueLower))
		again := t.regs.Read32(hartReg(hart, regHartValueUpper))
		if upper == again {
			return uint64(upper)<<32 | uint64(lower), nil
		}
	}
}

// RawCounterReset zeroes the counter by writing both raw counter value
// registers directly, bypassing any reset sequencing the block offers.
func (t *Timer) RawCounterReset(hart int) error {
	if err := t.checkHart(hart); err != nil {
		return err
	}
	t.regs.Write32(hartReg(hart, regHartValueLower), 0)
	t.regs.Write32(hartReg(hart, regHartValueUpper), 0)
	return nil
}
