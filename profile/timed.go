package profile

import (
	"fmt"

	"github.com/consanii/x-heep/rvtimer"
	"github.com/consanii/x-heep/w25q"
)

// Op distinguishes the two timed directions.
type Op uint8

const (
	OpWrite Op = iota
	OpRead
)

func (o Op) String() string {
	if o == OpWrite {
		return "write"
	}
	return "read"
}

// Mode selects one cell of the speed x transport matrix.
type Mode struct {
	Quad bool
	DMA  bool
}

func (m Mode) String() string {
	s := "standard"
	if m.Quad {
		s = "quad"
	}
	if m.DMA {
		return s + "+dma"
	}
	return s + "+polled"
}

// ParseMode inverts Mode.String.
func ParseMode(s string) (Mode, error) {
	for _, m := range AllModes() {
		if m.String() == s {
			return m, nil
		}
	}
	return Mode{}, fmt.Errorf("profile: unknown mode %q", s)
}

// AllModes enumerates the full matrix in profiling order.
func AllModes() []Mode {
	return []Mode{
		{Quad: false, DMA: false},
		{Quad: false, DMA: true},
		{Quad: true, DMA: false},
		{Quad: true, DMA: true},
	}
}

// Sample is one elapsed-tick measurement. Ticks are counter ticks at the
// timer's calibrated rate, not wall-clock time.
type Sample struct {
	Op    Op
	Ticks uint64
}

// TimedWrite resets and starts the tick counter, performs the write in
// the given mode, stops the counter and returns the elapsed ticks. A
// driver error is fatal to the caller's loop; no retry happens here.
func TimedWrite(fl *w25q.Flash, tm *rvtimer.Timer, hart int, mode Mode, addr uint32, data []byte) (Sample, error) {
	ticks, err := timed(tm, hart, func() error {
		return writeOp(fl, mode)(addr, data)
	})
	if err != nil {
		return Sample{}, fmt.Errorf("timed write %s: %w", mode.String(), err)
	}
	return Sample{Op: OpWrite, Ticks: ticks}, nil
}

// TimedRead is TimedWrite for the read direction.
func TimedRead(fl *w25q.Flash, tm *rvtimer.Timer, hart int, mode Mode, addr uint32, data []byte) (Sample, error) {
	ticks, err := timed(tm, hart, func() error {
		return readOp(fl, mode)(addr, data)
	})
	if err != nil {
		return Sample{}, fmt.Errorf("timed read %s: %w", mode.String(), err)
	}
	return Sample{Op: OpRead, Ticks: ticks}, nil
}

func timed(tm *rvtimer.Timer, hart int, op func() error) (uint64, error) {
	// Reset writes both raw counter halves directly so each measurement
	// starts from zero.
	if err := tm.RawCounterReset(hart); err != nil {
		return 0, err
	}
	if err := tm.SetCounterEnabled(hart, true); err != nil {
		return 0, err
	}
	opErr := op()
	if err := tm.SetCounterEnabled(hart, false); err != nil {
		return 0, err
	}
	if opErr != nil {
		return 0, opErr
	}
	return tm.CounterRead(hart)
}

func writeOp(fl *w25q.Flash, m Mode) func(uint32, []byte) error {
	switch {
	case m.Quad && m.DMA:
		return fl.WriteQuadDMA
	case m.Quad:
		return fl.WriteQuad
	case m.DMA:
		return fl.WriteStandardDMA
	default:
		return fl.WriteStandard
	}
}

func readOp(fl *w25q.Flash, m Mode) func(uint32, []byte) error {
	switch {
	case m.Quad && m.DMA:
		return fl.ReadQuadDMA
	case m.Quad:
		return fl.ReadQuad
	case m.DMA:
		return fl.ReadStandardDMA
	default:
		return fl.ReadStandard
	}
}
