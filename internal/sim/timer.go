package sim

import "github.com/consanii/x-heep/rvtimer"

// timerIP models the rv_timer block for hart 0. The counter advances
// off the SoC cycle budget: while enabled, elapsed core cycles scaled by
// step/(prescale+1) accumulate into the 64-bit value.
type timerIP struct {
	soc *SoC

	ctrl      uint32
	cfg       uint32
	raw       uint64
	cycleMark uint64
}

func newTimerIP(s *SoC) *timerIP { return &timerIP{soc: s} }

func (t *timerIP) enabled() bool { return t.ctrl&1 != 0 }

func (t *timerIP) value() uint64 {
	v := t.raw
	if t.enabled() {
		prescale := uint64(t.cfg & 0xfff)
		step := uint64((t.cfg >> 16) & 0xff)
		v += (t.soc.cycles - t.cycleMark) * step / (prescale + 1)
	}
	return v
}

func (t *timerIP) Read32(offset uint32) uint32 {
	switch offset {
	case rvtimer.RegCtrl:
		return t.ctrl
	case hart0Cfg:
		return t.cfg
	case hart0Lower:
		return uint32(t.value())
	case hart0Upper:
		return uint32(t.value() >> 32)
	}
	return 0
}

func (t *timerIP) Write32(offset, value uint32) {
	switch offset {
	case rvtimer.RegCtrl:
		if value&1 != 0 && !t.enabled() {
			t.cycleMark = t.soc.cycles
		} else if value&1 == 0 && t.enabled() {
			t.raw = t.value()
		}
		t.ctrl = value
	case hart0Cfg:
		t.cfg = value
	case hart0Lower:
		t.raw = t.raw&^uint64(0xffffffff) | uint64(value)
		t.cycleMark = t.soc.cycles
	case hart0Upper:
		t.raw = t.raw&0xffffffff | uint64(value)<<32
		t.cycleMark = t.soc.cycles
	}
}

const (
	hart0Cfg   = 0x100
	hart0Lower = 0x104
	hart0Upper = 0x108
)
