// Package sim is a deterministic software model of the SoC the drivers
// program: the SPI host IP with its FIFOs and interrupt sources, a
// W25Q-family flash behavioral model, the rv_timer tick counter driven by
// a bus cycle budget, the fast interrupt controller enables and the hart
// interrupt gate. Everything runs synchronously on the caller's
// goroutine, so tests and the bring-up applications behave the same on
// every run.
package sim

import (
	"github.com/consanii/x-heep/mmio"
	"github.com/consanii/x-heep/socctrl"
)

type Config struct {
	CoreClockHz uint32
	// FlashSize is the modeled flash capacity in bytes.
	FlashSize uint32
	// FlashImage preloads the start of the flash array.
	FlashImage []byte
	// BusyStatusReads is how many status-register-1 polls report BUSY
	// after a program or erase before the part goes ready.
	BusyStatusReads int
	// IrqBit is the fast interrupt controller line the SPI host raises.
	IrqBit uint8
}

const (
	defaultFlashSize   = 1 << 20
	defaultBusyReads   = 2
	DefaultSPIIrqBit   = 21
	defaultCoreClockHz = 100_000_000
)

// SoC aggregates the simulated peripherals behind mmio.Region32 views.
type SoC struct {
	cfg    Config
	cycles uint64

	flash *flashModel
	host  *hostIP
	timer *timerIP

	socMux       uint32
	ficEnable    map[uint32]uint32
	mie          uint32
	globalIrqEn  bool
	pending      uint32
	isr          func(bit uint8)
	delivering   bool
	commandLimit int // <0: unlimited. Decremented per COMMAND write.
}

func New(cfg Config) *SoC {
	if cfg.CoreClockHz == 0 {
		cfg.CoreClockHz = defaultCoreClockHz
	}
	if cfg.FlashSize == 0 {
		cfg.FlashSize = defaultFlashSize
	}
	if cfg.BusyStatusReads == 0 {
		cfg.BusyStatusReads = defaultBusyReads
	}
	if cfg.IrqBit == 0 {
		cfg.IrqBit = DefaultSPIIrqBit
	}
	s := &SoC{
		cfg:          cfg,
		ficEnable:    make(map[uint32]uint32),
		globalIrqEn:  true,
		commandLimit: -1,
	}
	s.flash = newFlashModel(cfg.FlashSize, cfg.FlashImage, cfg.BusyStatusReads)
	s.host = newHostIP(s)
	s.timer = newTimerIP(s)
	return s
}

// SPIHostRegs returns the SPI host register block.
func (s *SoC) SPIHostRegs() mmio.Region32 { return s.host }

// TimerRegs returns the rv_timer register block.
func (s *SoC) TimerRegs() mmio.Region32 { return s.timer }

// SoCCtrlRegs returns the SoC control register block.
func (s *SoC) SoCCtrlRegs() mmio.Region32 { return socRegs{s} }

// FICRegs returns the fast interrupt controller register block.
func (s *SoC) FICRegs() mmio.Region32 { return ficRegs{s} }

// Gate returns the hart-level interrupt gate.
func (s *SoC) Gate() Gate { return Gate{s} }

// Core returns the machine interrupt enable surface.
func (s *SoC) Core() Core { return Core{s} }

// OnInterrupt installs the delivery callback, typically the fast
// interrupt controller's Dispatch.
func (s *SoC) OnInterrupt(fn func(bit uint8)) { s.isr = fn }

// FlashContents exposes the backing array for seeding and inspection.
func (s *SoC) FlashContents() []byte { return s.flash.mem }

// Cycles returns the core clock cycles consumed by bus activity so far.
func (s *SoC) Cycles() uint64 { return s.cycles }

// FailCommandsAfter wedges the host after n more COMMAND writes: the
// ready bit stays low, so the next readiness poll exhausts its budget.
// Used to exercise the fatal driver-error path.
func (s *SoC) FailCommandsAfter(n int) { s.commandLimit = n }

func (s *SoC) wedged() bool { return s.commandLimit == 0 }

// raise pends an interrupt line if it is enabled at the controller and
// the core, delivering immediately when the hart has interrupts on.
func (s *SoC) raise(bit uint8) {
	if s.ficEnable[0]&(1<<bit) == 0 || s.mie&(1<<bit) == 0 {
		return
	}
	s.pending |= 1 << bit
	if s.globalIrqEn {
		s.deliver()
	}
}

func (s *SoC) deliver() {
	if s.delivering || s.isr == nil {
		return
	}
	s.delivering = true
	for s.pending != 0 {
		for bit := uint8(0); bit < 32; bit++ {
			if s.pending&(1<<bit) != 0 {
				s.pending &^= 1 << bit
				s.isr(bit)
			}
		}
	}
	s.delivering = false
}

// Gate implements the hart global-interrupt toggle and the
// wait-for-interrupt primitive against the simulator.
type Gate struct{ s *SoC }

func (g Gate) SetGlobalEnable(enable bool) {
	g.s.globalIrqEn = enable
	if enable {
		g.s.deliver()
	}
}

// WaitForInterrupt models the hart suspend. Command execution is
// synchronous here, so any interrupt is already pending by the time the
// wait loop runs; the call returns immediately and the bounded wait
// loops treat that as a spurious wakeup.
func (g Gate) WaitForInterrupt() {}

// Core mirrors line enables into the machine interrupt enable mask.
type Core struct{ s *SoC }

func (c Core) EnableMachineIrq(bit uint8, enable bool) {
	if enable {
		c.s.mie |= 1 << bit
	} else {
		c.s.mie &^= 1 << bit
	}
}

// socRegs models the SoC control block.
type socRegs struct{ s *SoC }

func (r socRegs) Read32(offset uint32) uint32 {
	switch offset {
	case socctrl.RegClockFreqHz:
		return r.s.cfg.CoreClockHz
	case socctrl.RegSPIFlashMode:
		return uint32(socctrl.ModeSPIHost)
	case socctrl.RegSPIOutputMux:
		return r.s.socMux
	}
	return 0
}

func (r socRegs) Write32(offset, value uint32) {
	if offset == socctrl.RegSPIOutputMux {
		r.s.socMux = value
	}
}

// ficRegs models the fast interrupt controller enable registers.
type ficRegs struct{ s *SoC }

func (r ficRegs) Read32(offset uint32) uint32 { return r.s.ficEnable[offset] }

func (r ficRegs) Write32(offset, value uint32) { r.s.ficEnable[offset] = value }
