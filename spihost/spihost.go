// Package spihost drives the SPI host IP: it encodes command segments,
// sequences them into transactions over the host's command queue, and
// provides the interrupt-completed wait primitive the flash driver blocks
// on.
package spihost

import (
	"errors"
	"fmt"

	"github.com/consanii/x-heep/mmio"
)

// Register block byte offsets.
const (
	RegIntrState   = 0x00
	RegIntrEnable  = 0x04
	RegControl     = 0x10
	RegStatus      = 0x14
	RegConfigOpts  = 0x18
	RegCSID        = 0x1c
	RegCommand     = 0x20
	RegRxData      = 0x24
	RegTxData      = 0x28
	RegEventEnable = 0x2c
)

// CONTROL register bits.
const (
	ctrlSPIEnBit    = 1 << 31
	ctrlOutputEnBit = 1 << 29
	ctrlTxWmPos     = 0
	ctrlRxWmPos     = 8
	ctrlWmMask      = 0xff
)

// STATUS register bits.
const (
	statusReadyBit  = 1 << 31
	statusActiveBit = 1 << 30
	statusRxWmBit   = 1 << 20
	statusTxQDPos   = 0
	statusRxQDPos   = 8
	statusQDMask    = 0xff
)

// Interrupt source bits, shared by INTR_STATE and INTR_ENABLE.
const (
	IntrEvent uint32 = 1 << 0 // command queue event (transaction done, idle)
	IntrRxWm  uint32 = 1 << 1 // RX queue depth crossed the watermark
)

// RxFIFODepthBytes is the RX queue capacity. Reads longer than this drain
// the queue in watermark-gated chunks.
const RxFIFODepthBytes = 256

// ErrPollBudget reports that a register readiness poll did not complete
// within the configured budget. The hardware has no timeout of its own;
// the budget bounds what would otherwise be an indefinite hang.
var ErrPollBudget = errors.New("spihost: poll budget exhausted")

// DefaultPollBudget is generous next to any real transfer: a stuck ready
// bit is a wedged peripheral, not a slow one.
const DefaultPollBudget = 1 << 20

type Config struct {
	// PollBudget bounds every readiness poll loop. Zero selects
	// DefaultPollBudget.
	PollBudget int
}

// Host programs one SPI host register block. It is not safe for concurrent
// use; the protocol allows a single in-flight transaction per chip and the
// callers are strictly sequential.
type Host struct {
	regs   mmio.Region32
	budget int
}

func New(regs mmio.Region32, cfg Config) *Host {
	if cfg.PollBudget == 0 {
		cfg.PollBudget = DefaultPollBudget
	}
	return &Host{regs: regs, budget: cfg.PollBudget}
}

// SetEnable turns the SPI host block on or off.
func (h *Host) SetEnable(enable bool) {
	if enable {
		mmio.SetBits32(h.regs, RegControl, ctrlSPIEnBit)
	} else {
		mmio.ClearBits32(h.regs, RegControl, ctrlSPIEnBit)
	}
}

// OutputEnable drives or releases the SPI output lines.
func (h *Host) OutputEnable(enable bool) {
	if enable {
		mmio.SetBits32(h.regs, RegControl, ctrlOutputEnBit)
	} else {
		mmio.ClearBits32(h.regs, RegControl, ctrlOutputEnBit)
	}
}

// ConfigOpts holds per-chip bus timing configuration.
type ConfigOpts struct {
	ClkDiv   uint16 // SPI clock = core clock / (2 + 2*ClkDiv)
	CSNIdle  uint8  // minimum CSn inactive cycles between commands
	CSNTrail uint8  // cycles between last clock edge and CSn deassert
	CSNLead  uint8  // cycles between CSn assert and first clock edge
	FullCyc  bool
	CPHA     bool
	CPOL     bool
}

func (o ConfigOpts) encode() uint32 {
	enc := uint32(o.ClkDiv)
	enc |= uint32(o.CSNIdle&0xf) << 16
	enc |= uint32(o.CSNTrail&0xf) << 20
	enc |= uint32(o.CSNLead&0xf) << 24
	enc |= b2u32(o.FullCyc) << 29
	enc |= b2u32(o.CPHA) << 30
	enc |= b2u32(o.CPOL) << 31
	return enc
}

// SetConfigOpts programs the bus timing for chip select csid.
func (h *Host) SetConfigOpts(csid int, opts ConfigOpts) {
	h.regs.Write32(RegConfigOpts+uint32(csid)*4, opts.encode())
}

// SetCSID selects which chip the next commands address.
func (h *Host) SetCSID(csid int) {
	h.regs.Write32(RegCSID, uint32(csid))
}

// SetTxWatermark sets the TX queue depth, in words, below which the event
// interrupt may fire.
func (h *Host) SetTxWatermark(words int) {
	v := h.regs.Read32(RegControl)
	v &^= ctrlWmMask << ctrlTxWmPos
	v |= uint32(words&ctrlWmMask) << ctrlTxWmPos
	h.regs.Write32(RegControl, v)
}

// SetRxWatermark sets the RX queue depth, in words, at which the watermark
// interrupt fires.
func (h *Host) SetRxWatermark(words int) {
	v := h.regs.Read32(RegControl)
	v &^= ctrlWmMask << ctrlRxWmPos
	v |= uint32(words&ctrlWmMask) << ctrlRxWmPos
	h.regs.Write32(RegControl, v)
}

// WriteWord pushes one word onto the TX FIFO.
func (h *Host) WriteWord(w uint32) {
	h.regs.Write32(RegTxData, w)
}

// ReadWord pops one word from the RX FIFO.
func (h *Host) ReadWord() uint32 {
	return h.regs.Read32(RegRxData)
}

// Ready reports whether the command queue can accept another segment.
func (h *Host) Ready() bool {
	return h.regs.Read32(RegStatus)&statusReadyBit != 0
}

// RxQueueDepth returns the RX FIFO occupancy in words.
func (h *Host) RxQueueDepth() int {
	return int(h.regs.Read32(RegStatus) >> statusRxQDPos & statusQDMask)
}

// TxQueueDepth returns the TX FIFO occupancy in words.
func (h *Host) TxQueueDepth() int {
	return int(h.regs.Read32(RegStatus) >> statusTxQDPos & statusQDMask)
}

// WaitReady polls until the command queue accepts another segment. This is
// the per-segment readiness gate, distinct from the completion signal.
func (h *Host) WaitReady() error {
	for i := 0; i < h.budget; i++ {
		if h.Ready() {
			return nil
		}
	}
	return fmt.Errorf("%w: command ready", ErrPollBudget)
}

// WaitRxWatermark polls until the RX queue reaches the configured
// watermark.
func (h *Host) WaitRxWatermark() error {
	for i := 0; i < h.budget; i++ {
		if h.regs.Read32(RegStatus)&statusRxWmBit != 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: rx watermark", ErrPollBudget)
}

// EnableEvtIntr gates the command event interrupt source.
func (h *Host) EnableEvtIntr(enable bool) {
	if enable {
		mmio.SetBits32(h.regs, RegIntrEnable, IntrEvent)
	} else {
		mmio.ClearBits32(h.regs, RegIntrEnable, IntrEvent)
	}
}

// EnableRxwmIntr gates the RX watermark interrupt source.
func (h *Host) EnableRxwmIntr(enable bool) {
	if enable {
		mmio.SetBits32(h.regs, RegIntrEnable, IntrRxWm)
	} else {
		mmio.ClearBits32(h.regs, RegIntrEnable, IntrRxWm)
	}
}

// ClearIntrState acknowledges the given interrupt sources.
func (h *Host) ClearIntrState(mask uint32) {
	h.regs.Write32(RegIntrState, mask)
}

// setCommand writes an encoded segment descriptor to the COMMAND register,
// starting its execution.
func (h *Host) setCommand(encoded uint32) {
	h.regs.Write32(RegCommand, encoded)
}

// TxPort returns a word port view of the TX FIFO for DMA use.
func (h *Host) TxPort() TxFIFO { return TxFIFO{h} }

// RxPort returns a word port view of the RX FIFO for DMA use.
func (h *Host) RxPort() RxFIFO { return RxFIFO{h} }

// TxFIFO adapts the host TX data register to a DMA word port.
type TxFIFO struct{ h *Host }

func (p TxFIFO) ReadWord() (uint32, bool) { return 0, false }

func (p TxFIFO) WriteWord(w uint32) bool {
	p.h.WriteWord(w)
	return true
}

// RxFIFO adapts the host RX data register to a DMA word port.
type RxFIFO struct{ h *Host }

func (p RxFIFO) ReadWord() (uint32, bool) {
	if p.h.RxQueueDepth() == 0 {
		return 0, false
	}
	return p.h.ReadWord(), true
}

func (p RxFIFO) WriteWord(uint32) bool { return false }

func b2u32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
