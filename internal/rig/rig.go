// Package rig assembles the full bring-up stack against the simulated
// SoC: host, completion latch, interrupt controller, DMA, timer and the
// flash driver, wired from a board description. The command-line tools
// and the whole-stack tests share it.
package rig

import (
	"fmt"
	"log/slog"

	"github.com/consanii/x-heep/board"
	"github.com/consanii/x-heep/dma"
	"github.com/consanii/x-heep/fic"
	"github.com/consanii/x-heep/internal/sim"
	"github.com/consanii/x-heep/rvtimer"
	"github.com/consanii/x-heep/socctrl"
	"github.com/consanii/x-heep/spihost"
	"github.com/consanii/x-heep/w25q"
)

// flashLine names the interrupt line of the SPI host wired to the flash.
const flashLine = "spi_flash"

type Options struct {
	Logger     *slog.Logger
	FlashImage []byte
	PollBudget int
}

// Rig holds the assembled stack.
type Rig struct {
	Board board.Config
	SoC   *sim.SoC
	Host  *spihost.Host
	Comp  *spihost.Completion
	FIC   *fic.Controller
	DMA   *dma.Controller
	Timer *rvtimer.Timer
	Flash *w25q.Flash
}

// New wires every block and initializes the flash.
func New(cfg board.Config, opts Options) (*Rig, error) {
	irqBit := uint8(sim.DefaultSPIIrqBit)
	for _, ln := range cfg.InterruptLines {
		if ln.Name == flashLine {
			irqBit = ln.Bit
		}
	}
	soc := sim.New(sim.Config{
		CoreClockHz: cfg.CoreClockHz,
		FlashSize:   cfg.Flash.SizeBytes,
		FlashImage:  opts.FlashImage,
		IrqBit:      irqBit,
	})

	host := spihost.New(soc.SPIHostRegs(), spihost.Config{PollBudget: opts.PollBudget})
	comp := spihost.NewCompletion(host, soc.Gate())

	ficCtl, err := fic.New(soc.FICRegs(), soc.Core(), cfg.FICLines())
	if err != nil {
		return nil, err
	}
	if err := ficCtl.Register(flashLine, comp.Service); err != nil {
		return nil, err
	}
	if err := ficCtl.EnableLine(flashLine); err != nil {
		return nil, err
	}
	soc.OnInterrupt(ficCtl.Dispatch)

	timer, err := rvtimer.New(soc.TimerRegs(), rvtimer.Config{HartCount: 1, ComparatorCount: 1})
	if err != nil {
		return nil, err
	}
	tp, err := rvtimer.ApproximateTickParams(uint64(cfg.CoreClockHz), cfg.TickHz)
	if err != nil {
		return nil, fmt.Errorf("rig: tick parameters: %w", err)
	}
	if err := timer.SetTickParams(0, tp); err != nil {
		return nil, err
	}

	dmac := dma.New()
	fl, err := w25q.New(w25q.Config{
		Host:       host,
		Completion: comp,
		DMA:        dmac,
		SoC:        socctrl.New(soc.SoCCtrlRegs()),
		Params:     cfg.Flash,
		PollBudget: opts.PollBudget,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	if err := fl.Init(); err != nil {
		return nil, fmt.Errorf("rig: flash init: %w", err)
	}

	r := &Rig{
		Board: cfg,
		SoC:   soc,
		Host:  host,
		Comp:  comp,
		FIC:   ficCtl,
		DMA:   dmac,
		Timer: timer,
		Flash: fl,
	}
	return r, nil
}
