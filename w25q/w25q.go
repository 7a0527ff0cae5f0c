// Package w25q drives a W25Q-family SPI NOR flash through the SPI host
// protocol engine. It exposes the read/write matrix (standard or quad
// speed, polled or DMA transport), the erase family and the power
// commands the bring-up applications use.
package w25q

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/consanii/x-heep/board"
	"github.com/consanii/x-heep/dma"
	"github.com/consanii/x-heep/socctrl"
	"github.com/consanii/x-heep/spihost"
)

// Flash command opcodes.
// [W25Q128JW datasheet, 8.1.2 Instruction Set Table 1]
const (
	opWriteEnable      = 0x06
	opPageProgram      = 0x02
	opQuadPageProgram  = 0x32
	opRead             = 0x03
	opFastReadQuadIO   = 0xeb
	opReadStatus1      = 0x05
	opReadStatus2      = 0x35
	opWriteStatus2     = 0x31
	opSectorErase4K    = 0x20
	opBlockErase32K    = 0x52
	opBlockErase64K    = 0xd8
	opChipErase        = 0xc7
	opResetEnable      = 0x66
	opReset            = 0x99
	opPowerDown        = 0xb9
	opReleasePowerDown = 0xab
)

// Status register 1 BUSY bit and status register 2 QE bit.
const (
	sr1BusyBit = 0x01
	sr2QEBit   = 0x02
)

// quadIOModeByte follows the reversed address in a Fast Read Quad I/O
// sequence; Fxh tells the part no continuous-read mode is wanted.
const quadIOModeByte = 0xff

const addrMask = 0x00ff_ffff

var (
	ErrMemoryMapped = errors.New("w25q: flash is memory mapped at boot, spi host cannot drive it")
	ErrAddressRange = errors.New("w25q: address out of range")
	ErrNilBuffer    = errors.New("w25q: nil data buffer")
	ErrZeroLength   = errors.New("w25q: zero length")
	ErrQuadEnable   = errors.New("w25q: QE bit did not stick")
)

type Config struct {
	Host       *spihost.Host
	Completion *spihost.Completion
	DMA        *dma.Controller
	SoC        *socctrl.Ctrl
	Params     board.FlashParams
	// PollBudget bounds the flash BUSY poll and the DMA ready poll. Zero
	// selects spihost.DefaultPollBudget.
	PollBudget int
	Logger     *slog.Logger
}

// Flash is the driver handle. One transaction is in flight at a time; the
// driver is not safe for concurrent use.
type Flash struct {
	host   *spihost.Host
	comp   *spihost.Completion
	dmac   *dma.Controller
	soc    *socctrl.Ctrl
	params board.FlashParams
	budget int
	logger *slog.Logger
}

func New(cfg Config) (*Flash, error) {
	if cfg.Host == nil || cfg.Completion == nil || cfg.SoC == nil {
		return nil, errors.New("w25q: host, completion and soc control are required")
	}
	if cfg.PollBudget == 0 {
		cfg.PollBudget = spihost.DefaultPollBudget
	}
	return &Flash{
		host:   cfg.Host,
		comp:   cfg.Completion,
		dmac:   cfg.DMA,
		soc:    cfg.SoC,
		params: cfg.Params,
		budget: cfg.PollBudget,
		logger: cfg.Logger,
	}, nil
}

// Init brings the flash and the host to a known state: output mux, the
// reset quirk word, host enable, clock divider, chip select, power up and
// the quad enable bit.
func (f *Flash) Init() error {
	if f.soc.FlashMode() == socctrl.ModeSPIMemIO {
		return ErrMemoryMapped
	}
	f.soc.SelectSPIHost()

	f.host.SetEnable(true)
	f.host.OutputEnable(true)
	f.configureClock()
	f.host.SetCSID(0)

	// The flash starts in an undefined command state after power-on;
	// clocking an all-ones word settles it before the first real command.
	err := f.host.Issue(spihost.Transaction{{
		Cmd:     spihost.Command{Len: 4, Speed: spihost.SpeedStandard, Direction: spihost.DirTxOnly},
		TxWords: []uint32{0xffff_ffff},
	}})
	if err != nil {
		return err
	}

	if err := f.powerUp(); err != nil {
		return err
	}
	if err := f.setQuadEnable(); err != nil {
		return err
	}
	f.debug("init done",
		slog.Uint64("coreClockHz", uint64(f.soc.CoreClockHz())),
		slog.Uint64("flashMaxHz", uint64(f.params.MaxClockHz)))
	return nil
}

// configureClock derives the divider so the SPI clock stays at or under
// the part's maximum: SPI clock = core clock / (2 + 2*div).
func (f *Flash) configureClock() {
	coreClk := f.soc.CoreClockHz()
	maxHz := f.params.MaxClockHz
	var div uint16
	if maxHz < coreClk/2 {
		div = uint16((coreClk/maxHz - 2) / 2)
		if coreClk/(2+2*uint32(div)) > maxHz {
			div++ // truncation left the clock too fast
		}
	}
	f.host.SetConfigOpts(0, spihost.ConfigOpts{
		ClkDiv:   div,
		CSNIdle:  0xf,
		CSNTrail: 0xf,
		CSNLead:  0xf,
	})
}

func (f *Flash) powerUp() error {
	return f.issueOp(opReleasePowerDown)
}

// PowerDown puts the flash into deep power-down.
func (f *Flash) PowerDown() error {
	return f.issueOp(opPowerDown)
}

// Reset waits for any ongoing operation, then resets the part and waits
// for the reset to finish.
func (f *Flash) Reset() error {
	if err := f.waitFlashReady(); err != nil {
		return err
	}
	if err := f.resetSequence(); err != nil {
		return err
	}
	return f.waitFlashReady()
}

// ResetForce resets the part without waiting for an ongoing operation to
// finish first.
func (f *Flash) ResetForce() error {
	if err := f.resetSequence(); err != nil {
		return err
	}
	return f.waitFlashReady()
}

func (f *Flash) resetSequence() error {
	if err := f.issueOp(opResetEnable); err != nil {
		return err
	}
	return f.issueOp(opReset)
}

// issueOp sends a one-byte command with no data phase.
func (f *Flash) issueOp(op byte) error {
	return f.host.Issue(spihost.Transaction{{
		Cmd:     spihost.Command{Len: 1, Speed: spihost.SpeedStandard, Direction: spihost.DirTxOnly},
		TxWords: []uint32{uint32(op)},
	}})
}

func (f *Flash) writeEnable() error {
	return f.issueOp(opWriteEnable)
}

// readStatus runs the two-segment status read and returns the register
// byte. The partial RX word arrives zero-padded once the segment ends.
func (f *Flash) readStatus(op byte) (uint8, error) {
	f.host.SetRxWatermark(1)
	txn := spihost.Transaction{
		{
			Cmd:     spihost.Command{Len: 1, Speed: spihost.SpeedStandard, Direction: spihost.DirTxOnly},
			TxWords: []uint32{uint32(op)},
		},
		{Cmd: spihost.Command{Len: 1, Speed: spihost.SpeedStandard, Direction: spihost.DirRxOnly}},
	}
	if err := f.host.Issue(txn); err != nil {
		return 0, err
	}
	if err := f.host.WaitRxWatermark(); err != nil {
		return 0, err
	}
	return uint8(f.host.ReadWord()), nil
}

// waitFlashReady polls the BUSY bit of status register 1 until the part
// finishes its internal program or erase cycle.
func (f *Flash) waitFlashReady() error {
	for i := 0; i < f.budget; i++ {
		sr1, err := f.readStatus(opReadStatus1)
		if err != nil {
			return err
		}
		if sr1&sr1BusyBit == 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: flash busy", spihost.ErrPollBudget)
}

// setQuadEnable sets the QE bit in status register 2 and reads it back.
// QE stays set across power cycles once programmed, so the write is
// skipped when the bit already reads 1.
func (f *Flash) setQuadEnable() error {
	sr2, err := f.readStatus(opReadStatus2)
	if err != nil {
		return err
	}
	if sr2&sr2QEBit != 0 {
		return nil
	}
	if err := f.writeEnable(); err != nil {
		return err
	}
	txn := spihost.Transaction{
		{
			Cmd:     spihost.Command{Len: 1, Speed: spihost.SpeedStandard, Direction: spihost.DirTxOnly},
			TxWords: []uint32{opWriteStatus2},
		},
		{
			Cmd:     spihost.Command{Len: 1, Speed: spihost.SpeedStandard, Direction: spihost.DirTxOnly},
			TxWords: []uint32{uint32(sr2 | sr2QEBit)},
		},
	}
	if err := f.host.Issue(txn); err != nil {
		return err
	}
	sr2, err = f.readStatus(opReadStatus2)
	if err != nil {
		return err
	}
	if sr2&sr2QEBit == 0 {
		return ErrQuadEnable
	}
	return nil
}

// cmdAddrWord packs the opcode with the byte-reversed 24-bit address into
// the single TX word the 4-byte command+address segment transmits.
func cmdAddrWord(op byte, addr uint32) uint32 {
	return spihost.ReverseAddr24(addr&addrMask)<<8 | uint32(op)
}

func (f *Flash) sanityChecks(addr uint32, data []byte) error {
	if data == nil {
		return ErrNilBuffer
	}
	if len(data) == 0 {
		return ErrZeroLength
	}
	if addr > addrMask || addr+uint32(len(data)) > addrMask {
		return fmt.Errorf("%w: %#x+%d", ErrAddressRange, addr, len(data))
	}
	return nil
}

func (f *Flash) debug(msg string, attrs ...slog.Attr) {
	f.logattrs(slog.LevelDebug, msg, attrs...)
}

func (f *Flash) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if f.logger != nil {
		f.logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
