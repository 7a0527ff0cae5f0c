package w25q

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"golang.org/x/exp/constraints"

	"github.com/consanii/x-heep/dma"
	"github.com/consanii/x-heep/spihost"
)

// ReadStandard reads len(data) bytes starting at addr using single-line
// transfers, draining the RX FIFO from the CPU.
func (f *Flash) ReadStandard(addr uint32, data []byte) error {
	return f.read(addr, data, false, false)
}

// ReadStandardDMA is ReadStandard with the RX FIFO drained by the DMA
// engine.
func (f *Flash) ReadStandardDMA(addr uint32, data []byte) error {
	return f.read(addr, data, false, true)
}

// ReadQuad reads len(data) bytes starting at addr with a Fast Read Quad
// I/O sequence: opcode at standard speed, reversed address plus mode byte
// at quad speed, the part's dummy cycles, then the data phase on four
// lines.
func (f *Flash) ReadQuad(addr uint32, data []byte) error {
	return f.read(addr, data, true, false)
}

// ReadQuadDMA is ReadQuad with the RX FIFO drained by the DMA engine.
func (f *Flash) ReadQuadDMA(addr uint32, data []byte) error {
	return f.read(addr, data, true, true)
}

// WriteStandard programs len(data) bytes starting at addr using
// single-line transfers. Writes are split on page boundaries; a
// misaligned start address is handled with a short first page.
func (f *Flash) WriteStandard(addr uint32, data []byte) error {
	return f.write(addr, data, false, false)
}

// WriteStandardDMA is WriteStandard with the TX FIFO filled by the DMA
// engine.
func (f *Flash) WriteStandardDMA(addr uint32, data []byte) error {
	return f.write(addr, data, false, true)
}

// WriteQuad programs len(data) bytes starting at addr, sending the data
// phase on four lines (Quad Input Page Program).
func (f *Flash) WriteQuad(addr uint32, data []byte) error {
	return f.write(addr, data, true, false)
}

// WriteQuadDMA is WriteQuad with the TX FIFO filled by the DMA engine.
func (f *Flash) WriteQuadDMA(addr uint32, data []byte) error {
	return f.write(addr, data, true, true)
}

func (f *Flash) readTransaction(addr uint32, length int, quad bool) spihost.Transaction {
	if !quad {
		return spihost.Transaction{
			{
				Cmd:     spihost.Command{Len: 4, Speed: spihost.SpeedStandard, Direction: spihost.DirTxOnly},
				TxWords: []uint32{cmdAddrWord(opRead, addr)},
			},
			{Cmd: spihost.Command{Len: length, Speed: spihost.SpeedStandard, Direction: spihost.DirRxOnly}},
		}
	}
	return spihost.Transaction{
		{
			Cmd:     spihost.Command{Len: 1, Speed: spihost.SpeedStandard, Direction: spihost.DirTxOnly},
			TxWords: []uint32{opFastReadQuadIO},
		},
		{
			// Reversed 24-bit address followed by the Fxh mode byte, all
			// four bytes on the wire at quad speed.
			Cmd:     spihost.Command{Len: 4, Speed: spihost.SpeedQuad, Direction: spihost.DirTxOnly},
			TxWords: []uint32{spihost.ReverseAddr24(addr&addrMask) | quadIOModeByte<<24},
		},
		{Cmd: spihost.Command{Len: f.params.DummyClocks, Speed: spihost.SpeedQuad, Direction: spihost.DirDummy}},
		{Cmd: spihost.Command{Len: length, Speed: spihost.SpeedQuad, Direction: spihost.DirRxOnly}},
	}
}

func (f *Flash) read(addr uint32, data []byte, quad, useDMA bool) error {
	if err := f.sanityChecks(addr, data); err != nil {
		return err
	}
	if useDMA && f.dmac == nil {
		return fmt.Errorf("w25q: no dma controller configured")
	}
	length := len(data)
	txn := f.readTransaction(addr, length, quad)

	if useDMA {
		return f.readDMA(txn, data)
	}

	// First chunk completes through the interrupt latch; later chunks are
	// gated by the watermark status poll.
	f.host.SetRxWatermark(firstWatermark(length))
	if err := f.comp.Arm(); err != nil {
		return err
	}
	if err := f.host.Issue(txn); err != nil {
		return err
	}
	if err := f.comp.Wait(); err != nil {
		return err
	}
	return f.drainRx(data)
}

// drainRx empties the RX FIFO into data, one FIFO depth at a time. The
// trailing partial word, zero-padded by the host when the segment ended,
// is copied only over its valid bytes.
func (f *Flash) drainRx(data []byte) error {
	length := len(data)
	remaining := length
	toRead := 0
	iStart := 0
	for remaining > 0 {
		if remaining < spihost.RxFIFODepthBytes {
			f.host.SetRxWatermark(ceilWords(remaining))
			toRead += remaining
			remaining = 0
		} else {
			f.host.SetRxWatermark(spihost.RxFIFODepthBytes / 4)
			remaining -= spihost.RxFIFODepthBytes
			toRead += spihost.RxFIFODepthBytes
		}
		if err := f.host.WaitRxWatermark(); err != nil {
			return err
		}
		for i := iStart; i < toRead/4; i++ {
			binary.LittleEndian.PutUint32(data[i*4:], f.host.ReadWord())
		}
		iStart = toRead / 4
	}
	if length%4 != 0 {
		last := f.host.ReadWord()
		var lastBytes [4]byte
		binary.LittleEndian.PutUint32(lastBytes[:], last)
		copy(data[length-length%4:], lastBytes[:length%4])
	}
	return nil
}

// readDMA launches the DMA drain before issuing the transaction, the way
// the hardware engine is armed before data starts flowing, then polls it
// to completion. DMA moves whole words, so a word-aligned staging buffer
// receives the transfer and the requested bytes are copied out.
func (f *Flash) readDMA(txn spihost.Transaction, data []byte) error {
	length := len(data)
	words := make([]uint32, ceilWords(length))
	t := &dma.Transaction{
		Src:    dma.Target{Port: f.host.RxPort()},
		Dst:    dma.Target{Mem: words},
		SizeDU: len(words),
	}
	if err := f.dmac.Load(t); err != nil {
		return err
	}
	if err := f.dmac.Launch(); err != nil {
		return err
	}
	if err := f.host.Issue(txn); err != nil {
		return err
	}
	if err := f.waitDMAReady(); err != nil {
		return err
	}
	unpackWords(data, words)
	return nil
}

func (f *Flash) waitDMAReady() error {
	for i := 0; i < f.budget; i++ {
		if f.dmac.IsReady() {
			return nil
		}
	}
	return fmt.Errorf("%w: dma ready", spihost.ErrPollBudget)
}

// write splits the request on page boundaries and programs one page at a
// time; the part cannot program across a page.
func (f *Flash) write(addr uint32, data []byte, quad, useDMA bool) error {
	if err := f.sanityChecks(addr, data); err != nil {
		return err
	}
	if useDMA && f.dmac == nil {
		return fmt.Errorf("w25q: no dma controller configured")
	}
	pageSize := uint32(f.params.PageSize)

	if addr%pageSize != 0 {
		head := int(pageSize - addr%pageSize)
		if head > len(data) {
			head = len(data)
		}
		if err := f.pageWrite(addr, data[:head], quad, useDMA); err != nil {
			return err
		}
		addr += uint32(head)
		data = data[head:]
	}
	for len(data) > 0 {
		chunk := len(data)
		if chunk > int(pageSize) {
			chunk = int(pageSize)
		}
		if err := f.pageWrite(addr, data[:chunk], quad, useDMA); err != nil {
			return err
		}
		addr += uint32(chunk)
		data = data[chunk:]
	}
	return nil
}

// pageWrite programs up to one page: write enable, the command+address
// segment with chip select held, then the data phase at the selected
// speed. The completion latch gates the end of the transaction and the
// BUSY poll covers the part's internal program time.
func (f *Flash) pageWrite(addr uint32, data []byte, quad, useDMA bool) error {
	if len(data) == 0 {
		return nil
	}
	if err := f.writeEnable(); err != nil {
		return err
	}

	op := byte(opPageProgram)
	speed := spihost.SpeedStandard
	if quad {
		op = opQuadPageProgram
		speed = spihost.SpeedQuad
	}
	dataSeg := spihost.Segment{
		Cmd: spihost.Command{Len: len(data), Speed: speed, Direction: spihost.DirTxOnly},
	}
	if useDMA {
		words := packWords(data)
		t := &dma.Transaction{
			Src:    dma.Target{Mem: words},
			Dst:    dma.Target{Port: f.host.TxPort()},
			SizeDU: len(words),
		}
		dataSeg.Fill = func() error {
			if err := f.dmac.Load(t); err != nil {
				return err
			}
			if err := f.dmac.Launch(); err != nil {
				return err
			}
			return f.waitDMAReady()
		}
	} else {
		dataSeg.TxWords = packWords(data)
	}

	txn := spihost.Transaction{
		{
			Cmd:     spihost.Command{Len: 4, Speed: spihost.SpeedStandard, Direction: spihost.DirTxOnly},
			TxWords: []uint32{cmdAddrWord(op, addr)},
		},
		dataSeg,
	}
	if err := f.comp.Arm(); err != nil {
		return err
	}
	if err := f.host.Issue(txn); err != nil {
		return err
	}
	if err := f.comp.Wait(); err != nil {
		return err
	}
	f.debug("page programmed", slog.Uint64("addr", uint64(addr)), slog.Int("len", len(data)))
	return f.waitFlashReady()
}

func ceilWords[T constraints.Integer](nbytes T) T {
	return (nbytes + 3) / 4
}

// packWords packs bytes into little-endian TX words, zero-padding the
// trailing partial word.
func packWords(data []byte) []uint32 {
	words := make([]uint32, ceilWords(len(data)))
	for i := range words {
		var w [4]byte
		copy(w[:], data[i*4:])
		words[i] = binary.LittleEndian.Uint32(w[:])
	}
	return words
}

// unpackWords copies len(data) bytes out of the word buffer.
func unpackWords(data []byte, words []uint32) {
	for i, w := range words {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], w)
		copy(data[i*4:], b[:])
	}
}

// firstWatermark is the RX watermark, in words, armed before a read is
// issued: the full transfer when it fits the FIFO, one FIFO depth
// otherwise.
func firstWatermark(nbytes int) int {
	if nbytes >= spihost.RxFIFODepthBytes {
		return spihost.RxFIFODepthBytes / 4
	}
	return ceilWords(nbytes)
}
