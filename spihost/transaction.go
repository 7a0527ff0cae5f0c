package spihost

import "fmt"

// Segment is one phase of a transaction: segment descriptor plus the
// literal words (opcode, address, status payloads) pushed to the TX FIFO
// before the descriptor is issued. Data-phase payloads streamed by the
// caller or the DMA engine are not part of the segment.
type Segment struct {
	Cmd     Command
	TxWords []uint32
	// Fill, when set, runs after TxWords are pushed and before the
	// descriptor is programmed. The DMA write path uses it to stream the
	// data phase into the TX FIFO.
	Fill func() error
}

// Transaction is an ordered list of segments sharing one chip select
// assertion. The sequencer manages chip select continuity itself: every
// segment but the last is issued with CSAAT set, and the last segment
// clears it, releasing the device.
type Transaction []Segment

// Issue runs the transaction through the host command queue. Each segment
// is gated by its own readiness poll, so segments execute strictly in
// program order. Exactly one transaction may be in flight on a chip; the
// caller is responsible for not interleaving a second one.
func (h *Host) Issue(txn Transaction) error {
	if len(txn) == 0 {
		return fmt.Errorf("spihost: empty transaction")
	}
	for i, seg := range txn {
		seg.Cmd.CSAAT = i != len(txn)-1
		enc, err := seg.Cmd.Encode()
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		for _, w := range seg.TxWords {
			h.WriteWord(w)
		}
		if seg.Fill != nil {
			if err := seg.Fill(); err != nil {
				return fmt.Errorf("segment %d fill: %w", i, err)
			}
		}
		h.setCommand(enc)
		if err := h.WaitReady(); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return nil
}

// ReverseAddr24 swaps bytes 0 and 2 of a 24-bit address. The flash expects
// the most significant address byte first on the wire, the opposite of the
// host's native word layout. Applying it twice yields the original
// address.
func ReverseAddr24(addr uint32) uint32 {
	return (addr&0xff0000)>>16 | addr&0x00ff00 | (addr&0x0000ff)<<16
}
