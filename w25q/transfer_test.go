package w25q

import (
	"testing"

	"github.com/consanii/x-heep/board"
	"github.com/consanii/x-heep/spihost"
)

func TestQuadReadAddressSegment(t *testing.T) {
	f := &Flash{params: board.FlashParams{DummyClocks: 8}}
	txn := f.readTransaction(0x012345, 64, true)
	if len(txn) != 4 {
		t.Fatalf("quad read built %d segments, want 4", len(txn))
	}

	seg := txn[1]
	// 3 address bytes plus the mode byte, 4 on the wire.
	if seg.Cmd.Len != 4 {
		t.Errorf("address segment length is %d, want 4", seg.Cmd.Len)
	}
	if seg.Cmd.Speed != spihost.SpeedQuad || seg.Cmd.Direction != spihost.DirTxOnly {
		t.Errorf("address segment is %v/%v, want quad tx", seg.Cmd.Speed, seg.Cmd.Direction)
	}
	if len(seg.TxWords) != 1 {
		t.Fatalf("address segment carries %d words, want 1", len(seg.TxWords))
	}
	word := seg.TxWords[0]
	if got := word & 0xffffff; got != spihost.ReverseAddr24(0x012345) {
		t.Errorf("address bytes are %#06x, want %#06x", got, spihost.ReverseAddr24(0x012345))
	}
	if mode := byte(word >> 24); mode&0xf0 != 0xf0 {
		t.Errorf("mode byte is %#02x, want Fxh", mode)
	}

	if txn[2].Cmd.Len != 8 || txn[2].Cmd.Direction != spihost.DirDummy {
		t.Errorf("dummy segment is %+v, want 8 dummy clocks", txn[2].Cmd)
	}
}
