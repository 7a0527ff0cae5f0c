package spihost

import (
	"errors"
	"testing"
)

func TestCommandEncodeLayout(t *testing.T) {
	cmd := Command{Len: 32, Speed: SpeedQuad, Direction: DirRxOnly}
	enc, err := cmd.Encode()
	if err != nil {
		t.Fatal(err)
	}
	want := uint32(31) | 2<<25 | 1<<27
	if enc != want {
		t.Errorf("encoded %#x, want %#x", enc, want)
	}

	cmd.CSAAT = true
	enc, err = cmd.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if enc&cmdCSAATBit == 0 {
		t.Error("csaat bit not set")
	}
}

func TestCommandRoundTrip(t *testing.T) {
	cmds := []Command{
		{Len: 1, Speed: SpeedStandard, Direction: DirTxOnly},
		{Len: 4, CSAAT: true, Speed: SpeedStandard, Direction: DirTxOnly},
		{Len: 8, CSAAT: true, Speed: SpeedQuad, Direction: DirDummy},
		{Len: 256, Speed: SpeedQuad, Direction: DirRxOnly},
		{Len: MaxSegmentLen, Speed: SpeedDual, Direction: DirRxOnly},
		{Len: 2, Speed: SpeedStandard, Direction: DirBidir},
	}
	for _, cmd := range cmds {
		enc, err := cmd.Encode()
		if err != nil {
			t.Fatalf("%v: %v", cmd, err)
		}
		if got := DecodeCommand(enc); got != cmd {
			t.Errorf("decoded %v, want %v", got, cmd)
		}
	}
}

func TestCommandEncodeErrors(t *testing.T) {
	cases := []struct {
		cmd Command
		err error
	}{
		{Command{Len: 0, Direction: DirTxOnly}, ErrSegmentLen},
		{Command{Len: MaxSegmentLen + 1, Direction: DirTxOnly}, ErrSegmentLen},
		{Command{Len: 1, Speed: 3, Direction: DirTxOnly}, ErrSegmentSpeed},
		{Command{Len: 1, Speed: SpeedQuad, Direction: DirBidir}, ErrSegmentDir},
		{Command{Len: 1, Speed: SpeedDual, Direction: DirBidir}, ErrSegmentDir},
	}
	for _, tc := range cases {
		if _, err := tc.cmd.Encode(); !errors.Is(err, tc.err) {
			t.Errorf("%v: got %v, want %v", tc.cmd, err, tc.err)
		}
	}
}

func TestReverseAddr24(t *testing.T) {
	addr := uint32(0x012345)
	rev := ReverseAddr24(addr)
	if rev != 0x452301 {
		t.Errorf("reversed %#x, want 0x452301", rev)
	}
	if ReverseAddr24(rev) != addr {
		t.Error("double reversal is not identity")
	}
}
