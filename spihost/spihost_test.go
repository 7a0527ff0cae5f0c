package spihost

import (
	"errors"
	"testing"
)

type regWrite struct {
	offset uint32
	value  uint32
}

// fakeRegs is a scriptable register block. STATUS reads come from
// statusSeq, the last entry repeating; everything else is backed by a
// plain map.
type fakeRegs struct {
	mem       map[uint32]uint32
	writes    []regWrite
	statusSeq []uint32
	statusIdx int
}

func newFakeRegs(status ...uint32) *fakeRegs {
	if len(status) == 0 {
		status = []uint32{1 << 31} // ready
	}
	return &fakeRegs{mem: make(map[uint32]uint32), statusSeq: status}
}

func (f *fakeRegs) Read32(offset uint32) uint32 {
	if offset == RegStatus {
		v := f.statusSeq[f.statusIdx]
		if f.statusIdx < len(f.statusSeq)-1 {
			f.statusIdx++
		}
		return v
	}
	return f.mem[offset]
}

func (f *fakeRegs) Write32(offset, value uint32) {
	f.mem[offset] = value
	f.writes = append(f.writes, regWrite{offset, value})
}

func (f *fakeRegs) commandWrites() []uint32 {
	var cmds []uint32
	for _, w := range f.writes {
		if w.offset == RegCommand {
			cmds = append(cmds, w.value)
		}
	}
	return cmds
}

func TestWatermarkFields(t *testing.T) {
	regs := newFakeRegs()
	h := New(regs, Config{})
	h.SetRxWatermark(5)
	h.SetTxWatermark(3)
	ctrl := regs.mem[RegControl]
	if got := ctrl >> ctrlRxWmPos & ctrlWmMask; got != 5 {
		t.Errorf("rx watermark %d, want 5", got)
	}
	if got := ctrl >> ctrlTxWmPos & ctrlWmMask; got != 3 {
		t.Errorf("tx watermark %d, want 3", got)
	}
}

func TestEnableBits(t *testing.T) {
	regs := newFakeRegs()
	h := New(regs, Config{})
	h.SetEnable(true)
	h.OutputEnable(true)
	if regs.mem[RegControl]&ctrlSPIEnBit == 0 {
		t.Error("spi enable bit not set")
	}
	if regs.mem[RegControl]&ctrlOutputEnBit == 0 {
		t.Error("output enable bit not set")
	}
	h.SetEnable(false)
	if regs.mem[RegControl]&ctrlSPIEnBit != 0 {
		t.Error("spi enable bit not cleared")
	}
	if regs.mem[RegControl]&ctrlOutputEnBit == 0 {
		t.Error("output enable bit clobbered")
	}
}

func TestIssueSequencesSegments(t *testing.T) {
	regs := newFakeRegs()
	h := New(regs, Config{})
	txn := Transaction{
		{Cmd: Command{Len: 1, Speed: SpeedStandard, Direction: DirTxOnly}, TxWords: []uint32{0xeb}},
		{Cmd: Command{Len: 3, Speed: SpeedQuad, Direction: DirTxOnly}, TxWords: []uint32{0xff123456}},
		{Cmd: Command{Len: 8, Speed: SpeedQuad, Direction: DirDummy}},
		{Cmd: Command{Len: 32, Speed: SpeedQuad, Direction: DirRxOnly}},
	}
	if err := h.Issue(txn); err != nil {
		t.Fatal(err)
	}

	cmds := regs.commandWrites()
	if len(cmds) != 4 {
		t.Fatalf("%d command writes, want 4", len(cmds))
	}
	for i, enc := range cmds {
		wantCSAAT := i != len(cmds)-1
		if got := enc&cmdCSAATBit != 0; got != wantCSAAT {
			t.Errorf("segment %d csaat %v, want %v", i, got, wantCSAAT)
		}
	}

	// TX words must land in the FIFO before their segment descriptor.
	var sawFirstData bool
	for _, w := range regs.writes {
		if w.offset == RegTxData && w.value == 0xeb {
			sawFirstData = true
		}
		if w.offset == RegCommand {
			break
		}
	}
	if !sawFirstData {
		t.Error("opcode word written after descriptor")
	}
}

func TestIssueEmpty(t *testing.T) {
	h := New(newFakeRegs(), Config{})
	if err := h.Issue(Transaction{}); err == nil {
		t.Error("empty transaction accepted")
	}
}

func TestIssueRejectsBadSegment(t *testing.T) {
	h := New(newFakeRegs(), Config{})
	txn := Transaction{{Cmd: Command{Len: 0, Direction: DirTxOnly}}}
	if err := h.Issue(txn); !errors.Is(err, ErrSegmentLen) {
		t.Errorf("got %v, want %v", err, ErrSegmentLen)
	}
}

func TestWaitReadyBudget(t *testing.T) {
	regs := newFakeRegs(0) // never ready
	h := New(regs, Config{PollBudget: 8})
	if err := h.WaitReady(); !errors.Is(err, ErrPollBudget) {
		t.Errorf("got %v, want %v", err, ErrPollBudget)
	}
}

func TestWaitRxWatermark(t *testing.T) {
	regs := newFakeRegs(0, 0, statusRxWmBit)
	h := New(regs, Config{PollBudget: 8})
	if err := h.WaitRxWatermark(); err != nil {
		t.Fatal(err)
	}

	regs = newFakeRegs(0)
	h = New(regs, Config{PollBudget: 8})
	if err := h.WaitRxWatermark(); !errors.Is(err, ErrPollBudget) {
		t.Errorf("got %v, want %v", err, ErrPollBudget)
	}
}

func TestRxPortEmpty(t *testing.T) {
	regs := newFakeRegs(0) // zero rx queue depth
	h := New(regs, Config{})
	if _, ok := h.RxPort().ReadWord(); ok {
		t.Error("read from empty rx fifo reported ok")
	}
}
