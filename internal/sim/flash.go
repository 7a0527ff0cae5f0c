package sim

// flashModel is a behavioral W25Q-family part. It parses the byte
// stream one chip-select assertion at a time: opcode, then address and
// data depending on the opcode. Programs and erases commit on deselect
// and report BUSY for a configured number of status polls afterwards.
type flashModel struct {
	mem       []byte
	busyReads int
	busyLeft  int

	selected bool
	powered  bool
	writeEn  bool
	resetArm bool
	sr2      uint8

	in      []byte
	parsed  bool
	op      byte
	addr    uint32
	modeOK  bool
	dummies int
}

const (
	fOpWriteEnable  = 0x06
	fOpPageProgram  = 0x02
	fOpPageProgram4 = 0x32
	fOpRead         = 0x03
	fOpReadQuadIO   = 0xeb
	fOpReadStatus1  = 0x05
	fOpReadStatus2  = 0x35
	fOpWriteStatus2 = 0x31
	fOpErase4K      = 0x20
	fOpErase32K     = 0x52
	fOpErase64K     = 0xd8
	fOpEraseChip    = 0xc7
	fOpResetEnable  = 0x66
	fOpReset        = 0x99
	fOpPowerDown    = 0xb9
	fOpReleasePD    = 0xab

	flashQEBit = 1 << 1
)

func newFlashModel(size uint32, image []byte, busyReads int) *flashModel {
	f := &flashModel{
		mem:       make([]byte, size),
		busyReads: busyReads,
		powered:   true,
	}
	for i := range f.mem {
		f.mem[i] = 0xff
	}
	copy(f.mem, image)
	return f
}

func (f *flashModel) Select() {
	f.selected = true
	f.in = f.in[:0]
	f.parsed = false
	f.op = 0
	f.modeOK = false
	f.dummies = 0
}

func (f *flashModel) In(b byte) {
	if !f.selected {
		return
	}
	f.in = append(f.in, b)
}

func (f *flashModel) Dummy(cycles int) {
	f.parse()
	f.dummies += cycles
}

// Out clocks one byte out of the part.
func (f *flashModel) Out() byte {
	f.parse()
	if !f.powered && f.op != fOpReleasePD {
		return 0xff
	}
	switch f.op {
	case fOpReadStatus1:
		if f.busyLeft > 0 {
			f.busyLeft--
			return 0x01
		}
		return 0x00
	case fOpReadStatus2:
		return f.sr2
	case fOpRead:
		return f.readByte()
	case fOpReadQuadIO:
		if f.sr2&flashQEBit == 0 || !f.modeOK || f.dummies < 4 {
			return 0xff
		}
		return f.readByte()
	case fOpReleasePD:
		return 0x17 // device ID
	}
	return 0xff
}

func (f *flashModel) readByte() byte {
	if f.addr >= uint32(len(f.mem)) {
		return 0xff
	}
	b := f.mem[f.addr]
	f.addr++
	return b
}

// Deselect ends the transaction and commits side-effecting commands.
func (f *flashModel) Deselect() {
	f.parse()
	f.selected = false
	if !f.powered && f.op != fOpReleasePD {
		return
	}
	switch f.op {
	case fOpWriteEnable:
		f.writeEn = true
	case fOpPageProgram, fOpPageProgram4:
		if f.op == fOpPageProgram4 && f.sr2&flashQEBit == 0 {
			break
		}
		if f.writeEn && len(f.in) > 4 {
			f.program(f.in[4:])
			f.writeEn = false
			f.busyLeft = f.busyReads
		}
	case fOpWriteStatus2:
		if f.writeEn && len(f.in) >= 2 {
			f.sr2 = f.in[1]
			f.writeEn = false
			f.busyLeft = f.busyReads
		}
	case fOpErase4K:
		f.erase(f.addr&^0xfff, 1<<12)
	case fOpErase32K:
		f.erase(f.addr&^0x7fff, 1<<15)
	case fOpErase64K:
		f.erase(f.addr&^0xffff, 1<<16)
	case fOpEraseChip:
		f.erase(0, uint32(len(f.mem)))
	case fOpResetEnable:
		f.resetArm = true
		return
	case fOpReset:
		if f.resetArm {
			f.writeEn = false
			f.busyLeft = 0
		}
	case fOpPowerDown:
		f.powered = false
	case fOpReleasePD:
		f.powered = true
	}
	f.resetArm = false
}

// program writes data starting at the parsed address, wrapping within
// the 256-byte page the way the part does.
func (f *flashModel) program(data []byte) {
	page := f.addr &^ 0xff
	off := f.addr & 0xff
	for _, b := range data {
		a := page | off
		if a < uint32(len(f.mem)) {
			f.mem[a] = b
		}
		off = (off + 1) & 0xff
	}
}

func (f *flashModel) erase(start, length uint32) {
	if !f.writeEn {
		return
	}
	for a := start; a < start+length && a < uint32(len(f.mem)); a++ {
		f.mem[a] = 0xff
	}
	f.writeEn = false
	f.busyLeft = f.busyReads
}

// parse decodes opcode and address from the bytes received so far.
// Address bytes arrive most significant first.
func (f *flashModel) parse() {
	if f.parsed || len(f.in) == 0 {
		return
	}
	f.parsed = true
	f.op = f.in[0]
	switch f.op {
	case fOpRead, fOpReadQuadIO, fOpPageProgram, fOpPageProgram4,
		fOpErase4K, fOpErase32K, fOpErase64K:
		if len(f.in) >= 4 {
			f.addr = uint32(f.in[1])<<16 | uint32(f.in[2])<<8 | uint32(f.in[3])
		}
	}
	// Quad I/O needs the Fxh mode byte after the address, before the
	// dummy cycles.
	if f.op == fOpReadQuadIO {
		f.modeOK = len(f.in) >= 5 && f.in[4]&0xf0 == 0xf0
	}
}
