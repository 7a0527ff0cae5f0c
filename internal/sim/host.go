package sim

import (
	"encoding/binary"

	"github.com/consanii/x-heep/spihost"
)

const rxFIFOWords = 64

// hostIP models the SPI host register block. Command segments execute
// synchronously on the COMMAND write: TX words are drained, the flash
// model is clocked, and received bytes land in a pending queue that
// refills the bounded RX FIFO as the driver pops words.
type hostIP struct {
	soc *SoC

	intrState  uint32
	intrEnable uint32
	eventEn    uint32
	control    uint32
	configOpts [4]uint32
	csid       uint32

	txFIFO    []uint32
	rxFIFO    []uint32
	pendingRx []uint32

	csActive bool
}

func newHostIP(s *SoC) *hostIP { return &hostIP{soc: s} }

func (h *hostIP) Read32(offset uint32) uint32 {
	switch offset {
	case spihost.RegIntrState:
		return h.intrState
	case spihost.RegIntrEnable:
		return h.intrEnable
	case spihost.RegControl:
		return h.control
	case spihost.RegStatus:
		return h.status()
	case spihost.RegConfigOpts:
		return h.configOpts[h.csid&3]
	case spihost.RegCSID:
		return h.csid
	case spihost.RegRxData:
		return h.popRx()
	case spihost.RegEventEnable:
		return h.eventEn
	}
	return 0
}

func (h *hostIP) Write32(offset, value uint32) {
	switch offset {
	case spihost.RegIntrState:
		h.intrState &^= value
	case spihost.RegIntrEnable:
		h.intrEnable = value
	case spihost.RegControl:
		h.control = value
	case spihost.RegConfigOpts:
		h.configOpts[h.csid&3] = value
	case spihost.RegCSID:
		h.csid = value
	case spihost.RegTxData:
		h.txFIFO = append(h.txFIFO, value)
	case spihost.RegCommand:
		h.runSegment(value)
	case spihost.RegEventEnable:
		h.eventEn = value
	}
}

func (h *hostIP) status() uint32 {
	v := uint32(len(h.txFIFO)) & 0xff
	v |= (uint32(len(h.rxFIFO)) & 0xff) << 8
	if uint32(len(h.rxFIFO)) >= h.rxWatermark() && h.rxWatermark() > 0 {
		v |= 1 << 20
	}
	if !h.soc.wedged() {
		v |= 1 << 31 // ready
	}
	if h.csActive {
		v |= 1 << 30
	}
	return v
}

func (h *hostIP) rxWatermark() uint32 { return (h.control >> 8) & 0xff }

func (h *hostIP) popRx() uint32 {
	if len(h.rxFIFO) == 0 {
		return 0
	}
	v := h.rxFIFO[0]
	h.rxFIFO = h.rxFIFO[1:]
	h.refillRx()
	return v
}

func (h *hostIP) refillRx() {
	for len(h.rxFIFO) < rxFIFOWords && len(h.pendingRx) > 0 {
		h.rxFIFO = append(h.rxFIFO, h.pendingRx[0])
		h.pendingRx = h.pendingRx[1:]
	}
}

// runSegment executes one command segment against the flash model.
func (h *hostIP) runSegment(raw uint32) {
	if h.soc.wedged() {
		return
	}
	if h.soc.commandLimit > 0 {
		h.soc.commandLimit--
	}
	cmd := spihost.DecodeCommand(raw)
	if !h.csActive {
		h.soc.flash.Select()
		h.csActive = true
		h.soc.cycles += h.csnLeadCycles()
	}
	h.soc.cycles += h.segmentCycles(cmd)

	switch cmd.Direction {
	case spihost.DirTxOnly, spihost.DirBidir:
		h.shiftOut(cmd)
	case spihost.DirRxOnly:
		h.shiftIn(cmd)
	case spihost.DirDummy:
		h.soc.flash.Dummy(cmd.Len)
	}

	if !cmd.CSAAT {
		h.soc.flash.Deselect()
		h.csActive = false
		h.soc.cycles += h.csnTrailCycles()
		h.intrState |= spihost.IntrEvent
		if h.intrEnable&spihost.IntrEvent != 0 {
			h.soc.raise(h.soc.cfg.IrqBit)
		}
	}
	if uint32(len(h.rxFIFO)) >= h.rxWatermark() && h.rxWatermark() > 0 {
		h.intrState |= spihost.IntrRxWm
		if h.intrEnable&spihost.IntrRxWm != 0 {
			h.soc.raise(h.soc.cfg.IrqBit)
		}
	}
}

func (h *hostIP) shiftOut(cmd spihost.Command) {
	var buf [4]byte
	for sent := 0; sent < cmd.Len; {
		if len(h.txFIFO) == 0 {
			// underflow: the flash sees idle-high lines
			h.soc.flash.In(0xff)
			sent++
			continue
		}
		binary.LittleEndian.PutUint32(buf[:], h.txFIFO[0])
		h.txFIFO = h.txFIFO[1:]
		for i := 0; i < 4 && sent < cmd.Len; i++ {
			h.soc.flash.In(buf[i])
			sent++
		}
	}
}

func (h *hostIP) shiftIn(cmd spihost.Command) {
	var word uint32
	for i := 0; i < cmd.Len; i++ {
		word |= uint32(h.soc.flash.Out()) << (8 * uint(i%4))
		if i%4 == 3 {
			h.pendingRx = append(h.pendingRx, word)
			word = 0
		}
	}
	if cmd.Len%4 != 0 {
		// partial tail word, upper bytes zero
		h.pendingRx = append(h.pendingRx, word)
	}
	h.refillRx()
}

// segmentCycles converts a segment into core clock cycles using the
// programmed clock divider: one SCK period is 2*(clkdiv+1) core cycles.
func (h *hostIP) segmentCycles(cmd spihost.Command) uint64 {
	sck := uint64(cmd.Len)
	if cmd.Direction != spihost.DirDummy {
		bits := uint64(cmd.Len) * 8
		lanes := uint64(1)
		switch cmd.Speed {
		case spihost.SpeedDual:
			lanes = 2
		case spihost.SpeedQuad:
			lanes = 4
		}
		sck = bits / lanes
	}
	clkdiv := uint64(h.configOpts[h.csid&3] & 0xffff)
	return sck * 2 * (clkdiv + 1)
}

// CSn timing nibbles count half SCK periods; each programmed value n
// stretches its phase to n+1 half periods of clkdiv+1 core cycles.
func (h *hostIP) halfPeriods(n uint64) uint64 {
	clkdiv := uint64(h.configOpts[h.csid&3] & 0xffff)
	return n * (clkdiv + 1)
}

func (h *hostIP) csnLeadCycles() uint64 {
	lead := uint64(h.configOpts[h.csid&3]>>24) & 0xf
	return h.halfPeriods(lead + 1)
}

// csnTrailCycles covers both the trailing hold and the minimum idle
// time before the next assertion.
func (h *hostIP) csnTrailCycles() uint64 {
	cfg := h.configOpts[h.csid&3]
	trail := uint64(cfg>>20) & 0xf
	idle := uint64(cfg>>16) & 0xf
	return h.halfPeriods(trail+1) + h.halfPeriods(idle+1)
}
