package spihost

import (
	"errors"
	"fmt"
)

// Speed selects how many data lines a segment drives.
type Speed uint8

const (
	SpeedStandard Speed = 0 // one line per direction
	SpeedDual     Speed = 1 // two bidirectional lines
	SpeedQuad     Speed = 2 // four bidirectional lines
)

func (s Speed) String() (str string) {
	switch s {
	case SpeedStandard:
		str = "standard"
	case SpeedDual:
		str = "dual"
	case SpeedQuad:
		str = "quad"
	default:
		str = "unknown"
	}
	return str
}

// Direction selects which way data moves during a segment.
type Direction uint8

const (
	DirDummy  Direction = 0 // clock only, no data lines driven or sampled
	DirRxOnly Direction = 1
	DirTxOnly Direction = 2
	DirBidir  Direction = 3
)

func (d Direction) String() (str string) {
	switch d {
	case DirDummy:
		str = "dummy"
	case DirRxOnly:
		str = "rx"
	case DirTxOnly:
		str = "tx"
	case DirBidir:
		str = "bidir"
	default:
		str = "unknown"
	}
	return str
}

// COMMAND register layout. The length field carries length-1.
const (
	cmdLenMask   = 0x00ff_ffff
	cmdCSAATBit  = 1 << 24
	cmdSpeedPos  = 25
	cmdSpeedMask = 0b11 << cmdSpeedPos
	cmdDirPos    = 27
	cmdDirMask   = 0b11 << cmdDirPos
)

// MaxSegmentLen is the largest byte (or dummy cycle) count one segment can
// carry, bounded by the width of the COMMAND length field.
const MaxSegmentLen = cmdLenMask + 1

var (
	ErrSegmentLen   = errors.New("spihost: segment length out of range")
	ErrSegmentSpeed = errors.New("spihost: invalid segment speed")
	ErrSegmentDir   = errors.New("spihost: invalid direction for speed")
)

// Command describes one segment of a SPI transaction: a byte count (or a
// dummy cycle count for DirDummy segments), the line speed, the data
// direction and whether chip select stays asserted once the segment ends.
type Command struct {
	// Len is the transfer length in bytes, or the clock cycle count for
	// dummy segments. Valid range is 1..MaxSegmentLen.
	Len int
	// CSAAT ("chip select active after transaction") keeps the device
	// selected after this segment so the next segment continues the same
	// logical transaction.
	CSAAT     bool
	Speed     Speed
	Direction Direction
}

// Encode validates the command and packs it into the COMMAND register
// format. It is a pure function with no side effects.
func (c Command) Encode() (uint32, error) {
	if c.Len < 1 || c.Len > MaxSegmentLen {
		return 0, fmt.Errorf("%w: %d", ErrSegmentLen, c.Len)
	}
	if c.Speed > SpeedQuad {
		return 0, fmt.Errorf("%w: %d", ErrSegmentSpeed, c.Speed)
	}
	if c.Direction > DirBidir {
		return 0, fmt.Errorf("%w: direction %d", ErrSegmentDir, c.Direction)
	}
	// Only standard speed lines can drive both directions at once.
	if c.Direction == DirBidir && c.Speed != SpeedStandard {
		return 0, fmt.Errorf("%w: bidirectional at %s speed", ErrSegmentDir, c.Speed)
	}
	enc := uint32(c.Len-1) & cmdLenMask
	if c.CSAAT {
		enc |= cmdCSAATBit
	}
	enc |= uint32(c.Speed) << cmdSpeedPos
	enc |= uint32(c.Direction) << cmdDirPos
	return enc, nil
}

// DecodeCommand unpacks a COMMAND register value. It is the inverse of
// Encode and is used by the bus capture analyzer and the simulator.
func DecodeCommand(raw uint32) Command {
	return Command{
		Len:       int(raw&cmdLenMask) + 1,
		CSAAT:     raw&cmdCSAATBit != 0,
		Speed:     Speed(raw >> cmdSpeedPos & 0b11),
		Direction: Direction(raw >> cmdDirPos & 0b11),
	}
}

func (c Command) String() string {
	return fmt.Sprintf("len=%d %s %s csaat=%v", c.Len, c.Speed.String(), c.Direction.String(), c.CSAAT)
}
