// Package mmio defines the register access interface shared by every
// peripheral driver in this repository. Drivers are written against
// Region32 so the same code programs a hardware register block or the
// simulated SoC.
package mmio

// Region32 is a 32-bit wide memory-mapped register block. Offsets are in
// bytes from the base of the block and must be word aligned.
type Region32 interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}

// SetBits32 read-modify-writes mask into the register at offset.
func SetBits32(r Region32, offset, mask uint32) {
	r.Write32(offset, r.Read32(offset)|mask)
}

// ClearBits32 read-modify-writes the complement of mask into the register
// at offset.
func ClearBits32(r Region32, offset, mask uint32) {
	r.Write32(offset, r.Read32(offset)&^mask)
}
