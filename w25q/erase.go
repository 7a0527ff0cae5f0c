package w25q

import (
	"fmt"

	"github.com/consanii/x-heep/spihost"
)

// Erase4K erases the 4 KiB sector containing addr.
func (f *Flash) Erase4K(addr uint32) error {
	return f.eraseAt(opSectorErase4K, addr)
}

// Erase32K erases the 32 KiB block containing addr.
func (f *Flash) Erase32K(addr uint32) error {
	return f.eraseAt(opBlockErase32K, addr)
}

// Erase64K erases the 64 KiB block containing addr.
func (f *Flash) Erase64K(addr uint32) error {
	return f.eraseAt(opBlockErase64K, addr)
}

// EraseChip erases the whole part.
func (f *Flash) EraseChip() error {
	if err := f.waitFlashReady(); err != nil {
		return err
	}
	if err := f.writeEnable(); err != nil {
		return err
	}
	if err := f.issueOp(opChipErase); err != nil {
		return err
	}
	return f.waitFlashReady()
}

func (f *Flash) eraseAt(op byte, addr uint32) error {
	if addr > addrMask {
		return fmt.Errorf("%w: %#x", ErrAddressRange, addr)
	}
	if err := f.waitFlashReady(); err != nil {
		return err
	}
	if err := f.writeEnable(); err != nil {
		return err
	}
	err := f.host.Issue(spihost.Transaction{{
		Cmd:     spihost.Command{Len: 4, Speed: spihost.SpeedStandard, Direction: spihost.DirTxOnly},
		TxWords: []uint32{cmdAddrWord(op, addr)},
	}})
	if err != nil {
		return err
	}
	return f.waitFlashReady()
}
