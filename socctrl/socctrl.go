// Package socctrl queries the SoC control block: core clock frequency,
// flash boot mode and the SPI output mux. It is a thin consumer surface;
// clock generation itself lives outside this repository.
package socctrl

import "github.com/consanii/x-heep/mmio"

// Register block byte offsets.
const (
	RegClockFreqHz  = 0x00
	RegSPIFlashMode = 0x04
	RegSPIOutputMux = 0x08
)

// SPIFlashMode reports how the flash is attached at boot.
type SPIFlashMode uint32

const (
	// ModeSPIHost exposes the flash through the SPI host IP this
	// repository drives.
	ModeSPIHost SPIFlashMode = 0
	// ModeSPIMemIO maps the flash through the memory-mapped SPI
	// controller, which these drivers do not support.
	ModeSPIMemIO SPIFlashMode = 1
)

const muxSelectSPIHost = 1

type Ctrl struct {
	regs mmio.Region32
}

func New(regs mmio.Region32) *Ctrl { return &Ctrl{regs: regs} }

// CoreClockHz returns the current core clock frequency.
func (c *Ctrl) CoreClockHz() uint32 {
	return c.regs.Read32(RegClockFreqHz)
}

// FlashMode returns the flash attachment mode.
func (c *Ctrl) FlashMode() SPIFlashMode {
	return SPIFlashMode(c.regs.Read32(RegSPIFlashMode))
}

// SelectSPIHost routes the SPI host IP to the external flash pins.
func (c *Ctrl) SelectSPIHost() {
	c.regs.Write32(RegSPIOutputMux, muxSelectSPIHost)
}
