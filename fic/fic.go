// Package fic configures the fast interrupt controller. Interrupt lines
// are named in the board description instead of being hard-coded bit
// masks: each entry resolves to an enable-register offset and bit position
// at the controller and a machine-level enable bit at the core.
package fic

import (
	"errors"
	"fmt"

	"github.com/consanii/x-heep/mmio"
)

// Line describes one fast interrupt line.
type Line struct {
	Name string
	// EnableReg is the byte offset of the line's enable register within
	// the controller block.
	EnableReg uint32
	// Bit is the line's bit position within EnableReg.
	Bit uint8
	// CoreBit is the line's bit position in the core's machine interrupt
	// enable register.
	CoreBit uint8
}

var (
	ErrUnknownLine   = errors.New("fic: unknown interrupt line")
	ErrDuplicateLine = errors.New("fic: duplicate interrupt line")
)

// Core is the machine-level interrupt enable surface the controller
// mirrors line enables into.
type Core interface {
	EnableMachineIrq(bit uint8, enable bool)
}

// Controller resolves named lines once at setup and gates them at both the
// fast interrupt controller and the core.
type Controller struct {
	regs     mmio.Region32
	core     Core
	lines    map[string]Line
	handlers map[uint8]func()
}

func New(regs mmio.Region32, core Core, lines []Line) (*Controller, error) {
	c := &Controller{
		regs:     regs,
		core:     core,
		lines:    make(map[string]Line, len(lines)),
		handlers: make(map[uint8]func()),
	}
	for _, ln := range lines {
		if _, ok := c.lines[ln.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLine, ln.Name)
		}
		c.lines[ln.Name] = ln
	}
	return c, nil
}

func (c *Controller) line(name string) (Line, error) {
	ln, ok := c.lines[name]
	if !ok {
		return Line{}, fmt.Errorf("%w: %q", ErrUnknownLine, name)
	}
	return ln, nil
}

// EnableLine unmasks a named line at the controller and the core.
func (c *Controller) EnableLine(name string) error {
	ln, err := c.line(name)
	if err != nil {
		return err
	}
	mmio.SetBits32(c.regs, ln.EnableReg, 1<<ln.Bit)
	c.core.EnableMachineIrq(ln.CoreBit, true)
	return nil
}

// DisableLine masks a named line at the controller and the core.
func (c *Controller) DisableLine(name string) error {
	ln, err := c.line(name)
	if err != nil {
		return err
	}
	mmio.ClearBits32(c.regs, ln.EnableReg, 1<<ln.Bit)
	c.core.EnableMachineIrq(ln.CoreBit, false)
	return nil
}

// Register installs the handler invoked when the named line fires.
func (c *Controller) Register(name string, handler func()) error {
	ln, err := c.line(name)
	if err != nil {
		return err
	}
	c.handlers[ln.Bit] = handler
	return nil
}

// Dispatch runs the handler registered for the given controller bit. The
// interrupt delivery path (hardware vector or simulator) calls it with
// interrupts globally disabled.
func (c *Controller) Dispatch(bit uint8) {
	if h, ok := c.handlers[bit]; ok {
		h()
	}
}
