package spihost

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// IrqGate is the hart-level interrupt control consumed by the completion
// wait loop: the machine global-interrupt-enable toggle and the
// wait-for-interrupt suspension primitive.
type IrqGate interface {
	SetGlobalEnable(enable bool)
	// WaitForInterrupt suspends the hart until any interrupt is pending.
	// It returns with interrupts still globally disabled; pending handlers
	// run once the gate is re-enabled.
	WaitForInterrupt()
}

// ErrNotIdle reports an attempt to arm the completion signal while a prior
// transaction's signal is still unconsumed, which the one-transaction-in-
// flight protocol forbids.
var ErrNotIdle = errors.New("spihost: completion signal armed while still signaled")

// Completion is the interrupt-driven end-of-transaction latch. The
// interrupt handler is its single writer and the sequencing loop its
// single reader. Lifecycle per transaction: Arm, issue, Wait. The raw flag
// is never exposed.
type Completion struct {
	flag atomic.Bool
	host *Host
	gate IrqGate
	// budget bounds the wait loop like every other poll in the package.
	budget int
}

func NewCompletion(host *Host, gate IrqGate) *Completion {
	return &Completion{host: host, gate: gate, budget: host.budget}
}

// Arm prepares the latch for one transaction: it masks the event and RX
// watermark interrupt sources, acknowledges stale interrupt state, clears
// the flag and unmasks the sources again. It must be called with no
// transaction in flight.
func (c *Completion) Arm() error {
	if c.flag.Load() {
		return ErrNotIdle
	}
	c.host.EnableEvtIntr(false)
	c.host.EnableRxwmIntr(false)
	c.flag.Store(false)
	// Commands issued while unarmed leave stale state bits behind; armed
	// with those set, the sources would fire before the transaction even
	// starts.
	c.host.ClearIntrState(IntrEvent | IntrRxWm)
	c.host.EnableEvtIntr(true)
	c.host.EnableRxwmIntr(true)
	return nil
}

// Signaled reports whether the armed transaction has completed.
func (c *Completion) Signaled() bool { return c.flag.Load() }

// Service is the interrupt handler entry. It masks both interrupt sources
// so the signal cannot re-enter, then sets the flag exactly once per
// armed transaction. It does not drain the RX FIFO; draining is the
// sequencer's job after it observes the signal.
func (c *Completion) Service() {
	c.host.EnableEvtIntr(false)
	c.host.EnableRxwmIntr(false)
	c.flag.Store(true)
}

// Wait blocks until the flag is set, then consumes it so the latch is
// idle for the next Arm. Each iteration disables global interrupts,
// re-checks the flag, and only then suspends: a signal arriving between
// the check and the suspend wakes the hart instead of being lost.
// Interrupts are re-enabled immediately after waking so the pending
// handler can run.
func (c *Completion) Wait() error {
	for i := 0; i < c.budget; i++ {
		if c.flag.Load() {
			c.flag.Store(false)
			return nil
		}
		c.gate.SetGlobalEnable(false)
		if !c.flag.Load() {
			c.gate.WaitForInterrupt()
		}
		c.gate.SetGlobalEnable(true)
	}
	return fmt.Errorf("%w: completion wait", ErrPollBudget)
}
