// Package dma moves words between memory buffers and peripheral FIFO
// ports. Transfers follow the validate, load, launch, poll-ready lifecycle
// of the SoC's DMA engine: a launched transfer drains as the gating FIFO
// permits and IsReady pumps whatever the trigger currently allows.
package dma

import "errors"

// WordPort is one end of a peripheral FIFO. ReadWord reports false when
// the FIFO is empty; WriteWord reports false when it is full.
type WordPort interface {
	ReadWord() (uint32, bool)
	WriteWord(uint32) bool
}

// Target describes one side of a transfer: either a memory slice or a
// peripheral port, never both.
type Target struct {
	Mem  []uint32
	Port WordPort
}

func (t *Target) valid() bool {
	return (t.Mem != nil) != (t.Port != nil)
}

// Transaction is a single DMA transfer of SizeDU words.
type Transaction struct {
	Src, Dst Target
	// SizeDU is the transfer size in data units (words).
	SizeDU int
}

var (
	ErrConfig     = errors.New("dma: invalid transaction configuration")
	ErrNotLoaded  = errors.New("dma: transaction not loaded")
	ErrBusy       = errors.New("dma: transfer already in flight")
	ErrShortSlice = errors.New("dma: memory target shorter than transfer size")
)

// Controller owns at most one in-flight transaction.
type Controller struct {
	txn       *Transaction
	loaded    bool
	launched  bool
	remaining int
	srcIdx    int
	dstIdx    int
}

func New() *Controller { return &Controller{} }

// Validate checks the transaction shape without touching the controller
// state.
func (c *Controller) Validate(t *Transaction) error {
	if t == nil || t.SizeDU <= 0 || !t.Src.valid() || !t.Dst.valid() {
		return ErrConfig
	}
	if t.Src.Mem != nil && len(t.Src.Mem) < t.SizeDU {
		return ErrShortSlice
	}
	if t.Dst.Mem != nil && len(t.Dst.Mem) < t.SizeDU {
		return ErrShortSlice
	}
	return nil
}

// Load stages a validated transaction on the controller.
func (c *Controller) Load(t *Transaction) error {
	if c.launched && c.remaining > 0 {
		return ErrBusy
	}
	if err := c.Validate(t); err != nil {
		return err
	}
	c.txn = t
	c.loaded = true
	c.launched = false
	return nil
}

// Launch starts the staged transaction and pumps as much of it as the
// gating FIFO currently allows.
func (c *Controller) Launch() error {
	if !c.loaded {
		return ErrNotLoaded
	}
	c.launched = true
	c.remaining = c.txn.SizeDU
	c.srcIdx, c.dstIdx = 0, 0
	c.pump()
	return nil
}

// IsReady pumps any words the trigger has made available since the last
// call and reports whether the transfer has finished. Callers poll it the
// way firmware polls the DMA ready register.
func (c *Controller) IsReady() bool {
	if !c.launched {
		return true
	}
	c.pump()
	return c.remaining == 0
}

func (c *Controller) pump() {
	for c.remaining > 0 {
		var w uint32
		if c.txn.Src.Mem != nil {
			w = c.txn.Src.Mem[c.srcIdx]
		} else {
			var ok bool
			w, ok = c.txn.Src.Port.ReadWord()
			if !ok {
				return
			}
		}
		if c.txn.Dst.Mem != nil {
			c.txn.Dst.Mem[c.dstIdx] = w
		} else if !c.txn.Dst.Port.WriteWord(w) {
			return
		}
		c.srcIdx++
		c.dstIdx++
		c.remaining--
	}
}
