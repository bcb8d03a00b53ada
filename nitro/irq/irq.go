// Package irq models the ARM9 interrupt controller: the master enable (IME),
// the enable (IE) and request (IF) registers, the CPU's IRQ disable bit and
// the handler vector.
//
// Devices request interrupts with Raise from any goroutine. Handlers run on
// the goroutine that calls Service, which must be the one currently owning the
// CPU.
package irq

import (
	"math/bits"
	"sync/atomic"
)

// Entries 0-3 hold DMA callbacks and entries 4-7 hold timer callbacks.
type callback struct {
	fn      func(any)
	data    any
	handler func()
	once    bool // remove after it was invoked
	keepIRQ bool // leave the source enabled after a one shot invocation
}

type Controller struct {
	ime    atomic.Bool
	ie     atomic.Uint32
	iflag  atomic.Uint32
	masked atomic.Bool // CPSR I bit

	wake chan struct{}

	handlers  [32]func()
	callbacks [8]callback
}

// New returns a controller with the master enable set, all sources disabled
// and IRQs enabled in the CPU.
func New() *Controller {
	c := &Controller{wake: make(chan struct{}, 1)}
	c.ime.Store(true)
	return c
}

// SetMaster writes IME and returns its old value.
func (c *Controller) SetMaster(on bool) (old bool) {
	return c.ime.Swap(on)
}

func (c *Controller) Master() bool {
	return c.ime.Load()
}

// Enable enables one or more interrupt sources and returns the old IE.
func (c *Controller) Enable(mask Flag) (old Flag) {
	old = Flag(c.ie.Or(uint32(mask)))
	c.notify()
	return
}

// Disable disables one or more interrupt sources and returns the old IE.
func (c *Controller) Disable(mask Flag) (old Flag) {
	return Flag(c.ie.And(^uint32(mask)))
}

// WriteEnable writes IE and returns its old value.
func (c *Controller) WriteEnable(mask Flag) (old Flag) {
	old = Flag(c.ie.Swap(uint32(mask)))
	c.notify()
	return
}

func (c *Controller) Enabled() Flag {
	return Flag(c.ie.Load())
}

// Acknowledge clears one or more requests and returns IF before the
// acknowledge.
func (c *Controller) Acknowledge(mask Flag) (old Flag) {
	return Flag(c.iflag.And(^uint32(mask)))
}

func (c *Controller) Requests() Flag {
	return Flag(c.iflag.Load())
}

// Pending returns the requests that are enabled, regardless of IME and the
// CPU's IRQ disable bit.
func (c *Controller) Pending() Flag {
	return Flag(c.ie.Load() & c.iflag.Load())
}

// Raise requests one or more interrupts. It's safe to be called by device
// goroutines.
func (c *Controller) Raise(mask Flag) {
	c.iflag.Or(uint32(mask))
	c.notify()
}

func (c *Controller) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// DisableIRQ sets the CPU's IRQ disable bit and returns its old value.
func (c *Controller) DisableIRQ() (old bool) {
	return c.masked.Swap(true)
}

// EnableIRQ clears the CPU's IRQ disable bit and returns its old value.
func (c *Controller) EnableIRQ() (old bool) {
	return c.masked.Swap(false)
}

// RestoreIRQ writes the CPU's IRQ disable bit. Only pass values returned by
// DisableIRQ, EnableIRQ or RestoreIRQ.
func (c *Controller) RestoreIRQ(disabled bool) (old bool) {
	return c.masked.Swap(disabled)
}

func (c *Controller) IRQDisabled() bool {
	return c.masked.Load()
}

// Halt pauses the caller as long as IE&IF is zero. It returns false if done
// was closed before.
func (c *Controller) Halt(done <-chan struct{}) bool {
	for {
		if c.Pending() != 0 {
			return true
		}
		select {
		case <-c.wake:
		case <-done:
			return false
		}
	}
}

// Service runs the handlers of all pending interrupts, lowest bit first, if
// IME is set and IRQs are enabled in the CPU. Each request is acknowledged
// before its handler runs, handlers run with IRQs disabled. Returns the
// serviced sources.
func (c *Controller) Service() (serviced Flag) {
	if !c.ime.Load() || c.masked.Load() {
		return 0
	}
	pending := c.Pending()
	if pending == 0 {
		return 0
	}

	c.masked.Store(true)
	for p := pending; p != 0; p &= p - 1 {
		bit := p & -p
		c.Acknowledge(bit)
		c.dispatch(bit)
	}
	c.masked.Store(false)
	return pending
}

func (c *Controller) dispatch(bit Flag) {
	if idx, ok := callbackIndex(bit); ok {
		cb := c.callbacks[idx]
		if cb.fn == nil && cb.handler == nil {
			panic("unhandled interrupt " + bit.String())
		}
		if cb.once {
			c.callbacks[idx] = callback{}
			if !cb.keepIRQ {
				c.Disable(bit)
			}
		}
		if cb.handler != nil {
			cb.handler()
		} else {
			cb.fn(cb.data)
		}
		return
	}

	handler := c.handlers[bits.TrailingZeros32(uint32(bit))]
	if handler == nil {
		panic("unhandled interrupt " + bit.String())
	}
	handler()
}

func callbackIndex(bit Flag) (int, bool) {
	switch {
	case bit&(DMA0|DMA1|DMA2|DMA3) != 0:
		return bits.TrailingZeros32(uint32(bit / DMA0)), true
	case bit&(Timer0|Timer1|Timer2|Timer3) != 0:
		return 4 + bits.TrailingZeros32(uint32(bit/Timer0)), true
	}
	return 0, false
}

// SetHandler sets the handler for one or more interrupt sources. Handlers of
// DMA and timer sources are stored as permanent callbacks. IRQs are disabled
// in the CPU while the vector is updated, sources are not enabled.
func (c *Controller) SetHandler(mask Flag, handler func()) {
	old := c.DisableIRQ()
	for m := mask & All; m != 0; m &= m - 1 {
		bit := m & -m
		if idx, ok := callbackIndex(bit); ok {
			if handler == nil {
				c.callbacks[idx] = callback{}
			} else {
				c.callbacks[idx] = callback{handler: handler, keepIRQ: true}
			}
			continue
		}
		c.handlers[bits.TrailingZeros32(uint32(bit))] = handler
	}
	c.RestoreIRQ(old)
}

// Handler returns the handler of the lowest source in mask.
func (c *Controller) Handler(mask Flag) func() {
	mask &= All
	if mask == 0 {
		return nil
	}
	bit := mask & -mask
	if idx, ok := callbackIndex(bit); ok {
		return c.callbacks[idx].handler
	}
	return c.handlers[bits.TrailingZeros32(uint32(bit))]
}

// SetTimerCallback sets a one shot callback for the overflow of timer n and
// enables its interrupt source. The source stays enabled after the callback
// was invoked.
func (c *Controller) SetTimerCallback(n int, cb func(any), data any) {
	old := c.DisableIRQ()
	c.callbacks[4+n] = callback{fn: cb, data: data, once: true, keepIRQ: true}
	c.RestoreIRQ(old)
	c.Enable(Timer(n))
}

// SetDMACallback sets a one shot callback for DMA channel n and enables its
// interrupt source. The source is disabled after the invocation only if it was
// disabled before.
func (c *Controller) SetDMACallback(n int, cb func(any), data any) {
	old := c.DisableIRQ()
	keep := c.Enabled()&DMA(n) != 0
	c.callbacks[n] = callback{fn: cb, data: data, once: true, keepIRQ: keep}
	c.RestoreIRQ(old)
	c.Enable(DMA(n))
}
