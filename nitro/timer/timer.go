// Package timer models the four 16-bit hardware timers.
//
// Each channel counts up from its reload value, either with a prescaled bus
// clock or, for channels 1-3 in count-up mode, with the overflows of the
// preceding channel. An overflow reloads the counter and requests the
// channel's interrupt if it is enabled.
//
// Counter values are derived from a clock.Clock instead of being stepped, so
// reading a counter is exact at any time. Use clock.NewMock for deterministic
// tests.
package timer

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ndkgo/ndk/nitro"
	"github.com/ndkgo/ndk/nitro/irq"
)

const Channels = 4

// Control register bits
type Control uint16

const (
	Div1    Control = 0 // bus clock
	Div64   Control = 1
	Div256  Control = 2
	Div1024 Control = 3

	CountUp   Control = 1 << 2 // tick on overflow of the previous channel
	IRQEnable Control = 1 << 6
	Start     Control = 1 << 7

	divMask Control = 3
)

var prescalerShift = [4]uint{0, 6, 8, 10}

// Raiser receives the overflow interrupts, usually an *irq.Controller.
type Raiser interface {
	Raise(irq.Flag)
}

type channel struct {
	reload uint16
	ctrl   Control

	// Counter state at origin. Counting continues from there while the
	// channel is started.
	origin          time.Time
	originSrc       uint64 // overflows of the source channel at origin
	initial         uint16
	overflowsBefore uint64

	fired uint64 // overflows already signaled
	gen   uint64
	timer *clock.Timer
}

type Block struct {
	mu  sync.Mutex
	clk clock.Clock
	irq Raiser
	ch  [Channels]channel
}

func New(clk clock.Clock, irq Raiser) *Block {
	return &Block{clk: clk, irq: irq}
}

// Write writes the reload and control registers of channel n. Setting the
// Start bit loads the reload value into the counter.
func (b *Block) Write(n int, reload uint16, ctrl Control) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clk.Now()
	ch := &b.ch[n]
	b.rebase(n, now)

	wasArmed := ch.ctrl&(Start|IRQEnable) == Start|IRQEnable
	ch.reload = reload
	if ch.ctrl&Start == 0 && ctrl&Start != 0 {
		ch.initial = reload
		ch.origin = now
		if n > 0 {
			_, ch.originSrc = b.state(n-1, now)
		}
	}
	ch.ctrl = ctrl

	if !wasArmed {
		_, ch.fired = b.state(n, now)
	}
	for i := n; i < Channels; i++ {
		if i > n && b.ch[i].ctrl&CountUp == 0 {
			break
		}
		b.arm(i, now)
	}
}

// Count returns the current counter value of channel n.
func (b *Block) Count(n int) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	count, _ := b.state(n, b.clk.Now())
	return count
}

// Overflows returns the number of overflows of channel n since the block was
// created.
func (b *Block) Overflows(n int) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ovf := b.state(n, b.clk.Now())
	return ovf
}

func (b *Block) Control(n int) Control {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch[n].ctrl
}

func (b *Block) Reload(n int) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch[n].reload
}

// Stop stops all pending interrupt deliveries. The counters keep their
// values.
func (b *Block) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clk.Now()
	for n := range b.ch {
		b.rebase(n, now)
		b.ch[n].ctrl &^= Start
		b.arm(n, now)
	}
}

func (b *Block) cascaded(n int) bool {
	return n > 0 && b.ch[n].ctrl&CountUp != 0
}

func (b *Block) ticks(n int, now time.Time) uint64 {
	ch := &b.ch[n]
	if ch.ctrl&Start == 0 {
		return 0
	}
	if b.cascaded(n) {
		_, ovf := b.state(n-1, now)
		return ovf - ch.originSrc
	}
	cycles := nitro.DurationToCycles(now.Sub(ch.origin))
	return cycles >> prescalerShift[ch.ctrl&divMask]
}

// state returns the counter and the total number of overflows of channel n
// at the given time.
func (b *Block) state(n int, now time.Time) (count uint16, overflows uint64) {
	ch := &b.ch[n]
	t := b.ticks(n, now)
	first := 0x10000 - uint64(ch.initial)
	if t < first {
		return ch.initial + uint16(t), ch.overflowsBefore
	}
	t -= first
	period := 0x10000 - uint64(ch.reload)
	return ch.reload + uint16(t%period), ch.overflowsBefore + 1 + t/period
}

// rebase moves the origin of channel n to now without changing its counter
// or overflow count.
func (b *Block) rebase(n int, now time.Time) {
	ch := &b.ch[n]
	ch.initial, ch.overflowsBefore = b.state(n, now)
	ch.origin = now
	if n > 0 {
		_, ch.originSrc = b.state(n-1, now)
	}
}

// overflowTime returns the time at which the overflow count of channel n
// reaches k.
func (b *Block) overflowTime(n int, k uint64) (time.Time, bool) {
	ch := &b.ch[n]
	if ch.ctrl&Start == 0 {
		return time.Time{}, false
	}
	if k <= ch.overflowsBefore {
		return ch.origin, true
	}
	j := k - ch.overflowsBefore
	ticks := 0x10000 - uint64(ch.initial) + (j-1)*(0x10000-uint64(ch.reload))
	if b.cascaded(n) {
		return b.overflowTime(n-1, ch.originSrc+ticks)
	}
	return ch.origin.Add(nitro.CyclesToDuration(ticks << prescalerShift[ch.ctrl&divMask])), true
}

// arm signals missed overflows of channel n and schedules the next one.
func (b *Block) arm(n int, now time.Time) {
	ch := &b.ch[n]
	ch.gen++
	if ch.timer != nil {
		ch.timer.Stop()
		ch.timer = nil
	}
	if ch.ctrl&(Start|IRQEnable) != Start|IRQEnable {
		return
	}

	_, ovf := b.state(n, now)
	if ovf > ch.fired {
		ch.fired = ovf
		b.irq.Raise(irq.Timer(n))
	}

	at, ok := b.overflowTime(n, ch.fired+1)
	if !ok {
		return
	}
	gen := ch.gen
	ch.timer = b.clk.AfterFunc(at.Sub(now), func() { b.expire(n, gen) })
}

func (b *Block) expire(n int, gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch[n].gen != gen {
		return
	}
	b.arm(n, b.clk.Now())
}
