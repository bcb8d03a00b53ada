// Package machine assembles a simulated ARM9 of the Nintendo DS from the
// peripherals in package nitro and binds schedulers to it.
package machine

import (
	"context"

	"github.com/benbjohnson/clock"

	"github.com/ndkgo/ndk/nitro"
	"github.com/ndkgo/ndk/nitro/accel"
	"github.com/ndkgo/ndk/nitro/irq"
	"github.com/ndkgo/ndk/nitro/timer"
	"github.com/ndkgo/ndk/thread"
)

// Each frame takes 263 lines of 355 dots, 6 bus cycles per dot.
const FrameCycles = 263 * 355 * 6

// FramePeriod is the time between two VBlank interrupts (about 59.8261 Hz).
var FramePeriod = nitro.CyclesToDuration(FrameCycles)

type Machine struct {
	Clock  clock.Clock
	IRQ    *irq.Controller
	Timers *timer.Block
	Math   *accel.Unit
}

type Option func(*Machine)

// WithClock replaces the wall clock, e.g. with clock.NewMock in tests.
func WithClock(c clock.Clock) Option {
	return func(m *Machine) { m.Clock = c }
}

func New(opts ...Option) *Machine {
	m := &Machine{Clock: clock.New()}
	for _, opt := range opts {
		opt(m)
	}
	m.IRQ = irq.New()
	m.Timers = timer.New(m.Clock, m.IRQ)
	m.Math = accel.New()
	return m
}

// StartVBlank requests the VBlank interrupt once per frame until ctx is
// canceled.
func (m *Machine) StartVBlank(ctx context.Context) {
	ticker := m.Clock.Ticker(FramePeriod)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.IRQ.Raise(irq.VBlank)
			}
		}
	}()
}

// NewScheduler returns a scheduler using the machine's interrupt controller,
// timers and divide/square root unit.
func (m *Machine) NewScheduler(opts ...thread.Option) *thread.Scheduler {
	opts = append([]thread.Option{
		thread.WithTimers(m.Timers),
		thread.WithCoprocessor(m.Math),
	}, opts...)
	return thread.New(m.IRQ, opts...)
}
