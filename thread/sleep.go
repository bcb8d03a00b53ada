package thread

import (
	"github.com/ndkgo/ndk/nitro"
	"github.com/ndkgo/ndk/nitro/irq"
	"github.com/ndkgo/ndk/nitro/timer"
)

// Sleep uses timer channel 0 as prescaler-less low half and channel 1 as
// cascaded high half of a 32-bit tick counter. Channels 2 and 3 stay
// available.
const (
	sleepLow  = 0
	sleepHigh = 1

	maxSleepTicks = 1 << 30
)

// InitTimers claims timer channels 0 and 1 for Sleep and starts them.
func (s *Scheduler) InitTimers() error {
	if s.timers == nil {
		return ErrNoTimers
	}
	old := s.irqs.DisableIRQ()
	defer s.irqs.RestoreIRQ(old)

	s.timers.Write(sleepLow, 0, 0)
	s.timers.Write(sleepHigh, 0, 0)
	s.timers.Write(sleepHigh, 0, timer.CountUp|timer.Start)
	s.timers.Write(sleepLow, 0, timer.Div1|timer.Start)
	s.irqs.SetHandler(irq.Timer(sleepLow), s.sleepTick)
	s.timersInit = true
	return nil
}

// Ticks returns the 32-bit tick counter started by InitTimers. It counts
// with the bus clock.
func (s *Scheduler) Ticks() uint32 {
	for {
		hi := s.timers.Count(sleepHigh)
		lo := s.timers.Count(sleepLow)
		if s.timers.Count(sleepHigh) == hi {
			return uint32(hi)<<16 | uint32(lo)
		}
	}
}

// Sleep stops the current thread for at least ms milliseconds. A sleeping
// thread that is scheduled explicitly returns early. Sleeping zero
// milliseconds is a PushBack.
func (s *Scheduler) Sleep(ms int) error {
	if !s.timersInit {
		return ErrTimers
	}
	if s.dead() {
		return nil
	}
	if ms <= 0 {
		s.PushBack()
		return nil
	}

	t := s.blocking("Sleep")
	rec := s.threads.get(t)
	ticks := uint64(ms) * nitro.BusClock / 1000
	for ticks > 0 {
		chunk := min(ticks, maxSleepTicks)
		ticks -= chunk

		rec.deadline = s.Ticks() + uint32(chunk)
		rec.timedOut = false
		if s.sleepers.Empty() {
			s.armSleep()
		}
		s.Yield(&s.sleepers)
		if !rec.timedOut {
			return nil
		}
	}
	return nil
}

func (s *Scheduler) armSleep() {
	s.irqs.Acknowledge(irq.Timer(sleepLow))
	s.timers.Write(sleepLow, 0, timer.Div1|timer.Start|timer.IRQEnable)
	s.irqs.Enable(irq.Timer(sleepLow))
}

func (s *Scheduler) disarmSleep() {
	s.irqs.Disable(irq.Timer(sleepLow))
	s.timers.Write(sleepLow, 0, timer.Div1|timer.Start)
}

// sleepTick is the overflow handler of the low tick counter.
func (s *Scheduler) sleepTick() {
	now := s.Ticks()
	for t := s.sleepers.first; t != 0; t = s.sleepers.first {
		rec := s.threads.get(t)
		if int32(rec.deadline-now) > 0 {
			break
		}
		rec.timedOut = true
		s.makeReady(t)
	}
	if s.sleepers.Empty() {
		s.disarmSleep()
	}
}

// Sleepers returns the sleeping threads, earliest deadline first.
func (s *Scheduler) Sleepers() []Thread {
	return s.Waiters(&s.sleepers)
}
