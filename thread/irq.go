package thread

import "github.com/ndkgo/ndk/nitro/irq"

// SignalIRQ marks interrupt sources for WaitIRQ. It must be called by the
// interrupt handlers of sources threads wait for, the scheduler wakes the
// waiters when the handlers returned.
func (s *Scheduler) SignalIRQ(mask irq.Flag) {
	s.irqBits |= mask
}

// IRQHook returns a function that marks src for WaitIRQ, for interrupt
// handlers installed elsewhere.
func (s *Scheduler) IRQHook(src irq.Flag) func() {
	return func() { s.SignalIRQ(src) }
}

// HandleIRQ installs an interrupt handler for each source in src. It calls
// h, if not nil, and marks the source for WaitIRQ. Sources are not enabled.
func (s *Scheduler) HandleIRQ(src irq.Flag, h func()) {
	for m := src; m != 0; m &= m - 1 {
		bit := m & -m
		s.irqs.SetHandler(bit, func() {
			if h != nil {
				h()
			}
			s.SignalIRQ(bit)
		})
	}
}

// WaitIRQ stops the current thread until any of the sources in mask was
// signaled and returns the signaled sources. If clear is set, signals that
// arrived before the call are discarded, so WaitIRQ waits for the next one.
//
// WaitIRQ returns zero if the thread was scheduled explicitly.
func (s *Scheduler) WaitIRQ(clear bool, mask irq.Flag) irq.Flag {
	if s.dead() {
		return 0
	}
	t := s.blocking("WaitIRQ")
	if clear {
		s.irqBits &^= mask
	}
	if hit := s.irqBits & mask; hit != 0 {
		s.irqBits &^= hit
		return hit
	}

	rec := s.threads.get(t)
	rec.irqMask, rec.irqWoken = mask, 0
	s.Yield(&s.irqWaiters)
	rec.irqMask = 0
	return rec.irqWoken
}

// WaitVBlank waits for the next vertical blank.
func (s *Scheduler) WaitVBlank() {
	s.WaitIRQ(true, irq.VBlank)
}

// wakeIRQWaiters schedules every thread waiting for a signaled source and
// consumes the delivered signals.
func (s *Scheduler) wakeIRQWaiters() {
	bits := s.irqBits
	if bits == 0 || s.irqWaiters.Empty() {
		return
	}
	var consumed irq.Flag
	for t := s.irqWaiters.first; t != 0; {
		rec := s.threads.get(t)
		next := rec.link.next
		if hit := rec.irqMask & bits; hit != 0 {
			rec.irqWoken = hit
			consumed |= hit
			s.makeReady(t)
		}
		t = next
	}
	s.irqBits &^= consumed
}
