package thread

import (
	"context"

	"github.com/ndkgo/ndk/debug"
	"github.com/ndkgo/ndk/nitro/irq"
	"github.com/ndkgo/ndk/nitro/timer"
)

const (
	HighestPriority = 0
	LowestPriority  = 31

	MainPriority = 16 // priority of the main thread started by package console
	IdlePriority = LowestPriority

	DefaultStackSize = 4096
)

// Interrupts is the interrupt controller and the CPU's IRQ disable bit,
// usually an *irq.Controller.
type Interrupts interface {
	DisableIRQ() (old bool)
	RestoreIRQ(disabled bool) (old bool)
	IRQDisabled() bool
	Service() irq.Flag
	Halt(done <-chan struct{}) bool
	SetHandler(mask irq.Flag, handler func())
	Enable(mask irq.Flag) (old irq.Flag)
	Disable(mask irq.Flag) (old irq.Flag)
	Acknowledge(mask irq.Flag) (old irq.Flag)
}

// Timers are the hardware timer channels, usually a *timer.Block.
type Timers interface {
	Write(n int, reload uint16, ctrl timer.Control)
	Count(n int) uint16
}

// SwitchFunc is called by the scheduler around switches from one thread to
// another. Either may be the zero Thread. Threads that were deleted are
// passed as the zero Thread once their handle became stale.
type SwitchFunc func(from, to Thread)

type Option func(*Scheduler)

// WithTimers enables Sleep, see InitTimers.
func WithTimers(t Timers) Option {
	return func(s *Scheduler) { s.timers = t }
}

// WithCoprocessor saves and restores the divide/square root unit on every
// switch.
func WithCoprocessor(c Coprocessor) Option {
	return func(s *Scheduler) { s.math = c }
}

// WithStackSize sets the stack size of threads created without a stack.
func WithStackSize(n int) Option {
	return func(s *Scheduler) { s.stackSize = n }
}

// WithExecutionState replaces the goroutine based execution of threads.
func WithExecutionState(fn func() ExecutionState) Option {
	return func(s *Scheduler) { s.newState = fn }
}

type Scheduler struct {
	irqs      Interrupts
	timers    Timers
	math      Coprocessor
	stackSize int
	newState  func() ExecutionState

	threads arena[record, Thread]
	mutexes arena[mutexRecord, Mutex]
	nextID  uint32
	live    int // threads except idle that aren't removed

	ready   List
	current Thread // thread holding the CPU, zero while in Run
	last    Thread // thread that stopped last
	idle    Thread

	inIRQ         bool
	switchLock    int
	switchPending bool
	preResume     SwitchFunc
	postStop      SwitchFunc

	irqBits    irq.Flag
	irqWaiters List
	sleepers   List
	timersInit bool

	started bool
	done    chan struct{}
	fault   error
}

// New returns a scheduler with only the idle thread.
func New(irqs Interrupts, opts ...Option) *Scheduler {
	s := &Scheduler{
		irqs:      irqs,
		stackSize: DefaultStackSize,
		newState:  NewHostState,
		sleepers:  List{byDeadline: true},
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	t, rec := s.newThread(s.idleLoop, nil, nil, IdlePriority)
	rec.status = Scheduled
	s.idle = t
	return s
}

// idleLoop halts until an interrupt is pending and delivers it. It returns
// to Run if a thread became ready, Run was canceled or the pending sources
// can't be delivered, e.g. with IME off.
func (s *Scheduler) idleLoop(any) {
	for {
		if !s.irqs.Halt(s.done) {
			s.suspend()
			continue
		}
		if s.serviceInterrupts() == 0 || !s.ready.Empty() {
			s.suspend()
		}
	}
}

// Run dispatches threads until no thread except idle is left or ctx is
// canceled. It returns ErrWorkerReturned if a worker returned without an
// exit func. A panicking thread is reraised as *PanicError.
//
// When Run returns all remaining threads are removed.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.started {
		return ErrStarted
	}
	s.started = true
	stop := context.AfterFunc(ctx, func() { close(s.done) })
	defer stop()
	defer s.shutdown()

	for {
		if s.fault != nil {
			return s.fault
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.live == 0 {
			return nil
		}
		s.serviceInterrupts()
		s.dispatch(s.Scheduled())
	}
}

func (s *Scheduler) dispatch(t Thread) {
	rec := s.threads.get(t)
	if s.preResume != nil {
		s.preResume(s.last, t)
	}
	rec.ctx.restore(s.irqs, s.math)
	s.current = t
	rec.ctx.state.Restore()
	s.current = 0
	s.last = t
	s.irqs.RestoreIRQ(false)

	if s.postStop != nil {
		s.postStop(t, s.Scheduled())
	}
	if rec.status == Removed {
		s.releaseThread(t)
	}
}

// releaseThread frees the record of a removed thread. Its handle won't be
// passed to hooks afterwards.
func (s *Scheduler) releaseThread(t Thread) {
	s.threads.release(t)
	if s.last == t {
		s.last = 0
	}
}

func (s *Scheduler) shutdown() {
	s.current = 0
	var all []Thread
	s.threads.each(func(t Thread, rec *record) {
		if rec.list != nil {
			s.unlink(t)
		}
		rec.status = Removed
		all = append(all, t)
	})
	for _, t := range all {
		s.discard(t)
	}
	s.live = 0
	if s.timersInit {
		s.disarmSleep()
	}
}

// discard stops the goroutine of t. Scheduler calls from its deferred
// functions have no effect, because t counts as removed current thread.
func (s *Scheduler) discard(t Thread) {
	prev := s.current
	s.current = t
	s.threads.get(t).ctx.state.Discard()
	s.current = prev
}

// dead reports whether the caller is a removed thread that is running its
// deferred functions.
func (s *Scheduler) dead() bool {
	if s.current == 0 {
		return false
	}
	return s.threads.get(s.current).status == Removed
}

// blocking returns the current thread or panics if it's not allowed to
// stop.
func (s *Scheduler) blocking(op string) Thread {
	switch {
	case s.current == 0:
		panic("thread: " + op + " called outside of a thread")
	case s.current == s.idle:
		panic("thread: " + op + " called by idle thread")
	case s.inIRQ:
		panic("thread: " + op + " called by interrupt handler")
	case s.switchLock > 0:
		panic("thread: " + op + " called with switching locked")
	}
	return s.current
}

// suspend saves the context of the current thread and returns after Run
// resumed it.
func (s *Scheduler) suspend() {
	rec := s.threads.get(s.current)
	rec.ctx.save(s.irqs, s.math)
	rec.ctx.state.Save()
}

// reschedule delivers pending interrupts and switches if the current thread
// isn't the selection anymore.
func (s *Scheduler) reschedule() {
	if s.current == 0 || s.inIRQ {
		return
	}
	s.serviceInterrupts()
	if s.Scheduled() == s.current {
		return
	}
	if s.switchLock > 0 {
		s.switchPending = true
		return
	}
	s.suspend()
}

// serviceInterrupts is the interrupt return path. Threads woken by handlers
// are moved to the ready list.
func (s *Scheduler) serviceInterrupts() (serviced irq.Flag) {
	if s.inIRQ {
		return 0
	}
	s.inIRQ = true
	serviced = s.irqs.Service()
	s.inIRQ = false
	s.wakeIRQWaiters()
	return serviced
}

// Scheduled returns the thread that runs next: the head of the ready list or
// the idle thread.
func (s *Scheduler) Scheduled() Thread {
	if s.ready.first != 0 {
		return s.ready.first
	}
	return s.idle
}

// Current returns the running thread, or the zero Thread if called outside of
// a thread.
func (s *Scheduler) Current() Thread {
	return s.current
}

func (s *Scheduler) Idle() Thread {
	return s.idle
}

// ReadyList returns the threads of the ready list in order.
func (s *Scheduler) ReadyList() []Thread {
	return s.Waiters(&s.ready)
}

// Waiters returns the threads linked into l in order.
func (s *Scheduler) Waiters(l *List) []Thread {
	var ts []Thread
	for t := l.first; t != 0; t = s.threads.get(t).link.next {
		ts = append(ts, t)
	}
	return ts
}

func (s *Scheduler) link(t Thread) *links[Thread] {
	return &s.threads.get(t).link
}

// insert links t into l at its sorted position.
func (s *Scheduler) insert(l *List, t Thread) {
	rec := s.threads.get(t)
	if rec.list != nil {
		panic("thread: insert of thread that is member of another list")
	}
	at := l.first
	for at != 0 {
		other := s.threads.get(at)
		if l.byDeadline {
			if int32(other.deadline-rec.deadline) > 0 {
				break
			}
		} else if other.priority > rec.priority {
			break
		}
		at = other.link.next
	}
	l.insertBefore(t, at, s.link)
	rec.list = l
	if debug.Enabled {
		s.checkSorted(l)
	}
}

// unlink removes t from the list it's linked into, if any.
func (s *Scheduler) unlink(t Thread) {
	rec := s.threads.get(t)
	if rec.list == nil {
		return
	}
	rec.list.remove(t, s.link)
	rec.list = nil
}

func (s *Scheduler) checkSorted(l *List) {
	var prev *record
	for t := l.first; t != 0; {
		rec := s.threads.get(t)
		debug.Assert(rec.list == l, "thread: list member links other list")
		if prev != nil && !l.byDeadline {
			debug.Assertf(prev.priority <= rec.priority, "thread: list unsorted at priority %d", rec.priority)
		}
		prev = rec
		t = rec.link.next
	}
}

// LockSwitch prevents switches to other threads until the matching
// UnlockSwitch. Locks nest. Switches requested meanwhile are done by the
// final UnlockSwitch. The locking thread must not block.
func (s *Scheduler) LockSwitch() {
	s.switchLock++
}

func (s *Scheduler) UnlockSwitch() {
	if s.switchLock == 0 {
		panic("thread: unlock of unlocked switch")
	}
	s.switchLock--
	if s.switchLock == 0 && s.switchPending {
		s.switchPending = false
		s.reschedule()
	}
}

// SwitchLocked returns the nesting depth of LockSwitch.
func (s *Scheduler) SwitchLocked() int {
	return s.switchLock
}

// SetPreResumeFunc sets a function called before a thread is resumed and
// returns the previous one.
func (s *Scheduler) SetPreResumeFunc(fn SwitchFunc) (old SwitchFunc) {
	old, s.preResume = s.preResume, fn
	return
}

// SetPostStopFunc sets a function called after a thread has stopped and
// returns the previous one. The second argument is the thread that will be
// resumed next, as far as known.
func (s *Scheduler) SetPostStopFunc(fn SwitchFunc) (old SwitchFunc) {
	old, s.postStop = s.postStop, fn
	return
}

// CriticalEnter disables IRQs in the CPU and returns the previous state for
// CriticalLeave. Threads may yield inside a critical section, other threads
// run with their own IRQ state.
func (s *Scheduler) CriticalEnter() (lock bool) {
	return s.irqs.DisableIRQ()
}

// CriticalLeave restores the IRQ state saved by CriticalEnter. If IRQs are
// enabled afterwards pending interrupts are delivered.
func (s *Scheduler) CriticalLeave(lock bool) {
	s.irqs.RestoreIRQ(lock)
	if !lock && !s.dead() {
		s.reschedule()
	}
}

// Checkpoint delivers pending interrupts and switches if they woke a thread
// that is preferred over the current one.
func (s *Scheduler) Checkpoint() {
	if s.dead() {
		return
	}
	s.reschedule()
}
