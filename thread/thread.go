package thread

import (
	"fmt"

	"github.com/ndkgo/ndk/nitro/irq"
)

// Thread is a handle of a thread. The zero value refers to no thread.
type Thread uint32

type Status uint8

const (
	Waiting Status = iota
	Scheduled
	Removed
)

func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Scheduled:
		return "scheduled"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Worker is the entry point of a thread. It's called exactly once with the
// argument passed to Create.
type Worker func(arg any)

// ExitFunc is called in the thread after its worker returned.
type ExitFunc func(code int)

// ExitCode is passed to exit funcs.
const ExitCode = 0

type record struct {
	id       uint32
	priority int
	status   Status
	fn       Worker
	arg      any
	exit     ExitFunc
	ctx      Context

	link links[Thread]
	list *List // list the thread is linked into

	held      chain[Mutex]
	blockedAt Mutex
	joiners   List

	irqMask  irq.Flag
	irqWoken irq.Flag
	deadline uint32
	timedOut bool
}

func validPriority(p int) bool {
	return p >= HighestPriority && p <= LowestPriority
}

func (s *Scheduler) newThread(fn Worker, arg any, stack []byte, priority int) (Thread, *record) {
	if stack == nil {
		stack = make([]byte, s.stackSize)
	}
	t, rec := s.threads.alloc()
	s.nextID++
	rec.id = s.nextID
	rec.priority = priority
	rec.fn = fn
	rec.arg = arg
	rec.ctx.bootstrap(s.newState(), s.entry(t), stack)
	return t, rec
}

// Create creates a thread calling fn(arg) with the given stack and priority.
// The thread is appended to its priority class in the ready list but doesn't
// run before the current thread reaches a scheduling point. A nil stack
// allocates one with the scheduler's default size.
func (s *Scheduler) Create(fn Worker, arg any, stack []byte, priority int) (Thread, error) {
	if !validPriority(priority) {
		return 0, ErrPriority
	}
	if stack != nil && len(stack) < guardSize {
		return 0, ErrStack
	}
	t, rec := s.newThread(fn, arg, stack, priority)
	rec.status = Scheduled
	s.insert(&s.ready, t)
	s.live++
	return t, nil
}

func (s *Scheduler) entry(t Thread) func() {
	return func() {
		rec := s.threads.get(t)
		rec.fn(rec.arg)

		if rec.exit == nil {
			s.fault = fmt.Errorf("%w: thread %d", ErrWorkerReturned, rec.id)
		} else {
			rec.exit(ExitCode)
		}
		s.Delete(t)
	}
}

// SetExitFunc sets the function that is called when the worker of t
// returns. Without an exit func a returning worker stops the scheduler.
func (s *Scheduler) SetExitFunc(t Thread, fn ExitFunc) {
	s.threads.get(t).exit = fn
}

// ID returns the unique id of t. Ids are assigned in creation order.
func (s *Scheduler) ID(t Thread) uint32 {
	return s.threads.get(t).id
}

func (s *Scheduler) Priority(t Thread) int {
	return s.threads.get(t).priority
}

// SetPriority changes the priority of t and moves it to its new position in
// the list it's linked into. If t is running and another thread of equal or
// higher priority is ready, it switches to that thread.
func (s *Scheduler) SetPriority(t Thread, priority int) error {
	if !validPriority(priority) {
		return ErrPriority
	}
	if s.dead() {
		return nil
	}
	rec := s.threads.get(t)
	if rec.priority == priority {
		return nil
	}
	rec.priority = priority
	if l := rec.list; l != nil && !l.byDeadline {
		s.unlink(t)
		s.insert(l, t)
	}
	s.reschedule()
	return nil
}

// Status returns the status of t. Stale handles report Removed.
func (s *Scheduler) Status(t Thread) Status {
	rec, ok := s.threads.lookup(t)
	if !ok {
		return Removed
	}
	return rec.status
}

// HasBeenRemoved reports whether t was deleted.
func (s *Scheduler) HasBeenRemoved(t Thread) bool {
	return s.Status(t) == Removed
}

// StackSize returns the size of the stack of t.
func (s *Scheduler) StackSize(t Thread) int {
	return s.threads.get(t).ctx.StackSize()
}

// Yield stops the current thread and sets it Waiting. If l is not nil the
// thread is linked into l. Yield returns after the thread was scheduled
// again.
func (s *Scheduler) Yield(l *List) {
	if s.dead() {
		return
	}
	t := s.blocking("Yield")
	rec := s.threads.get(t)
	s.unlink(t)
	rec.status = Waiting
	if l != nil {
		s.insert(l, t)
	}
	s.suspend()
}

// Schedule moves t from the list it waits in to the ready list. If t is
// preferred over the current thread it switches to t.
//
// Threads blocked on a mutex can't be scheduled.
func (s *Scheduler) Schedule(t Thread) {
	if s.dead() {
		return
	}
	if s.makeReady(t) {
		s.reschedule()
	}
}

func (s *Scheduler) makeReady(t Thread) bool {
	rec := s.threads.get(t)
	switch {
	case t == s.idle:
		return false
	case rec.status == Removed:
		panic("thread: schedule of removed thread")
	case rec.blockedAt != 0:
		panic("thread: schedule of thread blocked on mutex")
	case rec.status == Scheduled:
		return false
	}
	s.unlink(t)
	rec.status = Scheduled
	s.insert(&s.ready, t)
	return true
}

// ScheduleList schedules all threads of l, keeping their order, and
// switches once if necessary.
func (s *Scheduler) ScheduleList(l *List) {
	if s.dead() {
		return
	}
	if s.drain(l) {
		s.reschedule()
	}
}

func (s *Scheduler) drain(l *List) (woken bool) {
	for t := l.first; t != 0; t = l.first {
		s.makeReady(t)
		woken = true
	}
	return
}

// PushBack moves the current thread behind all other ready threads of its
// priority and switches to the first of them.
func (s *Scheduler) PushBack() {
	if s.dead() {
		return
	}
	t := s.blocking("PushBack")
	s.unlink(t)
	s.insert(&s.ready, t)
	s.reschedule()
}

// Delete removes t from all lists, unlocks the mutexes it holds and wakes
// threads joining it. Deleting the current thread doesn't return.
func (s *Scheduler) Delete(t Thread) {
	if s.dead() {
		return
	}
	if t == s.idle {
		panic("thread: delete of idle thread")
	}
	rec, ok := s.threads.lookup(t)
	if !ok || rec.status == Removed {
		return
	}

	if t == s.current {
		if s.inIRQ {
			panic("thread: delete of current thread by interrupt handler")
		}
		if s.switchLock > 0 {
			panic("thread: delete of current thread with switching locked")
		}
		s.remove(t)
		rec.ctx.state.Exit()
		panic("unreachable")
	}

	s.remove(t)
	s.discard(t)
	s.releaseThread(t)
	s.reschedule()
}

func (s *Scheduler) remove(t Thread) {
	rec := s.threads.get(t)
	s.unlink(t)
	if rec.blockedAt != 0 {
		s.mutexes.get(rec.blockedAt).lockCount--
		rec.blockedAt = 0
	}
	s.unlockAll(t)
	rec.status = Removed
	s.live--
	s.drain(&rec.joiners)
}

// Join waits until t is deleted.
func (s *Scheduler) Join(t Thread) {
	if s.dead() {
		return
	}
	cur := s.blocking("Join")
	if t == cur {
		panic("thread: join of current thread")
	}
	rec, ok := s.threads.lookup(t)
	if !ok || rec.status == Removed {
		return
	}
	s.Yield(&rec.joiners)
}
