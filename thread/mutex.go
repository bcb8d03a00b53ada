package thread

import "github.com/ndkgo/ndk/debug"

// Mutex is a handle of a mutex. The zero value refers to no mutex.
//
// Mutexes don't implement priority inheritance and aren't recursive: a
// thread locking a mutex it already holds blocks forever.
type Mutex uint32

type mutexRecord struct {
	owner     Thread
	lockCount int // owner and blocked threads
	queue     List
	link      links[Mutex] // in the owner's held list
}

func (s *Scheduler) mutexLink(m Mutex) *links[Mutex] {
	return &s.mutexes.get(m).link
}

// NewMutex returns an unlocked mutex.
func (s *Scheduler) NewMutex() Mutex {
	m, _ := s.mutexes.alloc()
	return m
}

// FreeMutex releases an unlocked mutex. Its handle becomes stale.
func (s *Scheduler) FreeMutex(m Mutex) error {
	if s.mutexes.get(m).lockCount != 0 {
		return ErrLocked
	}
	s.mutexes.release(m)
	return nil
}

// TryLock locks m if it's unlocked and reports whether it did. It never
// blocks.
func (s *Scheduler) TryLock(m Mutex) bool {
	if s.dead() {
		return false
	}
	if s.current == 0 || s.current == s.idle {
		panic("thread: TryLock called outside of a thread")
	}
	mr := s.mutexes.get(m)
	if mr.lockCount != 0 {
		return false
	}
	mr.lockCount = 1
	s.acquire(m, s.current)
	return true
}

func (s *Scheduler) acquire(m Mutex, t Thread) {
	s.mutexes.get(m).owner = t
	s.threads.get(t).held.pushBack(m, s.mutexLink)
}

// Lock locks m. If it's locked the current thread waits until it becomes the
// owner, threads with higher priority are served first.
func (s *Scheduler) Lock(m Mutex) {
	if s.TryLock(m) {
		return
	}
	if s.dead() {
		return
	}
	t := s.blocking("Lock")
	mr := s.mutexes.get(m)
	mr.lockCount++
	s.threads.get(t).blockedAt = m
	s.Yield(&mr.queue)
	if debug.Enabled {
		s.checkMutex(m)
		debug.Assert(s.mutexes.get(m).owner == t, "thread: woke up without owning mutex")
	}
}

// Unlock unlocks m, which must be held by the current thread. If threads wait
// for m, the one with the highest priority becomes the owner and is
// scheduled.
func (s *Scheduler) Unlock(m Mutex) error {
	if s.dead() {
		return nil
	}
	mr := s.mutexes.get(m)
	if mr.lockCount == 0 {
		return ErrNotLocked
	}
	if mr.owner != s.current {
		return ErrNotOwner
	}
	s.release(m)
	s.reschedule()
	return nil
}

// release passes m from its owner to the first waiter without switching.
func (s *Scheduler) release(m Mutex) {
	mr := s.mutexes.get(m)
	mr.lockCount--
	s.threads.get(mr.owner).held.remove(m, s.mutexLink)
	mr.owner = 0

	if t := mr.queue.first; t != 0 {
		s.unlink(t)
		rec := s.threads.get(t)
		rec.blockedAt = 0
		rec.status = Scheduled
		s.acquire(m, t)
		s.insert(&s.ready, t)
	}
	if debug.Enabled {
		s.checkMutex(m)
	}
}

// unlockAll releases all mutexes held by t.
func (s *Scheduler) unlockAll(t Thread) {
	rec := s.threads.get(t)
	for m := rec.held.first; m != 0; m = rec.held.first {
		s.release(m)
	}
}

func (s *Scheduler) checkMutex(m Mutex) {
	mr := s.mutexes.get(m)
	waiters := len(s.Waiters(&mr.queue))
	debug.Assertf((mr.lockCount > 0) == (mr.owner != 0), "thread: mutex lock count %d with owner %d", mr.lockCount, mr.owner)
	debug.Assertf(mr.owner == 0 || mr.lockCount == waiters+1, "thread: mutex lock count %d with %d waiters", mr.lockCount, waiters)
	debug.Assertf(mr.owner != 0 || waiters == 0, "thread: unowned mutex with %d waiters", waiters)
	for _, t := range s.Waiters(&mr.queue) {
		debug.Assert(s.threads.get(t).blockedAt == m, "thread: waiter not blocked at mutex")
	}
}

// Owner returns the thread holding m or the zero Thread.
func (s *Scheduler) Owner(m Mutex) Thread {
	return s.mutexes.get(m).owner
}

// LockCount returns the number of threads holding or waiting for m.
func (s *Scheduler) LockCount(m Mutex) int {
	return s.mutexes.get(m).lockCount
}

// HeldMutexes returns the mutexes held by t in locking order.
func (s *Scheduler) HeldMutexes(t Thread) []Mutex {
	var ms []Mutex
	for m := s.threads.get(t).held.first; m != 0; m = s.mutexes.get(m).link.next {
		ms = append(ms, m)
	}
	return ms
}

// BlockedAt returns the mutex t waits for or the zero Mutex.
func (s *Scheduler) BlockedAt(t Thread) Mutex {
	return s.threads.get(t).blockedAt
}
