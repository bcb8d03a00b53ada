package thread_test

import (
	"slices"
	"testing"

	ndktesting "github.com/ndkgo/ndk/testing"
	"github.com/ndkgo/ndk/thread"
)

func TestTryLock(t *testing.T) {
	s, _ := newScheduler()
	m := s.NewMutex()
	var holder thread.Thread
	holder = ndktesting.Spawn(t, s, 1, func() {
		if !s.TryLock(m) {
			t.Error("trylock of free mutex failed")
		}
		for range 2 {
			if s.LockCount(m) != 1 || s.Owner(m) != holder {
				t.Error("lock count", s.LockCount(m), "owner", s.Owner(m))
			}
			if held := s.HeldMutexes(holder); !slices.Equal(held, []thread.Mutex{m}) {
				t.Error("held", held)
			}
			if s.TryLock(m) {
				t.Error("recursive trylock succeeded")
			}
		}
		s.PushBack()
		if err := s.Unlock(m); err != nil {
			t.Error(err)
		}
		if s.LockCount(m) != 0 || s.Owner(m) != 0 || len(s.HeldMutexes(holder)) != 0 {
			t.Error("mutex not released")
		}
	})
	ndktesting.Spawn(t, s, 1, func() {
		if s.TryLock(m) {
			t.Error("trylock of held mutex succeeded")
		}
		if s.LockCount(m) != 1 {
			t.Error("failed trylock changed lock count")
		}
	})
	ndktesting.Run(t, s)
}

func TestUnlockErrors(t *testing.T) {
	s, _ := newScheduler()
	m := s.NewMutex()
	if err := s.Unlock(m); err != thread.ErrNotLocked {
		t.Error("unlocked mutex:", err)
	}
	ndktesting.Spawn(t, s, 1, func() {
		s.Lock(m)
		s.Yield(nil)
	})
	ndktesting.Spawn(t, s, 2, func() {
		if err := s.Unlock(m); err != thread.ErrNotOwner {
			t.Error("foreign mutex:", err)
		}
		if err := s.FreeMutex(m); err != thread.ErrLocked {
			t.Error("free of locked mutex:", err)
		}
	})
	ndktesting.RunTimeout(s, ndktesting.Timeout/10)
	if err := s.Unlock(m); err != thread.ErrNotOwner {
		t.Error("outside of thread:", err)
	}
}

// H locks after L, both block on the mutex held by L. Unlocking passes the
// mutex to H immediately.
func TestLockHandoff(t *testing.T) {
	s, _ := newScheduler()
	var log ndktesting.Log
	m := s.NewMutex()
	var h thread.Thread
	h = ndktesting.Spawn(t, s, 1, func() {
		s.Yield(nil)
		log.Add("H lock")
		s.Lock(m)
		log.Add("H locked")
		if s.Owner(m) != h || s.BlockedAt(h) != 0 {
			t.Error("owner", s.Owner(m), "blocked at", s.BlockedAt(h))
		}
		s.Unlock(m)
	})
	ndktesting.Spawn(t, s, 10, func() {
		s.Lock(m)
		log.Add("L locked")
		s.Schedule(h)
		if s.BlockedAt(h) != m || s.LockCount(m) != 2 {
			t.Error("H not blocked")
		}
		log.Add("L unlock")
		s.Unlock(m)
		log.Add("L unlocked")
	})

	ndktesting.Run(t, s)
	log.Expect(t, "L locked", "H lock", "L unlock", "H locked", "L unlocked")
}

func TestLockPriorityOrder(t *testing.T) {
	s, _ := newScheduler()
	var log ndktesting.Log
	m := s.NewMutex()
	ndktesting.Spawn(t, s, 0, func() {
		s.Lock(m)
		s.SetPriority(s.Current(), 20)
		if s.LockCount(m) != 4 {
			t.Error("lock count", s.LockCount(m))
		}
		s.Unlock(m)
	})
	for _, w := range []struct {
		name string
		prio int
	}{{"W8", 8}, {"W3", 3}, {"W12", 12}} {
		ndktesting.Spawn(t, s, w.prio, func() {
			s.Lock(m)
			log.Add(w.name)
			s.Unlock(m)
		})
	}

	ndktesting.Run(t, s)
	log.Expect(t, "W3", "W8", "W12")
	if s.LockCount(m) != 0 || s.Owner(m) != 0 {
		t.Error("mutex not released")
	}
}

func TestUnlockAllOnDelete(t *testing.T) {
	s, _ := newScheduler()
	var log ndktesting.Log
	m1, m2 := s.NewMutex(), s.NewMutex()
	waiter := func(name string, m thread.Mutex) func() {
		return func() {
			s.Lock(m)
			log.Add(name)
			s.Unlock(m)
		}
	}

	victim := ndktesting.Spawn(t, s, 1, func() {
		s.Lock(m1)
		s.Lock(m2)
		s.Yield(nil)
	})
	w4 := ndktesting.Spawn(t, s, 4, waiter("W4", m1))
	w5 := ndktesting.Spawn(t, s, 5, waiter("W5", m2))
	w6 := ndktesting.Spawn(t, s, 6, waiter("W6", m1))
	ndktesting.Spawn(t, s, 30, func() {
		if s.LockCount(m1) != 3 || s.LockCount(m2) != 2 {
			t.Error("lock counts", s.LockCount(m1), s.LockCount(m2))
		}

		s.LockSwitch()
		s.Delete(victim)
		if s.Owner(m1) != w4 || s.LockCount(m1) != 2 {
			t.Error("m1 owner", s.Owner(m1), "count", s.LockCount(m1))
		}
		if s.Owner(m2) != w5 || s.LockCount(m2) != 1 {
			t.Error("m2 owner", s.Owner(m2), "count", s.LockCount(m2))
		}
		if s.Status(w4) != thread.Scheduled || s.Status(w5) != thread.Scheduled {
			t.Error("new owners not scheduled")
		}
		if s.Status(w6) != thread.Waiting || s.BlockedAt(w6) != m1 {
			t.Error("second waiter woken")
		}
		log.Add("deleted")
		s.UnlockSwitch()
	})

	ndktesting.Run(t, s)
	log.Expect(t, "deleted", "W4", "W5", "W6")
}

func TestDeleteBlocked(t *testing.T) {
	s, _ := newScheduler()
	m := s.NewMutex()
	var blocked thread.Thread
	ndktesting.Spawn(t, s, 2, func() {
		s.Lock(m)
		s.Schedule(blocked)
		if s.LockCount(m) != 2 {
			t.Error("lock count", s.LockCount(m))
		}
		s.Delete(blocked)
		if s.LockCount(m) != 1 {
			t.Error("lock count after delete", s.LockCount(m))
		}
		s.Unlock(m)
		if err := s.FreeMutex(m); err != nil {
			t.Error(err)
		}
	})
	blocked = ndktesting.Spawn(t, s, 1, func() {
		s.Yield(nil)
		s.Lock(m)
		t.Error("got lock")
	})
	ndktesting.Run(t, s)
}
