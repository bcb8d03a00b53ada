package thread

import (
	"errors"
	"fmt"
)

var (
	ErrPriority       = errors.New("priority out of range")
	ErrStack          = errors.New("stack smaller than guard band")
	ErrNotLocked      = errors.New("mutex not locked")
	ErrNotOwner       = errors.New("mutex locked by other thread")
	ErrLocked         = errors.New("mutex is locked")
	ErrTimers         = errors.New("timers not initialized")
	ErrNoTimers       = errors.New("no timers configured")
	ErrWorkerReturned = errors.New("worker returned without exit func")
	ErrStarted        = errors.New("scheduler already started")
)

// A PanicError is panicked by Run if a thread panicked. It carries the value
// and the stack trace of the thread's goroutine.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("thread panicked: %v\n\n%s", p.Value, p.Stack)
}

func (p *PanicError) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}
