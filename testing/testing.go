// Package testing provides utilities for writing scheduler tests.
//
// Threads must not call testing.TB.Fatal or FailNow, because they run on
// goroutines owned by the scheduler. Use Error and return instead.
package testing

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ndkgo/ndk/thread"
)

// Timeout is the time Run waits for a scheduler to finish.
var Timeout = 5 * time.Second

// Run runs s until all threads finished. It fails tb if Run returns an error
// or doesn't finish within Timeout.
func Run(tb testing.TB, s *thread.Scheduler) {
	tb.Helper()
	if err := RunTimeout(s, Timeout); err != nil {
		tb.Fatal(err)
	}
}

// RunTimeout runs s and cancels it after d.
func RunTimeout(s *thread.Scheduler, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return s.Run(ctx)
}

// Spawn creates a thread running fn with an exit func that ignores the exit
// code.
func Spawn(tb testing.TB, s *thread.Scheduler, priority int, fn func()) thread.Thread {
	tb.Helper()
	t, err := s.Create(func(any) { fn() }, nil, nil, priority)
	if err != nil {
		tb.Fatal(err)
	}
	s.SetExitFunc(t, func(int) {})
	return t
}

// Log records events in the order they happen.
type Log struct {
	mu     sync.Mutex
	events []string
}

func (l *Log) Add(event string) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
}

func (l *Log) Addf(format string, args ...any) {
	l.Add(fmt.Sprintf(format, args...))
}

func (l *Log) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

// Expect fails tb if the recorded events differ from expected.
func (l *Log) Expect(tb testing.TB, expected ...string) {
	tb.Helper()
	if got := l.Events(); !slices.Equal(got, expected) {
		tb.Errorf("events\n got      %s\n expected %s", strings.Join(got, " "), strings.Join(expected, " "))
	}
}
