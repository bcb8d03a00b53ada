// Package console runs a game loop in the main thread of a scheduler.
package console

import (
	"context"
	"errors"

	"github.com/ndkgo/ndk/machine"
	"github.com/ndkgo/ndk/nitro/irq"
	"github.com/ndkgo/ndk/thread"
)

// ErrExit can be returned by Update to leave the game loop without error.
var ErrExit = errors.New("console: exit")

// Gamelooper represents a game instance that is updated once per frame.
type Gamelooper interface {
	// Update is called by the main thread after every vertical blank. It may
	// create threads and use every blocking call of s. Return an error to
	// exit the game loop, nil to continue.
	Update(s *thread.Scheduler) error
}

// Run starts the game loop on m. It creates a scheduler with Sleep and VBlank
// interrupts enabled and a main thread at thread.MainPriority, which
// repeatedly waits for the vertical blank and calls Update.
//
// Leaving the game loop removes all threads. Run returns the error returned
// by Update, nil for ErrExit, or ctx.Err() if ctx was canceled first.
func Run(ctx context.Context, m *machine.Machine, g Gamelooper, opts ...thread.Option) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := m.NewScheduler(opts...)
	if err := s.InitTimers(); err != nil {
		return err
	}
	s.HandleIRQ(irq.VBlank, nil)
	m.IRQ.Enable(irq.VBlank)
	m.StartVBlank(ctx)

	var loopErr error
	main, err := s.Create(func(any) {
		for {
			s.WaitVBlank()
			if loopErr = g.Update(s); loopErr != nil {
				return
			}
		}
	}, nil, nil, thread.MainPriority)
	if err != nil {
		return err
	}
	s.SetExitFunc(main, func(int) { cancel() })

	err = s.Run(ctx)
	if loopErr != nil {
		if errors.Is(loopErr, ErrExit) {
			return nil
		}
		return loopErr
	}
	return err
}
