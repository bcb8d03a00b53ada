package machine_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ndkgo/ndk/machine"
	"github.com/ndkgo/ndk/nitro/irq"
	"github.com/ndkgo/ndk/nitro/timer"
)

func TestFramePeriod(t *testing.T) {
	hz := float64(time.Second) / float64(machine.FramePeriod)
	if hz < 59.82 || hz > 59.83 {
		t.Fatalf("frame rate %f Hz", hz)
	}
}

func TestVBlank(t *testing.T) {
	mock := clock.NewMock()
	m := machine.New(machine.WithClock(mock))
	ctx, cancel := context.WithCancel(context.Background())
	m.StartVBlank(ctx)

	mock.Add(machine.FramePeriod - 1)
	if m.IRQ.Requests()&irq.VBlank != 0 {
		t.Fatal("vblank before end of frame")
	}
	mock.Add(1)
	deadline := time.Now().Add(time.Second)
	for m.IRQ.Requests()&irq.VBlank == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no vblank after one frame")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	m.IRQ.Acknowledge(irq.VBlank)
	time.Sleep(10 * time.Millisecond)
	mock.Add(machine.FramePeriod)
	if m.IRQ.Requests()&irq.VBlank != 0 {
		t.Fatal("vblank after cancel")
	}
}

func TestPeripheralsShareClock(t *testing.T) {
	mock := clock.NewMock()
	m := machine.New(machine.WithClock(mock))
	m.Timers.Write(2, 0, timer.Div1024|timer.Start)
	mock.Add(time.Millisecond)
	if n := m.Timers.Count(2); n != 32 {
		t.Errorf("expected 32 ticks after 1ms, got %d", n)
	}
}

func TestNewScheduler(t *testing.T) {
	m := machine.New(machine.WithClock(clock.NewMock()))
	s := m.NewScheduler()
	if err := s.InitTimers(); err != nil {
		t.Fatal(err)
	}
	if s.Idle() == 0 {
		t.Fatal("scheduler without idle thread")
	}
}
