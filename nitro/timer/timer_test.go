package timer_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ndkgo/ndk/nitro"
	"github.com/ndkgo/ndk/nitro/irq"
	"github.com/ndkgo/ndk/nitro/timer"
)

type raiser chan irq.Flag

func (r raiser) Raise(f irq.Flag) {
	select {
	case r <- f:
	default:
	}
}

func cycles(n uint64) time.Duration { return nitro.CyclesToDuration(n) }

func TestCount(t *testing.T) {
	tests := map[string]struct {
		reload    uint16
		ctrl      timer.Control
		elapsed   uint64 // bus cycles
		count     uint16
		overflows uint64
	}{
		"stopped":        {0x1234, 0, 1000, 0, 0},
		"div1":           {0, timer.Start, 1000, 1000, 0},
		"div64":          {0xff00, timer.Div64 | timer.Start, 64 * 0x80, 0xff80, 0},
		"div64 overflow": {0xff00, timer.Div64 | timer.Start, 64 * 0x100, 0xff00, 1},
		"div256":         {0, timer.Div256 | timer.Start, 256*0x10000*3 + 256*7, 7, 3},
		"div1024":        {0xfffe, timer.Div1024 | timer.Start, 1024 * 5, 0xffff, 2},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			clk := clock.NewMock()
			b := timer.New(clk, make(raiser, 1))
			b.Write(0, tc.reload, tc.ctrl)
			clk.Add(cycles(tc.elapsed))
			if got := b.Count(0); got != tc.count {
				t.Errorf("count %#x, expected %#x", got, tc.count)
			}
			if got := b.Overflows(0); got != tc.overflows {
				t.Errorf("overflows %d, expected %d", got, tc.overflows)
			}
		})
	}
}

func TestCascade(t *testing.T) {
	clk := clock.NewMock()
	b := timer.New(clk, make(raiser, 1))
	b.Write(1, 0, timer.CountUp|timer.Start)
	b.Write(0, 0, timer.Div1|timer.Start)

	clk.Add(cycles(3*0x10000 + 5))
	if got := b.Count(0); got != 5 {
		t.Errorf("low counter %d", got)
	}
	if got := b.Count(1); got != 3 {
		t.Errorf("high counter %d", got)
	}
}

func TestStartReloads(t *testing.T) {
	clk := clock.NewMock()
	b := timer.New(clk, make(raiser, 1))
	b.Write(2, 100, timer.Start)
	clk.Add(cycles(50))

	b.Write(2, 200, timer.Start)
	if got := b.Count(2); got != 150 {
		t.Errorf("running channel reloaded, count %d", got)
	}

	b.Write(2, 200, 0)
	clk.Add(cycles(50))
	if got := b.Count(2); got != 150 {
		t.Errorf("stopped channel counts, count %d", got)
	}

	b.Write(2, 200, timer.Start)
	if got := b.Count(2); got != 200 {
		t.Errorf("not reloaded on start, count %d", got)
	}
}

func TestOverflowIRQ(t *testing.T) {
	clk := clock.NewMock()
	r := make(raiser, 1)
	b := timer.New(clk, r)
	b.Write(3, 0xfff0, timer.IRQEnable|timer.Start)

	clk.Add(cycles(15))
	select {
	case f := <-r:
		t.Fatal("early interrupt", f)
	default:
	}

	clk.Add(cycles(1))
	select {
	case f := <-r:
		if f != irq.Timer3 {
			t.Error("got", f)
		}
	case <-time.After(time.Second):
		t.Fatal("no interrupt")
	}
}

func TestCascadeIRQ(t *testing.T) {
	clk := clock.NewMock()
	r := make(raiser, 1)
	b := timer.New(clk, r)
	b.Write(1, 0xfffe, timer.CountUp|timer.IRQEnable|timer.Start)
	b.Write(0, 0xff00, timer.Start)

	clk.Add(cycles(0x100))
	select {
	case f := <-r:
		t.Fatal("early interrupt", f)
	default:
	}

	clk.Add(cycles(0x100))
	select {
	case f := <-r:
		if f != irq.Timer1 {
			t.Error("got", f)
		}
	case <-time.After(time.Second):
		t.Fatal("no interrupt")
	}
}

func TestIRQDisable(t *testing.T) {
	clk := clock.NewMock()
	r := make(raiser, 1)
	b := timer.New(clk, r)
	b.Write(0, 0xff00, timer.IRQEnable|timer.Start)
	b.Write(0, 0xff00, timer.Start)

	clk.Add(cycles(0x1000))
	select {
	case f := <-r:
		t.Error("disabled interrupt raised", f)
	case <-time.After(10 * time.Millisecond):
	}
	if b.Overflows(0) != 0x10 {
		t.Error("overflows", b.Overflows(0))
	}
}
