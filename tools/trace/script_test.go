package trace

import (
	"errors"
	"strings"
	"testing"

	"github.com/ndkgo/ndk/nitro/irq"
)

func TestParse(t *testing.T) {
	script, err := Parse(strings.NewReader(`
# two threads sharing a mutex
mutex m
list l
irq VBlank
irq timer3

thread main 16
	lock m
	print "hello  world" # comment
	setprio worker 3
	unlock m
thread worker 20
	yield
	yield l
	delete
`))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(script.Mutexes, ","); got != "m" {
		t.Errorf("mutexes: %s", got)
	}
	if script.IRQs != irq.VBlank|irq.Timer(3) {
		t.Errorf("irqs: %v", script.IRQs)
	}
	if len(script.Threads) != 2 {
		t.Fatalf("expected 2 threads, got %d", len(script.Threads))
	}
	main := script.Threads[0]
	if main.Name != "main" || main.Priority != 16 || main.Line != 8 {
		t.Errorf("main: %+v", main)
	}
	if len(main.Ops) != 4 {
		t.Fatalf("expected 4 ops, got %d", len(main.Ops))
	}
	if op := main.Ops[1]; op.Line != 10 || len(op.Args) != 1 || op.Args[0] != "hello  world" {
		t.Errorf("print: %+v", op)
	}
	if op := main.Ops[2]; op.String() != "setprio worker 3" {
		t.Errorf("setprio: %s", op)
	}
}

func TestParseErrors(t *testing.T) {
	tests := map[string]struct {
		script string
		line   int
	}{
		"op outside thread":   {"mutex m\nlock m\n", 2},
		"unknown op":          {"thread a 1\n\tjump\n", 2},
		"undeclared mutex":    {"thread a 1\n\tlock m\n", 2},
		"mutex used as list":  {"mutex m\nthread a 1\n\tyield m\n", 3},
		"duplicate name":      {"mutex m\nlist m\n", 2},
		"bad priority":        {"thread a 32\n", 1},
		"negative priority":   {"thread a -1\n", 1},
		"too many operands":   {"mutex m\nthread a 1\n\tunlock m m\n", 3},
		"missing operand":     {"thread a 1\n\tsleep\n", 2},
		"not a number":        {"thread a 1\n\tsleep soon\n", 2},
		"unknown interrupt":   {"irq Reset\n", 1},
		"unknown wait source": {"thread a 1\n\twaitirq Reset\n", 2},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.script))
			var serr *SyntaxError
			if !errors.As(err, &serr) {
				t.Fatalf("expected syntax error, got %v", err)
			}
			if serr.Line != tc.line {
				t.Errorf("expected error in line %d, got %v", tc.line, serr)
			}
		})
	}
}

func TestParseForwardReference(t *testing.T) {
	_, err := Parse(strings.NewReader("thread a 1\n\tjoin b\nthread b 2\n"))
	if err != nil {
		t.Fatal(err)
	}
}
