package trace

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ndkgo/ndk/machine"
	"github.com/ndkgo/ndk/nitro/irq"
	"github.com/ndkgo/ndk/thread"
)

const usageString = `Run a thread script and print what each thread does.

Usage: %s [flags] <script>

The script is read from stdin if it's "-".

`

var (
	flags = flag.NewFlagSet("trace", flag.ExitOnError)

	timeout  = flags.Duration("timeout", 10*time.Second, "Abort the run after `duration`")
	switches = flags.Bool("switches", true, "Print thread switches")
	vblank   = flags.Bool("vblank", false, "Request VBlank interrupts every frame")
)

var (
	errDeleted = errors.New("thread was deleted")
	errBlocked = errors.New("thread is blocked on a mutex")
)

func usage() {
	fmt.Fprintf(flags.Output(), usageString, "trace")
	flags.PrintDefaults()
}

func Main(args []string) {
	flags.Usage = usage
	flags.Parse(args[1:])

	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(1)
	}

	var r io.Reader = os.Stdin
	if name := flags.Arg(0); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			log.Fatalln(err)
		}
		defer f.Close()
		r = f
	}
	script, err := Parse(r)
	if err != nil {
		log.Fatalln(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	m := machine.New()
	if *vblank {
		m.StartVBlank(ctx)
	}
	err = Run(ctx, m, script, log.Default(), *switches)
	if err != nil {
		log.Fatalln(err)
	}
}

// Run executes script on m and writes one line per operation to l. If
// switches is set, every switch to another thread is written too.
func Run(ctx context.Context, m *machine.Machine, script *Script, l *log.Logger, switches bool) error {
	s := m.NewScheduler()
	if err := s.InitTimers(); err != nil {
		return err
	}
	if script.IRQs != 0 {
		s.HandleIRQ(script.IRQs, nil)
		m.IRQ.Enable(script.IRQs)
	}

	r := &runner{
		s:       s,
		m:       m,
		log:     l,
		mutexes: map[string]thread.Mutex{},
		lists:   map[string]*thread.List{},
		threads: map[string]thread.Thread{},
		names:   map[thread.Thread]string{},
	}
	for _, name := range script.Mutexes {
		r.mutexes[name] = s.NewMutex()
	}
	for _, name := range script.Lists {
		r.lists[name] = new(thread.List)
	}
	for _, spec := range script.Threads {
		t, err := s.Create(r.worker, spec, nil, spec.Priority)
		if err != nil {
			return fmt.Errorf("line %d: %w", spec.Line, err)
		}
		s.SetExitFunc(t, func(int) { l.Printf("%s: exit", spec.Name) })
		r.threads[spec.Name] = t
		r.names[t] = spec.Name
	}

	if switches {
		var shown thread.Thread
		s.SetPreResumeFunc(func(from, to thread.Thread) {
			if to == s.Idle() || to == shown {
				return
			}
			shown = to
			l.Printf("-> %s", r.names[to])
		})
	}
	return s.Run(ctx)
}

type runner struct {
	s   *thread.Scheduler
	m   *machine.Machine
	log *log.Logger

	mutexes map[string]thread.Mutex
	lists   map[string]*thread.List
	threads map[string]thread.Thread
	names   map[thread.Thread]string
}

func (r *runner) worker(arg any) {
	spec := arg.(*ThreadSpec)
	for _, op := range spec.Ops {
		r.exec(spec.Name, op)
	}
}

// exec runs op in the current thread. Operands were checked by Parse.
func (r *runner) exec(name string, op Op) {
	s := r.s
	printf := func(format string, args ...any) {
		r.log.Printf(name+": "+format, args...)
	}
	self := s.Current()
	target := func(i int) thread.Thread {
		if i >= len(op.Args) {
			return self
		}
		return r.threads[op.Args[i]]
	}
	source := func() irq.Flag {
		f, _ := irq.ParseFlag(op.Args[0])
		return f
	}

	switch op.Name {
	case "lock":
		printf("%s", op)
		s.Lock(r.mutexes[op.Args[0]])
	case "trylock":
		printf("%s = %t", op, s.TryLock(r.mutexes[op.Args[0]]))
	case "unlock":
		printf("%s", op)
		if err := s.Unlock(r.mutexes[op.Args[0]]); err != nil {
			printf("error: %v", err)
		}
	case "yield":
		printf("%s", op)
		var l *thread.List
		if len(op.Args) > 0 {
			l = r.lists[op.Args[0]]
		}
		s.Yield(l)
	case "schedule":
		printf("%s", op)
		t := target(0)
		if err := r.schedulable(t); err != nil {
			printf("error: %v", err)
			break
		}
		s.Schedule(t)
	case "wake":
		printf("%s", op)
		s.ScheduleList(r.lists[op.Args[0]])
	case "pushback":
		printf("%s", op)
		s.PushBack()
	case "sleep":
		ms, _ := strconv.Atoi(op.Args[0])
		printf("%s", op)
		if err := s.Sleep(ms); err != nil {
			printf("error: %v", err)
		}
	case "waitirq":
		printf("%s", op)
		printf("woken by %v", s.WaitIRQ(false, source()))
	case "raise":
		printf("%s", op)
		r.m.IRQ.Raise(source())
		s.Checkpoint()
	case "setprio":
		prio, _ := strconv.Atoi(op.Args[len(op.Args)-1])
		t := self
		if len(op.Args) == 2 {
			t = target(0)
		}
		printf("%s", op)
		if s.HasBeenRemoved(t) {
			printf("error: %v", errDeleted)
			break
		}
		if err := s.SetPriority(t, prio); err != nil {
			printf("error: %v", err)
		}
	case "delete":
		printf("%s", op)
		s.Delete(target(0))
	case "join":
		printf("%s", op)
		s.Join(target(0))
	case "print":
		printf("%s", strings.Join(op.Args, " "))
	}
}

// schedulable reports why t can't be passed to Schedule.
func (r *runner) schedulable(t thread.Thread) error {
	switch {
	case r.s.HasBeenRemoved(t):
		return errDeleted
	case r.s.BlockedAt(t) != 0:
		return errBlocked
	}
	return nil
}
