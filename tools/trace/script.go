package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/buildkite/shellwords"

	"github.com/ndkgo/ndk/nitro/irq"
	"github.com/ndkgo/ndk/thread"
)

// A Script declares mutexes, wait lists, handled interrupts and threads with
// the operations they execute in order. Example:
//
//	mutex m
//	irq VBlank
//
//	thread main 16
//		lock m
//		waitirq VBlank
//		unlock m
//
// Lines are split like shell words, # starts a comment.
type Script struct {
	Mutexes []string
	Lists   []string
	IRQs    irq.Flag
	Threads []*ThreadSpec
}

type ThreadSpec struct {
	Name     string
	Priority int
	Ops      []Op
	Line     int
}

type Op struct {
	Line int
	Name string
	Args []string
}

func (op Op) String() string {
	return strings.Join(append([]string{op.Name}, op.Args...), " ")
}

// SyntaxError reports a malformed script line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type arg int

const (
	argMutex arg = iota
	argList
	argThread
	argFlag
	argInt
	argText
)

// Operand kinds of each operation. Optional operands lead and are omitted
// from the left, e.g. "setprio 4" and "setprio worker 4".
var ops = map[string]struct {
	args     []arg
	optional int
}{
	"lock":     {args: []arg{argMutex}},
	"trylock":  {args: []arg{argMutex}},
	"unlock":   {args: []arg{argMutex}},
	"yield":    {args: []arg{argList}, optional: 1},
	"schedule": {args: []arg{argThread}},
	"wake":     {args: []arg{argList}},
	"pushback": {},
	"sleep":    {args: []arg{argInt}},
	"waitirq":  {args: []arg{argFlag}},
	"raise":    {args: []arg{argFlag}},
	"setprio":  {args: []arg{argThread, argInt}, optional: 1},
	"delete":   {args: []arg{argThread}, optional: 1},
	"join":     {args: []arg{argThread}},
	"print":    {args: []arg{argText}},
}

// Parse reads a script and checks that all referenced names are declared.
func Parse(r io.Reader) (*Script, error) {
	s := &Script{}
	declared := map[string]arg{}
	declare := func(line int, name string, kind arg) error {
		if _, ok := declared[name]; ok {
			return &SyntaxError{line, "duplicate name " + strconv.Quote(name)}
		}
		declared[name] = kind
		return nil
	}

	var cur *ThreadSpec
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		words, err := shellwords.SplitPosix(line)
		if err != nil {
			return nil, &SyntaxError{n, err.Error()}
		}
		if len(words) == 0 {
			continue
		}

		switch words[0] {
		case "mutex", "list":
			if len(words) != 2 {
				return nil, &SyntaxError{n, words[0] + " takes one name"}
			}
			kind, names := argMutex, &s.Mutexes
			if words[0] == "list" {
				kind, names = argList, &s.Lists
			}
			if err := declare(n, words[1], kind); err != nil {
				return nil, err
			}
			*names = append(*names, words[1])
		case "irq":
			if len(words) != 2 {
				return nil, &SyntaxError{n, "irq takes one source"}
			}
			f, ok := irq.ParseFlag(words[1])
			if !ok {
				return nil, &SyntaxError{n, "unknown interrupt " + words[1]}
			}
			s.IRQs |= f
		case "thread":
			if len(words) != 3 {
				return nil, &SyntaxError{n, "thread takes a name and a priority"}
			}
			prio, err := parsePriority(words[2])
			if err != nil {
				return nil, &SyntaxError{n, err.Error()}
			}
			if err := declare(n, words[1], argThread); err != nil {
				return nil, err
			}
			cur = &ThreadSpec{Name: words[1], Priority: prio, Line: n}
			s.Threads = append(s.Threads, cur)
		default:
			spec, ok := ops[words[0]]
			if !ok {
				return nil, &SyntaxError{n, "unknown operation " + words[0]}
			}
			if cur == nil {
				return nil, &SyntaxError{n, words[0] + " outside of thread"}
			}
			nargs := len(words) - 1
			text := len(spec.args) == 1 && spec.args[0] == argText
			if !text && (nargs > len(spec.args) || nargs < len(spec.args)-spec.optional) {
				return nil, &SyntaxError{n, fmt.Sprintf("%s takes %d operands", words[0], len(spec.args))}
			}
			cur.Ops = append(cur.Ops, Op{Line: n, Name: words[0], Args: words[1:]})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	for _, t := range s.Threads {
		for _, op := range t.Ops {
			if err := check(op, declared); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func check(op Op, declared map[string]arg) error {
	spec := ops[op.Name]
	if len(spec.args) == 1 && spec.args[0] == argText {
		return nil
	}
	kinds := spec.args[len(spec.args)-len(op.Args):]
	for i, a := range op.Args {
		switch kinds[i] {
		case argInt:
			if _, err := strconv.Atoi(a); err != nil {
				return &SyntaxError{op.Line, "not a number: " + a}
			}
		case argFlag:
			if _, ok := irq.ParseFlag(a); !ok {
				return &SyntaxError{op.Line, "unknown interrupt " + a}
			}
		default:
			if kind, ok := declared[a]; !ok || kind != kinds[i] {
				return &SyntaxError{op.Line, fmt.Sprintf("%s: undeclared %s %q", op.Name, kindNames[kinds[i]], a)}
			}
		}
	}
	return nil
}

var kindNames = [...]string{
	argMutex:  "mutex",
	argList:   "list",
	argThread: "thread",
}

func parsePriority(s string) (int, error) {
	prio, err := strconv.Atoi(s)
	if err != nil || prio < thread.HighestPriority || prio > thread.LowestPriority {
		return 0, fmt.Errorf("invalid priority %s", s)
	}
	return prio, nil
}
