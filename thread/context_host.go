package thread

import (
	"runtime"
	rtdebug "runtime/debug"
)

// hostState runs a thread on its own goroutine. The goroutine and the
// scheduler hand a baton back and forth, one of them is always blocked.
type hostState struct {
	entry   func()
	resume  chan bool
	parked  chan struct{}
	started bool
	exited  bool
	fault   *PanicError
}

// NewHostState returns the ExecutionState used by default.
func NewHostState() ExecutionState {
	return &hostState{
		resume: make(chan bool),
		parked: make(chan struct{}),
	}
}

func (h *hostState) Bootstrap(entry func(), stack []byte) {
	h.entry = entry
}

func (h *hostState) run() {
	defer func() {
		if r := recover(); r != nil {
			h.fault = &PanicError{Value: r, Stack: rtdebug.Stack()}
		}
		h.exited = true
		h.parked <- struct{}{}
	}()
	h.entry()
}

func (h *hostState) Restore() {
	if h.exited {
		panic("thread: restore of exited thread")
	}
	if !h.started {
		h.started = true
		go h.run()
	} else {
		h.resume <- true
	}
	<-h.parked
	if h.fault != nil {
		fault := h.fault
		h.fault = nil
		panic(fault)
	}
}

func (h *hostState) Save() {
	h.parked <- struct{}{}
	if !<-h.resume {
		runtime.Goexit()
	}
}

func (h *hostState) Exit() {
	runtime.Goexit()
}

func (h *hostState) Discard() {
	if h.started && !h.exited {
		h.resume <- false
		<-h.parked
	}
	h.fault = nil
}
