package thread

import (
	"github.com/sigurn/crc8"

	"github.com/ndkgo/ndk/nitro/accel"
)

// ExecutionState runs the code of a single thread. It's the platform
// specific part of a thread's context.
//
// Restore is called by the scheduler only, Save and Exit are called by the
// thread itself.
type ExecutionState interface {
	// Bootstrap prepares the state to call entry on the first Restore.
	Bootstrap(entry func(), stack []byte)

	// Restore continues the thread and returns when it has saved its state
	// again or exited.
	Restore()

	// Save stops the calling thread and returns when it's restored.
	Save()

	// Exit stops the calling thread for good. It never returns.
	Exit()

	// Discard releases the resources of a thread that is not running.
	// Deferred functions of a stopped thread may run during Discard.
	Discard()
}

// Coprocessor is the per thread state of the divide/square root unit,
// usually an *accel.Unit.
type Coprocessor interface {
	Save(*accel.State)
	Restore(*accel.State)
}

const (
	guardSize    = 16
	guardPattern = 0xa5
)

var guardCRC8 = crc8.MakeTable(crc8.Params{0x07, 0x00, false, false, 0x00, 0xF4, "CRC-8"})

// Context is everything that is saved when a thread stops and restored when
// it continues.
//
// The bottom of the stack is a guard band whose checksum is verified on every
// save. With the host execution state threads run on goroutine stacks and
// never write the stack region, so the check only fails if the owner of the
// buffer overwrote it. It detects real overflows only for execution states
// that run threads on the given stack.
type Context struct {
	irqDisabled bool // CPSR I bit
	math        accel.State
	stack       []byte
	guard       uint8
	state       ExecutionState
}

func (c *Context) bootstrap(state ExecutionState, entry func(), stack []byte) {
	c.stack = stack
	guard := stack[:guardSize]
	for i := range guard {
		guard[i] = guardPattern
	}
	c.guard = checksum(guard)
	c.state = state
	c.state.Bootstrap(entry, stack)
}

func checksum(data []byte) uint8 {
	csum := crc8.Init(guardCRC8)
	csum = crc8.Update(csum, data, guardCRC8)
	return crc8.Complete(csum, guardCRC8)
}

func (c *Context) save(irqs Interrupts, math Coprocessor) {
	if checksum(c.stack[:guardSize]) != c.guard {
		panic("thread: stack overflow")
	}
	c.irqDisabled = irqs.IRQDisabled()
	if math != nil {
		math.Save(&c.math)
	}
}

func (c *Context) restore(irqs Interrupts, math Coprocessor) {
	if math != nil {
		math.Restore(&c.math)
	}
	irqs.RestoreIRQ(c.irqDisabled)
}

// StackSize returns the size of the thread's stack region.
func (c *Context) StackSize() int {
	return len(c.stack)
}
