// Package thread implements a cooperative, priority based thread scheduler
// with blocking mutexes and interrupt driven wakeup.
//
// There is no time slicing. A thread runs until it yields, blocks on a
// mutex, changes priorities so that another thread is preferred, deletes
// itself or reaches a point where a pending interrupt woke a thread with
// higher priority. Priorities range from 0 (highest) to 31 (lowest). Among
// threads of equal priority the order of arrival is kept.
//
// Threads and mutexes are referred to by handles. Handles of deleted objects
// become stale and using them panics, except for the queries documented to
// accept them.
//
// All state belongs to a Scheduler, which is driven by its Run method. Run is
// the only place that resumes a thread. When no thread is ready the idle
// thread halts the CPU until the next interrupt.
//
// Thread contexts carry the CPU's IRQ disable bit and the state of the
// divide/square root unit. Each thread is executed by an ExecutionState; the
// default one runs threads as goroutines handing a single baton around, so
// exactly one of them executes at any time. Interrupts are delivered at
// scheduling points only, long running threads can call Checkpoint.
package thread
