package thread

import "golang.org/x/exp/constraints"

// links are the intrusive prev/next handles embedded in a record.
type links[H constraints.Unsigned] struct {
	prev, next H
}

// chain is the head of an intrusive doubly linked list of handles. The
// linker returns the links embedded in the record of a handle.
type chain[H constraints.Unsigned] struct {
	first, last H
}

type linker[H constraints.Unsigned] func(H) *links[H]

func (c *chain[H]) empty() bool {
	if c.first == 0 {
		if c.last != 0 {
			panic("thread: list invariant violated (empty)")
		}
		return true
	}
	return false
}

func (c *chain[H]) pushBack(h H, link linker[H]) {
	n := link(h)
	if n.prev != 0 || n.next != 0 || c.first == h {
		panic("thread: insert of node that is member of another list")
	}
	if c.empty() {
		c.first, c.last = h, h
		return
	}
	last := link(c.last)
	if last.next != 0 {
		panic("thread: last node of list is broken (pushBack)")
	}
	last.next = h
	n.prev = c.last
	c.last = h
}

// insertBefore inserts h in front of at, or at the end if at is zero.
func (c *chain[H]) insertBefore(h, at H, link linker[H]) {
	if at == 0 {
		c.pushBack(h, link)
		return
	}
	n := link(h)
	if n.prev != 0 || n.next != 0 || c.first == h {
		panic("thread: insert of node that is member of another list")
	}
	a := link(at)
	n.next = at
	n.prev = a.prev
	if a.prev == 0 {
		if c.first != at {
			panic("thread: first node of list is broken (insertBefore)")
		}
		c.first = h
	} else {
		link(a.prev).next = h
	}
	a.prev = h
}

func (c *chain[H]) remove(h H, link linker[H]) {
	n := link(h)
	if n.prev == 0 {
		if c.first != h {
			panic("thread: remove of node that isn't a member of the list")
		}
		c.first = n.next
	} else {
		link(n.prev).next = n.next
	}
	if n.next == 0 {
		if c.last != h {
			panic("thread: last node of list is broken (remove)")
		}
		c.last = n.prev
	} else {
		link(n.next).prev = n.prev
	}
	n.prev, n.next = 0, 0
}

func (c *chain[H]) popFront(link linker[H]) H {
	h := c.first
	if h != 0 {
		c.remove(h, link)
	}
	return h
}

// List is a list of threads, sorted by priority with FIFO order within a
// priority. The zero value is an empty list, ready to use as a wait list.
type List struct {
	chain[Thread]
	byDeadline bool
}

// Empty reports whether no thread is linked into the list.
func (l *List) Empty() bool {
	return l.empty()
}

// First returns the head of the list or the zero Thread.
func (l *List) First() Thread {
	return l.first
}
