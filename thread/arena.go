package thread

// Handles pack a 1-based slot index into the low 16 bits and the slot's
// generation into the high 16 bits. The zero handle refers to nothing.
const (
	indexBits = 16
	indexMask = 1<<indexBits - 1
)

type slot[T any] struct {
	gen  uint16
	used bool
	v    T
}

// arena stores records addressed by handles. Slots are allocated one by one,
// so pointers to records stay valid while the record is in use.
type arena[T any, H ~uint32] struct {
	slots []*slot[T]
	free  []uint32
}

func (a *arena[T, H]) alloc() (H, *T) {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		if len(a.slots) == indexMask {
			panic("thread: too many objects")
		}
		a.slots = append(a.slots, &slot[T]{})
		idx = uint32(len(a.slots))
	}
	s := a.slots[idx-1]
	s.used = true
	return H(uint32(s.gen)<<indexBits | idx), &s.v
}

func (a *arena[T, H]) lookup(h H) (*T, bool) {
	idx := uint32(h) & indexMask
	if idx == 0 || int(idx) > len(a.slots) {
		return nil, false
	}
	s := a.slots[idx-1]
	if !s.used || s.gen != uint16(uint32(h)>>indexBits) {
		return nil, false
	}
	return &s.v, true
}

func (a *arena[T, H]) get(h H) *T {
	v, ok := a.lookup(h)
	if !ok {
		panic("thread: invalid or stale handle")
	}
	return v
}

func (a *arena[T, H]) release(h H) {
	idx := uint32(h) & indexMask
	if _, ok := a.lookup(h); !ok {
		panic("thread: release of invalid handle")
	}
	s := a.slots[idx-1]
	var zero T
	s.v = zero
	s.used = false
	s.gen++
	a.free = append(a.free, idx)
}

// each calls fn for every record in use, in slot order.
func (a *arena[T, H]) each(fn func(H, *T)) {
	for i, s := range a.slots {
		if s.used {
			fn(H(uint32(s.gen)<<indexBits|uint32(i+1)), &s.v)
		}
	}
}
