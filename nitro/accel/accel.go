// Package accel models the ARM9's divide and square root unit.
//
// The unit's parameter registers are global state. Every thread that uses
// them needs its own copy, so the scheduler saves and restores them with the
// thread context.
//
// Results are computed when read. The busy flags are never set.
package accel

import "math/bits"

type DivMode uint16

const (
	Div32    DivMode = 0 // int32 / int32
	Div64_32 DivMode = 1 // int64 / int32
	Div64    DivMode = 2 // int64 / int64
)

type SqrtMode uint16

const (
	Sqrt32 SqrtMode = 0
	Sqrt64 SqrtMode = 1
)

const (
	divModeMask uint16 = 3
	divByZero   uint16 = 1 << 14
	sqrtMask    uint16 = 1
)

// State is a snapshot of the unit's registers.
type State struct {
	DivCnt    uint16
	Numer     int64
	Denom     int64
	SqrtCnt   uint16
	SqrtParam uint64
}

type Unit struct {
	State
}

func New() *Unit {
	return &Unit{}
}

func (u *Unit) Save(s *State) {
	*s = u.State
}

func (u *Unit) Restore(s *State) {
	u.State = *s
}

func (u *Unit) SetDivMode(m DivMode) {
	u.DivCnt = u.DivCnt&^divModeMask | uint16(m)&divModeMask
}

func (u *Unit) DivMode() DivMode {
	return DivMode(u.DivCnt & divModeMask)
}

func (u *Unit) SetNumer(n int64) {
	u.Numer = n
}

func (u *Unit) SetDenom(d int64) {
	u.Denom = d
	if d == 0 {
		u.DivCnt |= divByZero
	} else {
		u.DivCnt &^= divByZero
	}
}

// DivByZero reports whether the full 64-bit denominator is zero.
func (u *Unit) DivByZero() bool {
	return u.DivCnt&divByZero != 0
}

func (u *Unit) operands() (n, d int64) {
	switch u.DivMode() {
	case Div32:
		return int64(int32(u.Numer)), int64(int32(u.Denom))
	case Div64_32:
		return u.Numer, int64(int32(u.Denom))
	default:
		return u.Numer, u.Denom
	}
}

// Quotient returns DIV_RESULT. Division by zero yields +1 or -1, with the
// opposite sign of the numerator.
func (u *Unit) Quotient() int64 {
	n, d := u.operands()
	if d == 0 {
		if n < 0 {
			return 1
		}
		return -1
	}
	return n / d
}

// Remainder returns DIVREM_RESULT. Division by zero yields the numerator.
func (u *Unit) Remainder() int64 {
	n, d := u.operands()
	if d == 0 {
		return n
	}
	return n % d
}

func (u *Unit) SetSqrtMode(m SqrtMode) {
	u.SqrtCnt = u.SqrtCnt&^sqrtMask | uint16(m)&sqrtMask
}

func (u *Unit) SetSqrtParam(p uint64) {
	u.SqrtParam = p
}

// SqrtResult returns the integer square root of the parameter, rounded down.
func (u *Unit) SqrtResult() uint32 {
	p := u.SqrtParam
	if SqrtMode(u.SqrtCnt&sqrtMask) == Sqrt32 {
		p = uint64(uint32(p))
	}
	return isqrt(p)
}

func isqrt(x uint64) uint32 {
	if x == 0 {
		return 0
	}
	// Newton's method, starting above the root.
	r := uint64(1) << ((bits.Len64(x) + 1) / 2)
	for {
		next := (r + x/r) / 2
		if next >= r {
			return uint32(r)
		}
		r = next
	}
}
