package accel

// Fixed point numbers use 12 fractional bits.
const FixShift = 12

// Div returns a/b using the 32/32 mode.
func (u *Unit) Div(a, b int32) int32 {
	u.SetDivMode(Div32)
	u.SetNumer(int64(a))
	u.SetDenom(int64(b))
	return int32(u.Quotient())
}

// Mod returns a%b using the 32/32 mode.
func (u *Unit) Mod(a, b int32) int32 {
	u.SetDivMode(Div32)
	u.SetNumer(int64(a))
	u.SetDenom(int64(b))
	return int32(u.Remainder())
}

// FixDiv divides two 20.12 fixed point numbers.
func (u *Unit) FixDiv(a, b int32) int32 {
	u.SetDivMode(Div64_32)
	u.SetNumer(int64(a) << FixShift)
	u.SetDenom(int64(b))
	return int32(u.Quotient())
}

// FixInverse returns 1/a for a 20.12 fixed point number.
func (u *Unit) FixInverse(a int32) int32 {
	u.SetDivMode(Div64_32)
	u.SetNumer(1 << (2 * FixShift))
	u.SetDenom(int64(a))
	return int32(u.Quotient())
}

// Sqrt returns the integer square root of a.
func (u *Unit) Sqrt(a uint32) uint32 {
	u.SetSqrtMode(Sqrt32)
	u.SetSqrtParam(uint64(a))
	return u.SqrtResult()
}

// FixSqrt returns the square root of a non-negative 20.12 fixed point number.
func (u *Unit) FixSqrt(a int32) int32 {
	u.SetSqrtMode(Sqrt64)
	u.SetSqrtParam(uint64(a) << FixShift)
	return int32(u.SqrtResult())
}
