package accel_test

import (
	"math"
	"testing"

	"github.com/ndkgo/ndk/nitro/accel"
)

func TestDivide(t *testing.T) {
	tests := map[string]struct {
		mode         accel.DivMode
		numer, denom int64
		quo, rem     int64
		div0         bool
	}{
		"32/32":            {accel.Div32, 100, 7, 14, 2, false},
		"32/32 negative":   {accel.Div32, -100, 7, -14, -2, false},
		"32/32 truncates":  {accel.Div32, 1<<32 | 9, 1<<32 | 3, 3, 0, false},
		"64/32":            {accel.Div64_32, 1 << 40, 1 << 8, 1 << 32, 0, false},
		"64/64":            {accel.Div64, 1 << 62, 1 << 33, 1 << 29, 0, false},
		"zero positive":    {accel.Div64, 5, 0, -1, 5, true},
		"zero negative":    {accel.Div64, -5, 0, 1, -5, true},
		"zero in low bits": {accel.Div32, 5, 1 << 32, -1, 5, false},
		"most negative":    {accel.Div64, math.MinInt64, -1, math.MinInt64, 0, false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			u := accel.New()
			u.SetDivMode(tc.mode)
			u.SetNumer(tc.numer)
			u.SetDenom(tc.denom)
			if got := u.Quotient(); got != tc.quo {
				t.Errorf("quotient %d, expected %d", got, tc.quo)
			}
			if got := u.Remainder(); got != tc.rem {
				t.Errorf("remainder %d, expected %d", got, tc.rem)
			}
			if u.DivByZero() != tc.div0 {
				t.Errorf("div0 flag %v", u.DivByZero())
			}
		})
	}
}

func TestSqrt(t *testing.T) {
	u := accel.New()
	for _, x := range []uint32{0, 1, 2, 3, 4, 15, 16, 17, 1 << 20, math.MaxUint32} {
		r := u.Sqrt(x)
		if uint64(r)*uint64(r) > uint64(x) || (uint64(r)+1)*(uint64(r)+1) <= uint64(x) {
			t.Errorf("sqrt(%d) = %d", x, r)
		}
	}

	u.SetSqrtMode(accel.Sqrt64)
	u.SetSqrtParam(math.MaxUint64)
	if got := u.SqrtResult(); got != math.MaxUint32 {
		t.Errorf("64-bit sqrt %d", got)
	}
	u.SetSqrtMode(accel.Sqrt32)
	if got := u.SqrtResult(); got != math.MaxUint16 {
		t.Errorf("32-bit sqrt %d", got)
	}
}

func TestFixedPoint(t *testing.T) {
	const one = 1 << accel.FixShift
	u := accel.New()
	if got := u.FixDiv(3*one, 2*one); got != one+one/2 {
		t.Errorf("3/2 = %#x", got)
	}
	if got := u.FixInverse(4 * one); got != one/4 {
		t.Errorf("1/4 = %#x", got)
	}
	if got := u.FixSqrt(9 * one); got != 3*one {
		t.Errorf("sqrt(9) = %#x", got)
	}
	if got, rem := u.Div(-7, 2), u.Mod(-7, 2); got != -3 || rem != -1 {
		t.Errorf("-7/2 = %d rem %d", got, rem)
	}
}

func TestSaveRestore(t *testing.T) {
	u := accel.New()
	u.SetDivMode(accel.Div64)
	u.SetNumer(1000)
	u.SetDenom(10)

	var saved accel.State
	u.Save(&saved)

	u.Div(1, 0)
	if !u.DivByZero() {
		t.Fatal("div0 flag not set")
	}

	u.Restore(&saved)
	if u.DivMode() != accel.Div64 || u.Quotient() != 100 || u.DivByZero() {
		t.Errorf("state not restored: %+v", u.State)
	}
}
