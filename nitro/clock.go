package nitro

import (
	"math/bits"
	"time"
)

// Clock speeds
const (
	BusClock  = 33513982 // timers and most peripherals
	ARM9Clock = 2 * BusClock
)

// CyclesToDuration converts bus clock cycles to a duration, rounded up to the
// next nanosecond.
func CyclesToDuration(cycles uint64) time.Duration {
	hi, lo := bits.Mul64(cycles, uint64(time.Second))
	q, r := bits.Div64(hi, lo, BusClock)
	if r != 0 {
		q++
	}
	return time.Duration(q)
}

// DurationToCycles converts a duration to elapsed bus clock cycles, rounded
// down. Negative durations count as zero.
func DurationToCycles(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(d), BusClock)
	q, _ := bits.Div64(hi, lo, uint64(time.Second))
	return q
}
