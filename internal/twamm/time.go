package twamm

import (
	"math/bits"
)

const (
	// minStep is the finest grid spacing, in seconds, and the width of one
	// bitmap bit.
	minStep = 256
	// nearWindow is how far ahead of the reference the finest grid applies.
	nearWindow = 4095
	// horizon bounds how far ahead of the reference a time may be scheduled.
	horizon = uint64(1) << 32
)

// stepSize returns the grid spacing around t. Times close to (or before) the
// reference use 256 seconds; further out the spacing grows by a factor of 16
// for every 4 bits of distance.
func stepSize(reference, t uint64) uint64 {
	if t <= reference+nearWindow {
		return minStep
	}
	msb := bits.Len64(t-reference) - 1
	return uint64(1) << (uint(msb) / 4 * 4)
}

// IsTimeValid reports whether t lies on the grid seen from reference.
func IsTimeValid(reference, t uint64) bool {
	if t%stepSize(reference, t) != 0 {
		return false
	}
	return t < reference || t-reference < horizon
}

// NextValidTime returns the first valid time strictly after t, or false when
// none exists below the horizon.
func NextValidTime(reference, t uint64) (uint64, bool) {
	next := t + 1
	if next == 0 {
		return 0, false
	}
	for {
		step := stepSize(reference, next)
		aligned := next
		if rem := next % step; rem != 0 {
			aligned = next + (step - rem)
			if aligned < next {
				return 0, false
			}
		}
		if aligned == next {
			if next > reference && next-reference >= horizon {
				return 0, false
			}
			return next, true
		}
		next = aligned
	}
}
