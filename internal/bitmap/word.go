// Package bitmap holds the 256-bit words shared by the tick and time bitmaps.
package bitmap

import "math/bits"

// Word is 256 flags stored as four little-endian uint64 limbs.
type Word [4]uint64

// Flip toggles bit and returns the updated word.
func (w Word) Flip(bit uint8) Word {
	w[bit/64] ^= 1 << (bit % 64)
	return w
}

func (w Word) IsSet(bit uint8) bool {
	return w[bit/64]&(1<<(bit%64)) != 0
}

func (w Word) IsZero() bool {
	return w[0]|w[1]|w[2]|w[3] == 0
}

// HighestAtOrBelow returns the highest set bit <= bit.
func (w Word) HighestAtOrBelow(bit uint8) (uint8, bool) {
	limb := int(bit / 64)
	for i := limb; i >= 0; i-- {
		v := w[i]
		if i == limb {
			shift := bit%64 + 1
			if shift < 64 {
				v &= 1<<shift - 1
			}
		}
		if v != 0 {
			return uint8(i*64 + 63 - bits.LeadingZeros64(v)), true
		}
	}
	return 0, false
}

// LowestAtOrAbove returns the lowest set bit >= bit.
func (w Word) LowestAtOrAbove(bit uint8) (uint8, bool) {
	limb := int(bit / 64)
	for i := limb; i < len(w); i++ {
		v := w[i]
		if i == limb {
			v &^= 1<<(bit%64) - 1
		}
		if v != 0 {
			return uint8(i*64 + bits.TrailingZeros64(v)), true
		}
	}
	return 0, false
}
