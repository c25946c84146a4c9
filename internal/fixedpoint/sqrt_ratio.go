package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	significandBits = 94
	significandMask = 1<<30 - 1
)

// shifts maps the 2-bit exponent to the left shift applied to the significand.
var shifts = [4]uint{2, 34, 66, 98}

// SqrtRatio is a square-root price compressed into 96 bits. The two high bits
// select a shift from {2, 34, 66, 98}; the remaining 94 bits are the
// significand of the 64.128 fixed-point value. Encodings produced by FromFixed
// always use the smallest fitting shift, so comparing encodings orders prices.
type SqrtRatio struct {
	hi uint32
	lo uint64
}

// FromFixed compresses a 64.128 fixed-point value, rounding the dropped low
// bits up or down.
func FromFixed(v *uint256.Int, roundUp bool) (SqrtRatio, error) {
	for exp, shift := range shifts {
		sig := new(uint256.Int).Set(v)
		if roundUp {
			mask := new(uint256.Int).Lsh(uint256.NewInt(1), shift)
			mask.Sub(mask, uint256.NewInt(1))
			if _, overflow := sig.AddOverflow(sig, mask); overflow {
				return SqrtRatio{}, fmt.Errorf("sqrt ratio %s: %w", v.ToBig().String(), ErrOverflow)
			}
		}
		sig.Rsh(sig, shift)
		if sig.BitLen() <= significandBits {
			hi := new(uint256.Int).Rsh(sig, 64).Uint64()
			return SqrtRatio{hi: uint32(exp)<<30 | uint32(hi), lo: sig.Uint64()}, nil
		}
	}
	return SqrtRatio{}, fmt.Errorf("sqrt ratio %s: %w", v.ToBig().String(), ErrOverflow)
}

// FromBig is FromFixed for big.Int inputs; negative values are rejected.
func FromBig(v *big.Int, roundUp bool) (SqrtRatio, error) {
	if v.Sign() < 0 {
		return SqrtRatio{}, fmt.Errorf("negative sqrt ratio %s: %w", v.String(), ErrOverflow)
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return SqrtRatio{}, fmt.Errorf("sqrt ratio %s: %w", v.String(), ErrOverflow)
	}
	return FromFixed(u, roundUp)
}

// FromX96 converts a Q64.96 sqrt price into the compressed form.
func FromX96(sqrtPriceX96 *big.Int) (SqrtRatio, error) {
	return FromBig(new(big.Int).Lsh(sqrtPriceX96, 32), false)
}

// ToFixed expands the ratio to its 64.128 fixed-point value.
func (s SqrtRatio) ToFixed() *uint256.Int {
	v := new(uint256.Int).SetUint64(uint64(s.hi & significandMask))
	v.Lsh(v, 64)
	v.Or(v, new(uint256.Int).SetUint64(s.lo))
	return v.Lsh(v, shifts[s.hi>>30])
}

// ToBig is ToFixed as a big.Int.
func (s SqrtRatio) ToBig() *big.Int {
	return s.ToFixed().ToBig()
}

// ToX96 converts back to Q64.96, truncating.
func (s SqrtRatio) ToX96() *big.Int {
	return new(big.Int).Rsh(s.ToBig(), 32)
}

func (s SqrtRatio) IsZero() bool {
	return s.hi == 0 && s.lo == 0
}

// Cmp compares two compressed ratios.
func (s SqrtRatio) Cmp(o SqrtRatio) int {
	switch {
	case s.hi < o.hi:
		return -1
	case s.hi > o.hi:
		return 1
	case s.lo < o.lo:
		return -1
	case s.lo > o.lo:
		return 1
	}
	return 0
}

func (s SqrtRatio) Lt(o SqrtRatio) bool { return s.Cmp(o) < 0 }
func (s SqrtRatio) Gt(o SqrtRatio) bool { return s.Cmp(o) > 0 }

// Price returns the spot price token1/token0 as a float, for reporting only.
func (s SqrtRatio) Price() *big.Float {
	f := new(big.Float).SetInt(s.ToBig())
	f.Quo(f, new(big.Float).SetInt(Q128))
	return f.Mul(f, f)
}

func (s SqrtRatio) String() string {
	return s.ToBig().String()
}

// MarshalText encodes the fixed-point value in decimal.
func (s SqrtRatio) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a decimal fixed-point value, rounding down.
func (s *SqrtRatio) UnmarshalText(text []byte) error {
	v, ok := new(big.Int).SetString(string(text), 10)
	if !ok {
		return fmt.Errorf("invalid sqrt ratio %q", string(text))
	}
	parsed, err := FromBig(v, false)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
