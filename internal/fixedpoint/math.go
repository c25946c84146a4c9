package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrDivisionByZero = errors.New("division by zero")
)

var (
	Q128       = new(big.Int).Lsh(big.NewInt(1), 128)
	MaxUint128 = new(big.Int).Sub(Q128, big.NewInt(1))
	MaxInt128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	MinInt128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// MulDiv returns a*b/d with the 512-bit product kept exact, rounding up when
// asked. The result must fit in 256 bits.
func MulDiv(a, b, d *big.Int, roundUp bool) (*big.Int, error) {
	if d.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	product := new(big.Int).Mul(a, b)
	q, r := new(big.Int).QuoRem(product, d, new(big.Int))
	if roundUp && r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	if q.Cmp(MaxUint256) > 0 {
		return nil, fmt.Errorf("mul div: %w", ErrOverflow)
	}
	return q, nil
}

// DivRoundUp divides non-negative a by positive d, rounding up.
func DivRoundUp(a, d *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, d, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// Div divides non-negative a by positive d in the requested direction.
func Div(a, d *big.Int, roundUp bool) *big.Int {
	if roundUp {
		return DivRoundUp(a, d)
	}
	return new(big.Int).Quo(a, d)
}

// Sqrt is the floor square root of a non-negative value.
func Sqrt(v *big.Int) *big.Int {
	return new(big.Int).Sqrt(v)
}

// U256 converts a non-negative big.Int that fits in 256 bits.
func U256(v *big.Int) (*uint256.Int, error) {
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s: %w", v.String(), ErrOverflow)
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("value %s: %w", v.String(), ErrOverflow)
	}
	return u, nil
}

func CheckUint128(v *big.Int) error {
	if v.Sign() < 0 || v.Cmp(MaxUint128) > 0 {
		return fmt.Errorf("uint128 %s: %w", v.String(), ErrOverflow)
	}
	return nil
}

func CheckInt128(v *big.Int) error {
	if v.Cmp(MinInt128) < 0 || v.Cmp(MaxInt128) > 0 {
		return fmt.Errorf("int128 %s: %w", v.String(), ErrOverflow)
	}
	return nil
}

// NegInt128 negates a signed 128-bit value. -2^127 has no positive
// counterpart and is rejected.
func NegInt128(v *big.Int) (*big.Int, error) {
	if err := CheckInt128(v); err != nil {
		return nil, err
	}
	if v.Cmp(MinInt128) == 0 {
		return nil, fmt.Errorf("negate %s: %w", v.String(), ErrOverflow)
	}
	return new(big.Int).Neg(v), nil
}

// Abs returns |v| as a new value.
func Abs(v *big.Int) *big.Int {
	return new(big.Int).Abs(v)
}

// Zero returns a fresh zero.
func Zero() *big.Int {
	return new(big.Int)
}

// Clone copies v, mapping nil to zero.
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
