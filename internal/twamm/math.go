package twamm

import (
	"fmt"
	"math/big"

	"liquidityEngine/internal/core"
	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/tickmath"
)

// Sale rates carry 32 fractional bits: tokens per second << 32.
const saleRateFractionalBits = 32

var (
	// MaxSaleRate bounds a single order and the aggregate rate of each side.
	MaxSaleRate = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 112), big.NewInt(1))

	saleRateRoundUp = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), saleRateFractionalBits), big.NewInt(1))

	one128   = new(big.Int).Lsh(big.NewInt(1), 128)
	one192   = new(big.Int).Lsh(big.NewInt(1), 192)
	mask128  = new(big.Int).Sub(one128, big.NewInt(1))
	maxExpX  = new(big.Int).Lsh(big.NewInt(88), 128)
	eX192    = computeE()
	feeScale = new(big.Int).Lsh(big.NewInt(1), 64)
)

// ComputeSaleRate spreads amount evenly over duration seconds.
func ComputeSaleRate(amount *big.Int, duration uint64) (*big.Int, error) {
	if duration == 0 {
		return nil, fmt.Errorf("zero duration: %w", core.ErrInvalidRange)
	}
	rate := new(big.Int).Lsh(amount, saleRateFractionalBits)
	rate.Quo(rate, new(big.Int).SetUint64(duration))
	if rate.Cmp(MaxSaleRate) > 0 {
		return nil, fmt.Errorf("sale rate %s: %w", rate, core.ErrOverflow)
	}
	return rate, nil
}

// ComputeAmountFromSaleRate is the amount a rate sells over duration seconds.
func ComputeAmountFromSaleRate(rate *big.Int, duration uint64, roundUp bool) *big.Int {
	amount := new(big.Int).Mul(rate, new(big.Int).SetUint64(duration))
	if roundUp {
		amount.Add(amount, saleRateRoundUp)
	}
	return amount.Rsh(amount, saleRateFractionalBits)
}

// ComputeC returns (sqrtSaleRatio - sqrtRatio) / (sqrtSaleRatio + sqrtRatio)
// as a signed 128-bit fraction, truncated toward zero.
func ComputeC(sqrtRatio, sqrtSaleRatio *big.Int) *big.Int {
	diff := new(big.Int).Sub(sqrtSaleRatio, sqrtRatio)
	sum := new(big.Int).Add(sqrtSaleRatio, sqrtRatio)
	if sum.Sign() == 0 {
		return new(big.Int)
	}
	c := new(big.Int).Lsh(new(big.Int).Abs(diff), 128)
	c.Quo(c, sum)
	if diff.Sign() < 0 {
		c.Neg(c)
	}
	return c
}

// SqrtSaleRatio is sqrt(saleRate1 / saleRate0), the price at which the two
// sides of the order book clear each other, clamped to the valid range.
func SqrtSaleRatio(saleRate0, saleRate1 *big.Int) (fixedpoint.SqrtRatio, error) {
	if saleRate0.Sign() <= 0 {
		return fixedpoint.SqrtRatio{}, fmt.Errorf("sale ratio with zero token0 rate: %w", fixedpoint.ErrDivisionByZero)
	}
	return fixedpoint.FromBig(sqrtSaleRatioFixed(saleRate0, saleRate1), false)
}

func sqrtSaleRatioFixed(saleRate0, saleRate1 *big.Int) *big.Int {
	ratio := new(big.Int).Lsh(saleRate1, 256)
	ratio.Quo(ratio, saleRate0)
	return clampFixed(fixedpoint.Sqrt(ratio))
}

func clampFixed(v *big.Int) *big.Int {
	if lower := tickmath.MinFixed(); v.Cmp(lower) < 0 {
		return lower
	}
	if upper := tickmath.MaxFixed(); v.Cmp(upper) > 0 {
		return upper
	}
	return v
}

// ComputeNextSqrtRatio prices the pool after both sides have sold into it
// for elapsed seconds:
//
//	next = k * (e^x - c) / (e^x + c),  x = 2 * sqrt(r0 * r1) * t * (1 - fee) / L
//
// where k is the sale ratio price and c = ComputeC(current, k). The result
// always lies between the current price and k.
func ComputeNextSqrtRatio(sqrtRatio fixedpoint.SqrtRatio, liquidity, saleRate0, saleRate1 *big.Int, elapsed uint64, fee uint64) (fixedpoint.SqrtRatio, error) {
	if saleRate0.Sign() <= 0 || saleRate1.Sign() <= 0 {
		return fixedpoint.SqrtRatio{}, fmt.Errorf("both sale rates must be positive: %w", core.ErrInvalidRange)
	}
	k := sqrtSaleRatioFixed(saleRate0, saleRate1)
	target, err := fixedpoint.FromBig(k, false)
	if err != nil {
		return fixedpoint.SqrtRatio{}, err
	}
	if liquidity.Sign() == 0 {
		return target, nil
	}

	current := sqrtRatio.ToBig()
	c := ComputeC(current, k)
	if c.Sign() == 0 {
		return target, nil
	}

	x := fixedpoint.Sqrt(new(big.Int).Mul(saleRate0, saleRate1))
	x.Mul(x, new(big.Int).SetUint64(elapsed))
	x.Mul(x, new(big.Int).Sub(feeScale, new(big.Int).SetUint64(fee)))
	x.Lsh(x, 33)
	x.Quo(x, liquidity)
	if x.Cmp(maxExpX) >= 0 {
		return target, nil
	}

	e := expX128(x)
	roundUp := current.Cmp(k) > 0
	next, err := fixedpoint.MulDiv(k, new(big.Int).Sub(e, c), new(big.Int).Add(e, c), roundUp)
	if err != nil {
		return fixedpoint.SqrtRatio{}, err
	}

	// Rounding must never carry the price past either end of its path.
	lo, hi := current, k
	if roundUp {
		lo, hi = k, current
	}
	if next.Cmp(lo) < 0 {
		next = lo
	} else if next.Cmp(hi) > 0 {
		next = hi
	}

	out, err := fixedpoint.FromBig(next, roundUp)
	if err != nil {
		return fixedpoint.SqrtRatio{}, err
	}
	if (roundUp && out.Lt(target)) || (!roundUp && out.Gt(target)) {
		return target, nil
	}
	if (roundUp && out.Gt(sqrtRatio)) || (!roundUp && out.Lt(sqrtRatio)) {
		return sqrtRatio, nil
	}
	return out, nil
}

// expX128 returns e^x for a 128.128 fixed-point x below 88. The fractional
// part goes through a Taylor series and the integer part through repeated
// multiplication by e, both at 192 fractional bits.
func expX128(x *big.Int) *big.Int {
	whole := new(big.Int).Rsh(x, 128).Int64()
	frac := new(big.Int).And(x, mask128)
	frac.Lsh(frac, 64)

	sum := new(big.Int).Set(one192)
	term := new(big.Int).Set(one192)
	for n := int64(1); term.Sign() > 0; n++ {
		term.Mul(term, frac)
		term.Rsh(term, 192)
		term.Quo(term, big.NewInt(n))
		sum.Add(sum, term)
	}

	for i := int64(0); i < whole; i++ {
		sum.Mul(sum, eX192)
		sum.Rsh(sum, 192)
	}
	return sum.Rsh(sum, 64)
}

func computeE() *big.Int {
	sum := new(big.Int)
	term := new(big.Int).Set(one192)
	for n := int64(1); term.Sign() > 0; n++ {
		sum.Add(sum, term)
		term.Quo(term, big.NewInt(n))
	}
	return sum
}
