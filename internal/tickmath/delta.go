package tickmath

import (
	"fmt"
	"math/big"

	"liquidityEngine/internal/fixedpoint"
)

func sortRatios(a, b fixedpoint.SqrtRatio) (*big.Int, *big.Int) {
	if a.Gt(b) {
		a, b = b, a
	}
	return a.ToBig(), b.ToBig()
}

// Amount0Delta is the token0 amount needed to move liquidity between two
// sqrt ratios: L * (b - a) / (a * b).
func Amount0Delta(a, b fixedpoint.SqrtRatio, liquidity *big.Int, roundUp bool) (*big.Int, error) {
	lower, upper := sortRatios(a, b)
	if liquidity.Sign() == 0 || lower.Cmp(upper) == 0 {
		return new(big.Int), nil
	}
	if lower.Sign() == 0 {
		return nil, fmt.Errorf("amount0 delta at zero price: %w", ErrSqrtRatioOutOfBounds)
	}

	numerator := new(big.Int).Lsh(liquidity, 128)
	diff := new(big.Int).Sub(upper, lower)
	partial, err := fixedpoint.MulDiv(numerator, diff, upper, roundUp)
	if err != nil {
		return nil, err
	}
	amount := fixedpoint.Div(partial, lower, roundUp)
	if err := fixedpoint.CheckUint128(amount); err != nil {
		return nil, fmt.Errorf("amount0 delta: %w", err)
	}
	return amount, nil
}

// Amount1Delta is the token1 amount needed to move liquidity between two sqrt
// ratios: L * (b - a).
func Amount1Delta(a, b fixedpoint.SqrtRatio, liquidity *big.Int, roundUp bool) (*big.Int, error) {
	lower, upper := sortRatios(a, b)
	if liquidity.Sign() == 0 || lower.Cmp(upper) == 0 {
		return new(big.Int), nil
	}

	diff := new(big.Int).Sub(upper, lower)
	amount, err := fixedpoint.MulDiv(liquidity, diff, fixedpoint.Q128, roundUp)
	if err != nil {
		return nil, err
	}
	if err := fixedpoint.CheckUint128(amount); err != nil {
		return nil, fmt.Errorf("amount1 delta: %w", err)
	}
	return amount, nil
}

// NextSqrtRatioFromAmount0 moves the price by a token0 amount. A positive
// amount is added to the pool and lowers the price; a negative amount is
// removed and raises it. The result rounds up.
func NextSqrtRatioFromAmount0(sr fixedpoint.SqrtRatio, liquidity, amount *big.Int) (fixedpoint.SqrtRatio, error) {
	if amount.Sign() == 0 {
		return sr, nil
	}
	if liquidity.Sign() == 0 {
		return fixedpoint.SqrtRatio{}, ErrInsufficientLiquidity
	}

	price := sr.ToBig()
	numerator := new(big.Int).Lsh(liquidity, 128)
	product := new(big.Int).Mul(new(big.Int).Abs(amount), price)

	denominator := new(big.Int)
	if amount.Sign() > 0 {
		denominator.Add(numerator, product)
	} else {
		if product.Cmp(numerator) >= 0 {
			return fixedpoint.SqrtRatio{}, fmt.Errorf("remove token0 %s: %w", amount.String(), ErrInsufficientLiquidity)
		}
		denominator.Sub(numerator, product)
	}

	next, err := fixedpoint.MulDiv(numerator, price, denominator, true)
	if err != nil {
		return fixedpoint.SqrtRatio{}, err
	}
	return fixedpoint.FromBig(next, true)
}

// NextSqrtRatioFromAmount1 moves the price by a token1 amount. A positive
// amount is added and raises the price; a negative amount is removed and
// lowers it. The result rounds down.
func NextSqrtRatioFromAmount1(sr fixedpoint.SqrtRatio, liquidity, amount *big.Int) (fixedpoint.SqrtRatio, error) {
	if amount.Sign() == 0 {
		return sr, nil
	}
	if liquidity.Sign() == 0 {
		return fixedpoint.SqrtRatio{}, ErrInsufficientLiquidity
	}

	price := sr.ToBig()
	shifted := new(big.Int).Lsh(new(big.Int).Abs(amount), 128)

	next := new(big.Int)
	if amount.Sign() > 0 {
		next.Add(price, new(big.Int).Quo(shifted, liquidity))
	} else {
		quotient := fixedpoint.DivRoundUp(shifted, liquidity)
		if quotient.Cmp(price) >= 0 {
			return fixedpoint.SqrtRatio{}, fmt.Errorf("remove token1 %s: %w", amount.String(), ErrInsufficientLiquidity)
		}
		next.Sub(price, quotient)
	}
	return fixedpoint.FromBig(next, false)
}

// LiquidityDeltaToAmounts converts a signed liquidity change on [lower, upper)
// into token amounts at price sr. Deposits round up and come back positive;
// withdrawals round down and come back negative.
func LiquidityDeltaToAmounts(sr, lower, upper fixedpoint.SqrtRatio, delta *big.Int) (*big.Int, *big.Int, error) {
	amount0, amount1 := new(big.Int), new(big.Int)
	if delta.Sign() == 0 {
		return amount0, amount1, nil
	}

	roundUp := delta.Sign() > 0
	liquidity := new(big.Int).Abs(delta)

	var err error
	switch {
	case sr.Cmp(lower) <= 0:
		amount0, err = Amount0Delta(lower, upper, liquidity, roundUp)
	case sr.Lt(upper):
		if amount0, err = Amount0Delta(sr, upper, liquidity, roundUp); err != nil {
			return nil, nil, err
		}
		amount1, err = Amount1Delta(lower, sr, liquidity, roundUp)
	default:
		amount1, err = Amount1Delta(lower, upper, liquidity, roundUp)
	}
	if err != nil {
		return nil, nil, err
	}

	if !roundUp {
		amount0.Neg(amount0)
		amount1.Neg(amount1)
	}
	return amount0, amount1, nil
}
