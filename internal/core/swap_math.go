package core

import (
	"errors"
	"fmt"
	"math/big"

	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/tickmath"
)

var two64 = new(big.Int).Lsh(big.NewInt(1), 64)

// errExactOutputStalled signals an exact output step that could not move the
// price. The swap loop decides whether the residue is tolerable.
var errExactOutputStalled = errors.New("exact output step did not move price")

// stepResult is the outcome of one swap step. consumed carries the sign of
// the specified amount; calculated and fee are unsigned.
type stepResult struct {
	consumed   *big.Int
	calculated *big.Int
	fee        *big.Int
	next       fixedpoint.SqrtRatio
}

func noStep(sr fixedpoint.SqrtRatio) stepResult {
	return stepResult{consumed: new(big.Int), calculated: new(big.Int), fee: new(big.Int), next: sr}
}

// ComputeFee returns ceil(amount * fee / 2^64).
func ComputeFee(amount *big.Int, fee uint64) *big.Int {
	product := new(big.Int).Mul(amount, new(big.Int).SetUint64(fee))
	return fixedpoint.DivRoundUp(product, two64)
}

// AmountBeforeFee grosses up an amount so that after the fee is taken,
// afterFee remains: ceil(afterFee * 2^64 / (2^64 - fee)).
func AmountBeforeFee(afterFee *big.Int, fee uint64) (*big.Int, error) {
	if fee == 0 {
		return new(big.Int).Set(afterFee), nil
	}
	denominator := new(big.Int).Sub(two64, new(big.Int).SetUint64(fee))
	amount := fixedpoint.DivRoundUp(new(big.Int).Lsh(afterFee, 64), denominator)
	if err := fixedpoint.CheckUint128(amount); err != nil {
		return nil, fmt.Errorf("amount before fee: %w", err)
	}
	return amount, nil
}

// nextSqrtRatio moves sr by a signed amount of the specified token. It is a
// variable so tests can pin the price.
var nextSqrtRatio = func(sr fixedpoint.SqrtRatio, liquidity, amount *big.Int, isToken1 bool) (fixedpoint.SqrtRatio, error) {
	if isToken1 {
		return tickmath.NextSqrtRatioFromAmount1(sr, liquidity, amount)
	}
	return tickmath.NextSqrtRatioFromAmount0(sr, liquidity, amount)
}

func isPriceIncreasing(amount *big.Int, isToken1 bool) bool {
	return isToken1 != (amount.Sign() < 0)
}

// computeStep moves the price from sr toward target using at most amount.
func computeStep(sr fixedpoint.SqrtRatio, liquidity *big.Int, target fixedpoint.SqrtRatio, amount *big.Int, isToken1 bool, fee uint64) (stepResult, error) {
	if amount.Sign() == 0 || sr == target {
		return noStep(sr), nil
	}
	increasing := isPriceIncreasing(amount, isToken1)
	if liquidity.Sign() == 0 {
		return noStep(target), nil
	}

	exactOut := amount.Sign() < 0
	magnitude := new(big.Int).Abs(amount)
	priceImpact := magnitude
	if !exactOut {
		priceImpact = new(big.Int).Sub(magnitude, ComputeFee(magnitude, fee))
	}
	signedImpact := new(big.Int).Set(priceImpact)
	if exactOut {
		signedImpact.Neg(signedImpact)
	}

	next, err := nextSqrtRatio(sr, liquidity, signedImpact, isToken1)
	beyond := false
	switch {
	case errors.Is(err, tickmath.ErrInsufficientLiquidity), errors.Is(err, fixedpoint.ErrOverflow):
		beyond = true
	case err != nil:
		return stepResult{}, err
	case increasing:
		beyond = next.Gt(target)
	default:
		beyond = next.Lt(target)
	}

	if beyond {
		return stepToTarget(sr, liquidity, target, magnitude, exactOut, isToken1, fee)
	}

	if next == sr {
		if exactOut {
			return noStep(sr), errExactOutputStalled
		}
		return stepResult{
			consumed:   new(big.Int).Set(amount),
			calculated: new(big.Int),
			fee:        new(big.Int).Set(amount),
			next:       sr,
		}, nil
	}

	calculated, err := otherAmount(sr, next, liquidity, isToken1, exactOut)
	if err != nil {
		return stepResult{}, err
	}
	if exactOut {
		in, err := AmountBeforeFee(calculated, fee)
		if err != nil {
			return stepResult{}, err
		}
		return stepResult{
			consumed:   new(big.Int).Set(amount),
			calculated: in,
			fee:        new(big.Int).Sub(in, calculated),
			next:       next,
		}, nil
	}
	return stepResult{
		consumed:   new(big.Int).Set(amount),
		calculated: calculated,
		fee:        new(big.Int).Sub(magnitude, priceImpact),
		next:       next,
	}, nil
}

// stepToTarget handles a step that reaches target before the amount runs out.
func stepToTarget(sr fixedpoint.SqrtRatio, liquidity *big.Int, target fixedpoint.SqrtRatio, magnitude *big.Int, exactOut, isToken1 bool, fee uint64) (stepResult, error) {
	// The specified side rounds in favour of the pool: inputs up, outputs down.
	var specified *big.Int
	var err error
	if isToken1 {
		specified, err = tickmath.Amount1Delta(sr, target, liquidity, !exactOut)
	} else {
		specified, err = tickmath.Amount0Delta(sr, target, liquidity, !exactOut)
	}
	if err != nil {
		return stepResult{}, err
	}
	calculated, err := otherAmount(sr, target, liquidity, isToken1, exactOut)
	if err != nil {
		return stepResult{}, err
	}

	if exactOut {
		if specified.Cmp(magnitude) > 0 {
			specified = new(big.Int).Set(magnitude)
		}
		in, err := AmountBeforeFee(calculated, fee)
		if err != nil {
			return stepResult{}, err
		}
		return stepResult{
			consumed:   new(big.Int).Neg(specified),
			calculated: in,
			fee:        new(big.Int).Sub(in, calculated),
			next:       target,
		}, nil
	}

	if specified.Cmp(magnitude) > 0 {
		return stepResult{}, fmt.Errorf("input to target %s above remaining %s: %w", specified, magnitude, ErrInvariantBroken)
	}
	withFee, err := AmountBeforeFee(specified, fee)
	if err != nil {
		return stepResult{}, err
	}
	if withFee.Cmp(magnitude) > 0 {
		withFee = new(big.Int).Set(magnitude)
	}
	return stepResult{
		consumed:   withFee,
		calculated: calculated,
		fee:        new(big.Int).Sub(withFee, specified),
		next:       target,
	}, nil
}

// otherAmount is the unspecified token's amount between two prices: the
// input (rounded up) for exact output, the output (rounded down) otherwise.
func otherAmount(a, b fixedpoint.SqrtRatio, liquidity *big.Int, isToken1, exactOut bool) (*big.Int, error) {
	if isToken1 {
		return tickmath.Amount0Delta(a, b, liquidity, exactOut)
	}
	return tickmath.Amount1Delta(a, b, liquidity, exactOut)
}
