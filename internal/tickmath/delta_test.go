package tickmath

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/fixedpoint"
)

func mustRatio(t *testing.T, tick int32) fixedpoint.SqrtRatio {
	t.Helper()
	sr, err := SqrtRatioAtTick(tick)
	require.NoError(t, err)
	return sr
}

func TestAmountDeltasRoundInOppositeDirections(t *testing.T) {
	a := mustRatio(t, -600)
	b := mustRatio(t, 600)
	liquidity := big.NewInt(1_000_000_000_000)

	up0, err := Amount0Delta(a, b, liquidity, true)
	require.NoError(t, err)
	down0, err := Amount0Delta(a, b, liquidity, false)
	require.NoError(t, err)
	require.True(t, up0.Cmp(down0) >= 0)
	require.True(t, new(big.Int).Sub(up0, down0).Cmp(big.NewInt(1)) <= 0)

	up1, err := Amount1Delta(b, a, liquidity, true)
	require.NoError(t, err)
	down1, err := Amount1Delta(a, b, liquidity, false)
	require.NoError(t, err)
	require.True(t, new(big.Int).Sub(up1, down1).Cmp(big.NewInt(1)) <= 0)

	// A symmetric range around price one needs roughly equal amounts.
	require.InDelta(t, float64(up0.Int64()), float64(up1.Int64()), float64(up0.Int64())/1000)
}

func TestAmountDeltaZeroCases(t *testing.T) {
	a := mustRatio(t, 10)
	amount, err := Amount0Delta(a, a, big.NewInt(100), true)
	require.NoError(t, err)
	require.Zero(t, amount.Sign())

	amount, err = Amount1Delta(a, mustRatio(t, 20), big.NewInt(0), true)
	require.NoError(t, err)
	require.Zero(t, amount.Sign())
}

func TestAmount1DeltaOverflow(t *testing.T) {
	_, err := Amount1Delta(MinSqrtRatio, MaxSqrtRatio, fixedpoint.MaxUint128, false)
	require.True(t, errors.Is(err, fixedpoint.ErrOverflow))
}

func TestNextSqrtRatioFromAmount1(t *testing.T) {
	one := mustRatio(t, 0)
	liquidity := new(big.Int).Lsh(big.NewInt(1), 64)

	// Adding L token1 moves sqrt price from 1 to 2.
	next, err := NextSqrtRatioFromAmount1(one, liquidity, liquidity)
	require.NoError(t, err)
	require.Equal(t, 0, next.ToBig().Cmp(new(big.Int).Lsh(big.NewInt(1), 129)))

	down, err := NextSqrtRatioFromAmount1(one, liquidity, big.NewInt(-1000))
	require.NoError(t, err)
	require.True(t, down.Lt(one))

	_, err = NextSqrtRatioFromAmount1(one, liquidity, new(big.Int).Neg(liquidity))
	require.True(t, errors.Is(err, ErrInsufficientLiquidity))
}

func TestNextSqrtRatioFromAmount0(t *testing.T) {
	one := mustRatio(t, 0)
	liquidity := new(big.Int).Lsh(big.NewInt(1), 64)

	// Adding L token0 halves the sqrt price.
	next, err := NextSqrtRatioFromAmount0(one, liquidity, liquidity)
	require.NoError(t, err)
	require.Equal(t, 0, next.ToBig().Cmp(new(big.Int).Lsh(big.NewInt(1), 127)))

	up, err := NextSqrtRatioFromAmount0(one, liquidity, big.NewInt(-1000))
	require.NoError(t, err)
	require.True(t, up.Gt(one))

	_, err = NextSqrtRatioFromAmount0(one, liquidity, new(big.Int).Neg(liquidity))
	require.True(t, errors.Is(err, ErrInsufficientLiquidity))

	_, err = NextSqrtRatioFromAmount0(one, big.NewInt(0), big.NewInt(5))
	require.True(t, errors.Is(err, ErrInsufficientLiquidity))
}

func TestNextSqrtRatioRoundsAgainstTrader(t *testing.T) {
	sr := mustRatio(t, 12345)
	liquidity := big.NewInt(987654321)
	amount := big.NewInt(31337)

	next0, err := NextSqrtRatioFromAmount0(sr, liquidity, amount)
	require.NoError(t, err)
	// Moving back out by the computed output never exceeds what went in.
	in, err := Amount0Delta(next0, sr, liquidity, true)
	require.NoError(t, err)
	require.True(t, in.Cmp(amount) <= 0)

	next1, err := NextSqrtRatioFromAmount1(sr, liquidity, amount)
	require.NoError(t, err)
	in, err = Amount1Delta(sr, next1, liquidity, true)
	require.NoError(t, err)
	require.True(t, in.Cmp(amount) <= 0)
}

func TestLiquidityDeltaToAmounts(t *testing.T) {
	lower := mustRatio(t, -100)
	upper := mustRatio(t, 100)
	delta := big.NewInt(1_000_000_000)

	a0, a1, err := LiquidityDeltaToAmounts(mustRatio(t, -200), lower, upper, delta)
	require.NoError(t, err)
	require.Positive(t, a0.Sign())
	require.Zero(t, a1.Sign())

	a0, a1, err = LiquidityDeltaToAmounts(mustRatio(t, 200), lower, upper, delta)
	require.NoError(t, err)
	require.Zero(t, a0.Sign())
	require.Positive(t, a1.Sign())

	in0, in1, err := LiquidityDeltaToAmounts(mustRatio(t, 0), lower, upper, delta)
	require.NoError(t, err)
	out0, out1, err := LiquidityDeltaToAmounts(mustRatio(t, 0), lower, upper, new(big.Int).Neg(delta))
	require.NoError(t, err)
	require.True(t, new(big.Int).Add(in0, out0).Sign() >= 0)
	require.True(t, new(big.Int).Add(in1, out1).Sign() >= 0)
	require.Negative(t, out0.Sign())
	require.Negative(t, out1.Sign())
}
