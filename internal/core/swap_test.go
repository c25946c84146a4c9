package core

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/tickmath"
)

func TestComputeFeeRoundsUp(t *testing.T) {
	half := uint64(1) << 63
	requireBigEqual(t, big.NewInt(5), ComputeFee(big.NewInt(10), half))
	requireBigEqual(t, big.NewInt(6), ComputeFee(big.NewInt(11), half))
	requireBigEqual(t, big.NewInt(0), ComputeFee(big.NewInt(11), 0))

	before, err := AmountBeforeFee(big.NewInt(5), half)
	require.NoError(t, err)
	requireBigEqual(t, big.NewInt(10), before)

	_, err = AmountBeforeFee(fixedpoint.MaxUint128, half)
	require.ErrorIs(t, err, fixedpoint.ErrOverflow)
}

func TestSwapExactInputToken0(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)
	deposit := addLiquidity(t, c, key, alice, -600, 600, e18)

	amount := big.NewInt(1_000_000_000_000_000)
	res, err := c.Swap(bob, key, SwapParams{Amount: amount})
	require.NoError(t, err)

	requireBigEqual(t, amount, res.Delta0)
	require.Equal(t, -1, res.Delta1.Sign())
	requireBigEqual(t, ComputeFee(amount, key.Fee), res.Fee)
	require.True(t, res.State.SqrtRatio.Lt(ratioAt(t, 0)))
	require.Less(t, res.State.Tick, int32(0))
	require.Greater(t, res.State.Tick, int32(-600))

	requireBigEqual(t, new(big.Int).Add(deposit.Amount0, res.Delta0), res.State.Reserves[0])
	requireBigEqual(t, new(big.Int).Add(deposit.Amount1, res.Delta1), res.State.Reserves[1])
}

func TestSwapExactOutputToken1(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)
	addLiquidity(t, c, key, alice, -600, 600, e18)

	want := big.NewInt(-1_000_000_000_000_000)
	res, err := c.Swap(bob, key, SwapParams{Amount: want, IsToken1: true})
	require.NoError(t, err)
	requireBigEqual(t, want, res.Delta1)
	require.Equal(t, 1, res.Delta0.Sign())
	// Paying token0 for token1 at about 1:1 costs a little more than the output.
	require.Equal(t, 1, res.Delta0.CmpAbs(want))
}

func TestSwapSlippageRollsBack(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)
	addLiquidity(t, c, key, alice, -600, 600, e18)
	before, err := c.Pool(key)
	require.NoError(t, err)

	_, err = c.Swap(bob, key, SwapParams{Amount: big.NewInt(1_000_000), Threshold: big.NewInt(1_000_000)})
	require.ErrorIs(t, err, ErrSlippageExceeded)

	_, err = c.Swap(bob, key, SwapParams{Amount: big.NewInt(-1_000_000), IsToken1: true, Threshold: big.NewInt(1_000_000)})
	require.ErrorIs(t, err, ErrSlippageExceeded)

	after, err := c.Pool(key)
	require.NoError(t, err)
	require.Equal(t, before.SqrtRatio, after.SqrtRatio)
	requireBigEqual(t, before.Reserves[0], after.Reserves[0])
	requireBigEqual(t, before.Reserves[1], after.Reserves[1])
}

func TestSwapRejectsBadInput(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)
	addLiquidity(t, c, key, alice, -600, 600, e18)

	_, err := c.Swap(bob, key, SwapParams{Amount: new(big.Int).Set(fixedpoint.MinInt128)})
	require.ErrorIs(t, err, ErrOverflow)

	// Selling token0 moves the price down, so a limit above it is invalid.
	_, err = c.Swap(bob, key, SwapParams{Amount: big.NewInt(1000), SqrtRatioLimit: ratioAt(t, 60)})
	require.ErrorIs(t, err, ErrInvalidPriceLimit)

	tooLow, err := fixedpoint.FromBig(big.NewInt(1<<20), false)
	require.NoError(t, err)
	_, err = c.Swap(bob, key, SwapParams{Amount: big.NewInt(1000), SqrtRatioLimit: tooLow})
	require.ErrorIs(t, err, ErrInvalidPriceLimit)

	_, err = c.Swap(bob, testKey(10), SwapParams{Amount: big.NewInt(1000)})
	require.ErrorIs(t, err, ErrPoolNotInitialized)

	res, err := c.Swap(bob, key, SwapParams{Amount: new(big.Int)})
	require.NoError(t, err)
	require.Zero(t, res.Delta0.Sign())
	require.Zero(t, res.Delta1.Sign())
}

func TestSwapStopsAtPriceLimit(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)
	addLiquidity(t, c, key, alice, -600, 600, e18)

	limit := ratioAt(t, -30)
	res, err := c.Swap(bob, key, SwapParams{Amount: e18, SqrtRatioLimit: limit})
	require.NoError(t, err)
	require.Equal(t, limit, res.State.SqrtRatio)
	require.Equal(t, int32(-30), res.State.Tick)
	require.Equal(t, -1, res.Delta0.Cmp(e18), "only part of the input is used")
}

func TestSwapCrossesTicksBothWays(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)
	addLiquidity(t, c, key, alice, -600, 600, e18)
	addLiquidity(t, c, key, bob, -60, 60, e18)

	state, err := c.Pool(key)
	require.NoError(t, err)
	requireBigEqual(t, new(big.Int).Mul(e18, big.NewInt(2)), state.Liquidity)

	up, err := c.Swap(bob, key, SwapParams{
		Amount:         new(big.Int).Div(e18, big.NewInt(10)),
		IsToken1:       true,
		SqrtRatioLimit: ratioAt(t, 120),
	})
	require.NoError(t, err)
	require.Equal(t, int32(120), up.State.Tick)
	requireBigEqual(t, e18, up.State.Liquidity)

	tick60, ok := c.Tick(key, 60)
	require.True(t, ok)
	require.True(t, tick60.FeesOutside[1].Sign() > 0, "token1 fees below 60 move outside once crossed")

	down, err := c.Swap(bob, key, SwapParams{
		Amount:         new(big.Int).Div(e18, big.NewInt(10)),
		SqrtRatioLimit: ratioAt(t, -120),
	})
	require.NoError(t, err)
	require.Equal(t, int32(-120), down.State.Tick)
	requireBigEqual(t, e18, down.State.Liquidity)

	back, err := c.Swap(bob, key, SwapParams{
		Amount:         new(big.Int).Div(e18, big.NewInt(10)),
		IsToken1:       true,
		SqrtRatioLimit: ratioAt(t, 0),
	})
	require.NoError(t, err)
	requireBigEqual(t, new(big.Int).Mul(e18, big.NewInt(2)), back.State.Liquidity)
}

func TestSwapThroughEmptyRangeJumps(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)
	addLiquidity(t, c, key, alice, 600, 1200, e18)

	res, err := c.Swap(bob, key, SwapParams{Amount: big.NewInt(1_000_000_000), IsToken1: true})
	require.NoError(t, err)
	require.GreaterOrEqual(t, res.State.Tick, int32(600))
	require.Less(t, res.State.Tick, int32(1200))
	requireBigEqual(t, e18, res.State.Liquidity)
	requireBigEqual(t, big.NewInt(1_000_000_000), res.Delta1)
}

func TestFeesMatchAccumulator(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(0)
	initPool(t, c, key, 0)
	liquidity := new(big.Int).Add(e18, big.NewInt(7))
	addLiquidity(t, c, key, alice, tickmath.MinTick, tickmath.MaxTick, liquidity)

	amount := big.NewInt(1_000_000_000_000)
	res, err := c.Swap(bob, key, SwapParams{Amount: amount})
	require.NoError(t, err)

	fee := ComputeFee(amount, key.Fee)
	requireBigEqual(t, fee, res.Fee)
	increment := new(big.Int).Quo(new(big.Int).Lsh(fee, 128), liquidity)
	require.Equal(t, uint256.MustFromBig(increment), res.State.FeesPerLiquidity[0])

	attributed := new(big.Int).Rsh(new(big.Int).Mul(increment, liquidity), 128)
	requireBigEqual(t, new(big.Int).Sub(fee, attributed), res.State.UnattributedFees[0])

	collected, err := c.CollectFees(alice, key, [32]byte{}, tickmath.MinTick, tickmath.MaxTick)
	require.NoError(t, err)
	requireBigEqual(t, new(big.Int).Neg(attributed), collected.Amount0)
	require.Zero(t, collected.Amount1.Sign())

	again, err := c.CollectFees(alice, key, [32]byte{}, tickmath.MinTick, tickmath.MaxTick)
	require.NoError(t, err)
	require.Zero(t, again.Amount0.Sign())
	require.Zero(t, again.Amount1.Sign())
}

func TestRandomSwapsStaySolvent(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)

	type lp struct {
		lower, upper int32
		liquidity    *big.Int
	}
	lps := []lp{
		{-6000, 6000, e18},
		{-600, 600, new(big.Int).Div(e18, big.NewInt(2))},
		{60, 1200, new(big.Int).Div(e18, big.NewInt(3))},
	}
	for _, p := range lps {
		addLiquidity(t, c, key, alice, p.lower, p.upper, p.liquidity)
	}

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		amount := new(big.Int).Rand(rng, big.NewInt(10_000_000_000_000_000))
		amount.Add(amount, big.NewInt(1_000_000))
		if rng.Intn(2) == 0 {
			amount.Neg(amount)
		}
		_, err := c.Swap(bob, key, SwapParams{Amount: amount, IsToken1: rng.Intn(2) == 0})
		require.NoError(t, err, "swap %d amount %s", i, amount)
	}

	for _, p := range lps {
		_, err := c.ModifyPosition(alice, key, PositionParams{Lower: p.lower, Upper: p.upper, LiquidityDelta: new(big.Int).Neg(p.liquidity)})
		require.NoError(t, err)
		if _, ok := c.Position(key, PositionKey{Owner: alice, Lower: p.lower, Upper: p.upper}); !ok {
			continue
		}
		_, err = c.CollectFees(alice, key, [32]byte{}, p.lower, p.upper)
		require.NoError(t, err)
	}

	state, err := c.Pool(key)
	require.NoError(t, err)
	require.Zero(t, state.Liquidity.Sign())
	require.GreaterOrEqual(t, state.Reserves[0].Sign(), 0)
	require.GreaterOrEqual(t, state.Reserves[1].Sign(), 0)
	require.Empty(t, c.Ticks(key))
}

func TestCrossingTwiceRestoresFeesOutside(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)
	addLiquidity(t, c, key, alice, -600, 600, e18)
	addLiquidity(t, c, key, bob, -60, 60, e18)

	// Accrue some fees first so the accumulators are non-trivial.
	_, err := c.Swap(bob, key, SwapParams{Amount: big.NewInt(1_000_000_000_000), IsToken1: true})
	require.NoError(t, err)
	before, ok := c.Tick(key, 60)
	require.True(t, ok)

	up, err := c.Swap(bob, key, SwapParams{Amount: e18, IsToken1: true, SqrtRatioLimit: ratioAt(t, 60)})
	require.NoError(t, err)
	require.Equal(t, int32(60), up.State.Tick)
	crossed, ok := c.Tick(key, 60)
	require.True(t, ok)
	require.NotEqual(t, before.FeesOutside[1], crossed.FeesOutside[1])

	_, err = c.Swap(bob, key, SwapParams{Amount: e18, SqrtRatioLimit: ratioAt(t, 59)})
	require.NoError(t, err)
	after, ok := c.Tick(key, 60)
	require.True(t, ok)
	require.Equal(t, before.FeesOutside, after.FeesOutside)
}

// pinPrice makes every step compute an unchanged price.
func pinPrice(t *testing.T) {
	t.Helper()
	saved := nextSqrtRatio
	nextSqrtRatio = func(sr fixedpoint.SqrtRatio, _, _ *big.Int, _ bool) (fixedpoint.SqrtRatio, error) {
		return sr, nil
	}
	t.Cleanup(func() { nextSqrtRatio = saved })
}

func TestComputeStepWithoutPriceMovement(t *testing.T) {
	pinPrice(t)
	sr := ratioAt(t, 0)
	below := ratioAt(t, -60)

	_, err := computeStep(sr, e18, below, big.NewInt(-5), true, fee30bps)
	require.ErrorIs(t, err, errExactOutputStalled)

	// Exact input that cannot move the price is taken whole as fee.
	step, err := computeStep(sr, e18, ratioAt(t, 60), big.NewInt(5), true, fee30bps)
	require.NoError(t, err)
	requireBigEqual(t, big.NewInt(5), step.consumed)
	requireBigEqual(t, big.NewInt(5), step.fee)
	require.Zero(t, step.calculated.Sign())
	require.Equal(t, sr, step.next)
}

func TestSwapExactOutputStall(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)
	addLiquidity(t, c, key, alice, -600, 600, e18)
	before, err := c.Pool(key)
	require.NoError(t, err)
	pinPrice(t)

	// A single unit of rounding residue ends the swap.
	res, err := c.Swap(bob, key, SwapParams{Amount: big.NewInt(-1), IsToken1: true})
	require.NoError(t, err)
	require.Zero(t, res.Delta0.Sign())
	require.Zero(t, res.Delta1.Sign())
	require.Equal(t, before.SqrtRatio, res.State.SqrtRatio)

	_, err = c.Swap(bob, key, SwapParams{Amount: big.NewInt(-1000), IsToken1: true})
	require.ErrorIs(t, err, ErrInvariantBroken)

	after, err := c.Pool(key)
	require.NoError(t, err)
	require.Equal(t, before.SqrtRatio, after.SqrtRatio)
	requireBigEqual(t, before.Reserves[0], after.Reserves[0])
	requireBigEqual(t, before.Reserves[1], after.Reserves[1])
}

func TestAccrueFeeRejectsAccumulatorWrap(t *testing.T) {
	state := newPoolState(ratioAt(t, 0), 0)
	state.Liquidity = big.NewInt(1)
	require.NoError(t, accrueFee(&state, 0, big.NewInt(1)))
	require.Equal(t, new(uint256.Int).Lsh(uint256.NewInt(1), 128), state.FeesPerLiquidity[0])

	state.FeesPerLiquidity[1] = new(uint256.Int).SetAllOne()
	err := accrueFee(&state, 1, big.NewInt(1))
	require.ErrorIs(t, err, ErrOverflow)
}
