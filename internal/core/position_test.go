package core

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/tickmath"
)

func TestModifyPositionRoundTrip(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)

	deposit := addLiquidity(t, c, key, alice, -600, 600, e18)
	require.Equal(t, 1, deposit.Amount0.Sign())
	require.Equal(t, 1, deposit.Amount1.Sign())

	state, err := c.Pool(key)
	require.NoError(t, err)
	requireBigEqual(t, e18, state.Liquidity)
	requireBigEqual(t, deposit.Amount0, state.Reserves[0])
	requireBigEqual(t, deposit.Amount1, state.Reserves[1])
	require.Len(t, c.Ticks(key), 2)

	withdraw, err := c.ModifyPosition(alice, key, PositionParams{Lower: -600, Upper: 600, LiquidityDelta: new(big.Int).Neg(e18)})
	require.NoError(t, err)
	require.Equal(t, -1, withdraw.Amount0.Sign())
	require.Equal(t, -1, withdraw.Amount1.Sign())

	// Deposits round up and withdrawals round down, so at most one unit stays.
	for i, pair := range [][2]*big.Int{{deposit.Amount0, withdraw.Amount0}, {deposit.Amount1, withdraw.Amount1}} {
		dust := new(big.Int).Add(pair[0], pair[1])
		require.True(t, dust.Sign() >= 0 && dust.Cmp(big.NewInt(1)) <= 0, "token%d dust %s", i, dust)
	}

	state, err = c.Pool(key)
	require.NoError(t, err)
	require.Zero(t, state.Liquidity.Sign())
	require.Empty(t, c.Ticks(key))
	_, ok := c.Position(key, PositionKey{Owner: alice, Lower: -600, Upper: 600})
	require.False(t, ok)
}

func TestModifyPositionOutOfRangeUsesOneToken(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)

	above := addLiquidity(t, c, key, alice, 600, 1200, e18)
	require.Equal(t, 1, above.Amount0.Sign())
	require.Zero(t, above.Amount1.Sign())

	below := addLiquidity(t, c, key, alice, -1200, -600, e18)
	require.Zero(t, below.Amount0.Sign())
	require.Equal(t, 1, below.Amount1.Sign())

	state, err := c.Pool(key)
	require.NoError(t, err)
	require.Zero(t, state.Liquidity.Sign(), "neither range covers the current tick")
}

func TestModifyPositionValidation(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)
	full := testKey(0)
	initPool(t, c, full, 0)

	cases := []struct {
		name  string
		key   PoolKey
		lower int32
		upper int32
		delta *big.Int
		want  error
	}{
		{name: "inverted", key: key, lower: 60, upper: -60, delta: e18, want: ErrInvalidRange},
		{name: "empty", key: key, lower: 60, upper: 60, delta: e18, want: ErrInvalidRange},
		{name: "off spacing", key: key, lower: -50, upper: 60, delta: e18, want: ErrInvalidRange},
		{name: "beyond bounds", key: key, lower: -887280, upper: 60, delta: e18, want: ErrInvalidRange},
		{name: "partial full range", key: full, lower: -600, upper: 600, delta: e18, want: ErrInvalidRange},
		{name: "remove missing", key: key, lower: -60, upper: 60, delta: big.NewInt(-1), want: ErrInsufficientLiquidity},
		{name: "poke missing", key: key, lower: -60, upper: 60, delta: new(big.Int), want: ErrPositionNotFound},
		{name: "delta overflow", key: key, lower: -60, upper: 60, delta: new(big.Int).Lsh(big.NewInt(1), 127), want: ErrOverflow},
		{name: "no pool", key: testKey(10), lower: -60, upper: 60, delta: e18, want: ErrPoolNotInitialized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.ModifyPosition(alice, tc.key, PositionParams{Lower: tc.lower, Upper: tc.upper, LiquidityDelta: tc.delta})
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestMaxLiquidityPerTick(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(uint32(tickmath.MaxTick / 2))
	initPool(t, c, key, 0)

	limit := maxLiquidityPerTick(key)
	lower, upper := key.TickBounds()
	_, err := c.ModifyPosition(alice, key, PositionParams{Lower: lower, Upper: upper, LiquidityDelta: new(big.Int).Add(limit, big.NewInt(1))})
	require.ErrorIs(t, err, ErrMaxLiquidityPerTick)
}

func TestPositionsAreKeyedBySalt(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)

	salt := common.HexToHash("0x01")
	_, err := c.ModifyPosition(alice, key, PositionParams{Salt: salt, Lower: -60, Upper: 60, LiquidityDelta: e18, Metadata: []byte("vault")})
	require.NoError(t, err)
	addLiquidity(t, c, key, alice, -60, 60, e18)

	salted, ok := c.Position(key, PositionKey{Owner: alice, Salt: salt, Lower: -60, Upper: 60})
	require.True(t, ok)
	require.Equal(t, []byte("vault"), salted.Metadata)
	plain, ok := c.Position(key, PositionKey{Owner: alice, Lower: -60, Upper: 60})
	require.True(t, ok)
	requireBigEqual(t, plain.Liquidity, salted.Liquidity)

	_, err = c.ModifyPosition(bob, key, PositionParams{Salt: salt, Lower: -60, Upper: 60, LiquidityDelta: big.NewInt(-1)})
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestFeesSplitByLiquidityShare(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)
	addLiquidity(t, c, key, alice, -600, 600, e18)
	addLiquidity(t, c, key, bob, -600, 600, new(big.Int).Mul(e18, big.NewInt(3)))

	_, err := c.Swap(bob, key, SwapParams{Amount: big.NewInt(1_000_000_000_000)})
	require.NoError(t, err)
	_, err = c.Swap(bob, key, SwapParams{Amount: big.NewInt(1_000_000_000_000), IsToken1: true})
	require.NoError(t, err)

	aliceFees, err := c.CollectFees(alice, key, common.Hash{}, -600, 600)
	require.NoError(t, err)
	bobFees, err := c.CollectFees(bob, key, common.Hash{}, -600, 600)
	require.NoError(t, err)

	for _, pair := range [][2]*big.Int{{aliceFees.Amount0, bobFees.Amount0}, {aliceFees.Amount1, bobFees.Amount1}} {
		a, b := new(big.Int).Neg(pair[0]), new(big.Int).Neg(pair[1])
		require.Equal(t, 1, a.Sign())
		gap := new(big.Int).Sub(b, new(big.Int).Mul(a, big.NewInt(3)))
		require.True(t, gap.CmpAbs(big.NewInt(3)) <= 0, "bob should earn three times alice: %s vs %s", b, a)
	}

	none, err := c.CollectFees(alice, key, common.Hash{}, -60, 60)
	require.NoError(t, err)
	require.Zero(t, none.Amount0.Sign())
	require.Zero(t, none.Amount1.Sign())
	_, err = c.CollectFees(alice, key, common.Hash{}, -50, 60)
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = c.CollectFees(alice, testKey(10), common.Hash{}, -60, 60)
	require.ErrorIs(t, err, ErrPoolNotInitialized)
}

func TestWithdrawnPositionKeepsOwedFees(t *testing.T) {
	c := newTestCore(Config{})
	key := testKey(60)
	initPool(t, c, key, 0)
	addLiquidity(t, c, key, alice, -600, 600, e18)

	_, err := c.Swap(bob, key, SwapParams{Amount: big.NewInt(1_000_000_000_000)})
	require.NoError(t, err)

	_, err = c.ModifyPosition(alice, key, PositionParams{Lower: -600, Upper: 600, LiquidityDelta: new(big.Int).Neg(e18)})
	require.NoError(t, err)

	pos, ok := c.Position(key, PositionKey{Owner: alice, Lower: -600, Upper: 600})
	require.True(t, ok, "position with unpaid fees survives")
	require.Zero(t, pos.Liquidity.Sign())
	require.Equal(t, 1, pos.FeesOwed[0].Sign())

	fees, err := c.CollectFees(alice, key, common.Hash{}, -600, 600)
	require.NoError(t, err)
	requireBigEqual(t, new(big.Int).Neg(pos.FeesOwed[0]), fees.Amount0)
	_, ok = c.Position(key, PositionKey{Owner: alice, Lower: -600, Upper: 600})
	require.False(t, ok)

	before, err := c.Pool(key)
	require.NoError(t, err)
	again, err := c.CollectFees(alice, key, common.Hash{}, -600, 600)
	require.NoError(t, err)
	require.Zero(t, again.Amount0.Sign())
	require.Zero(t, again.Amount1.Sign())
	after, err := c.Pool(key)
	require.NoError(t, err)
	requireBigEqual(t, before.Reserves[0], after.Reserves[0])
	requireBigEqual(t, before.Reserves[1], after.Reserves[1])
}
