package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/tickmath"
)

// MaxTickSpacing is the widest spacing that still leaves two usable ticks.
const MaxTickSpacing = uint32(tickmath.MaxTick)

// PoolKey identifies a pool. Fee is the fraction of the input charged, as a
// 0.64 fixed-point number. TickSpacing 0 selects the full-range curve, which
// has no ticks and accepts only positions spanning the whole price range.
type PoolKey struct {
	Token0      common.Address
	Token1      common.Address
	Fee         uint64
	TickSpacing uint32
	Extension   common.Address
}

// ID is a stable digest of the key, used for display and storage rows.
func (k PoolKey) ID() common.Hash {
	var buf [12]byte
	binary.BigEndian.PutUint64(buf[:8], k.Fee)
	binary.BigEndian.PutUint32(buf[8:], k.TickSpacing)
	return crypto.Keccak256Hash(k.Token0.Bytes(), k.Token1.Bytes(), buf[:], k.Extension.Bytes())
}

func (k PoolKey) FullRange() bool {
	return k.TickSpacing == 0
}

func (k PoolKey) HasExtension() bool {
	return k.Extension != (common.Address{})
}

func (k PoolKey) Validate() error {
	if bytes.Compare(k.Token0.Bytes(), k.Token1.Bytes()) >= 0 {
		return fmt.Errorf("%s >= %s: %w", k.Token0.Hex(), k.Token1.Hex(), ErrTokensNotSorted)
	}
	if k.TickSpacing > MaxTickSpacing {
		return fmt.Errorf("spacing %d: %w", k.TickSpacing, ErrInvalidTickSpacing)
	}
	return nil
}

// TickBounds returns the lowest and highest usable ticks for the key.
func (k PoolKey) TickBounds() (int32, int32) {
	if k.FullRange() {
		return tickmath.MinTick, tickmath.MaxTick
	}
	s := int32(k.TickSpacing)
	return tickmath.MinTick / s * s, tickmath.MaxTick / s * s
}

func (k PoolKey) String() string {
	return k.ID().Hex()
}

// PoolState is the live state of one pool.
type PoolState struct {
	SqrtRatio fixedpoint.SqrtRatio
	Tick      int32
	// Liquidity is the active liquidity at the current price.
	Liquidity *big.Int
	// FeesPerLiquidity accumulates fee<<128/liquidity per token.
	FeesPerLiquidity [2]*uint256.Int
	// UnattributedFees are fees charged to traders that the accumulator
	// could not represent after integer division.
	UnattributedFees [2]*big.Int
	// Reserves is what the pool owes out in total: deposits and swap inputs
	// less withdrawals, swap outputs and collected fees.
	Reserves   [2]*big.Int
	HookFaults uint64
}

func newPoolState(sr fixedpoint.SqrtRatio, tick int32) PoolState {
	return PoolState{
		SqrtRatio:        sr,
		Tick:             tick,
		Liquidity:        new(big.Int),
		FeesPerLiquidity: [2]*uint256.Int{new(uint256.Int), new(uint256.Int)},
		UnattributedFees: [2]*big.Int{new(big.Int), new(big.Int)},
		Reserves:         [2]*big.Int{new(big.Int), new(big.Int)},
	}
}

// Clone returns a deep copy.
func (p PoolState) Clone() PoolState {
	out := p
	out.Liquidity = fixedpoint.Clone(p.Liquidity)
	for i := 0; i < 2; i++ {
		out.FeesPerLiquidity[i] = new(uint256.Int).Set(p.FeesPerLiquidity[i])
		out.UnattributedFees[i] = fixedpoint.Clone(p.UnattributedFees[i])
		out.Reserves[i] = fixedpoint.Clone(p.Reserves[i])
	}
	return out
}

// Tick is the per-boundary record of the tick ledger.
type Tick struct {
	// LiquidityNet is added to active liquidity when the price crosses
	// the tick upward and subtracted when it crosses downward.
	LiquidityNet *big.Int
	// LiquidityGross counts every position referencing the tick.
	LiquidityGross *big.Int
	// FeesOutside is the fee accumulator on the side of the tick away from
	// the current price.
	FeesOutside [2]*uint256.Int
}

func (t Tick) clone() Tick {
	return Tick{
		LiquidityNet:   fixedpoint.Clone(t.LiquidityNet),
		LiquidityGross: fixedpoint.Clone(t.LiquidityGross),
		FeesOutside:    [2]*uint256.Int{new(uint256.Int).Set(t.FeesOutside[0]), new(uint256.Int).Set(t.FeesOutside[1])},
	}
}

// PositionKey identifies a position inside a pool.
type PositionKey struct {
	Owner common.Address
	Salt  common.Hash
	Lower int32
	Upper int32
}

// Position is a liquidity position and the fees it has earned so far.
type Position struct {
	Liquidity *big.Int
	// FeesInsideLast is the signed fees-inside value at the last accrual.
	FeesInsideLast [2]*big.Int
	FeesOwed       [2]*big.Int
	Metadata       []byte
}

func (p Position) clone() Position {
	out := Position{Liquidity: fixedpoint.Clone(p.Liquidity), Metadata: append([]byte(nil), p.Metadata...)}
	for i := 0; i < 2; i++ {
		out.FeesInsideLast[i] = fixedpoint.Clone(p.FeesInsideLast[i])
		out.FeesOwed[i] = fixedpoint.Clone(p.FeesOwed[i])
	}
	return out
}

// SwapParams describes a swap. A positive Amount is exact input, a negative
// one exact output, denominated in token1 when IsToken1 is set.
type SwapParams struct {
	Amount   *big.Int
	IsToken1 bool
	// SqrtRatioLimit bounds the price; the zero value means the edge of the
	// range in the direction of travel.
	SqrtRatioLimit fixedpoint.SqrtRatio
	// Threshold is optional: the minimum output for exact input swaps, the
	// maximum input for exact output swaps.
	Threshold *big.Int
}

// SwapResult carries the pool-side deltas: positive amounts are paid into the
// pool, negative amounts are paid out.
type SwapResult struct {
	Delta0 *big.Int
	Delta1 *big.Int
	// Fee is charged in the input token.
	Fee   *big.Int
	State PoolState
}

// PositionParams describes a liquidity change owned by the caller.
type PositionParams struct {
	Salt           common.Hash
	Lower          int32
	Upper          int32
	LiquidityDelta *big.Int
	Metadata       []byte
}

// BalanceDelta is a pair of pool-side token deltas.
type BalanceDelta struct {
	Amount0 *big.Int
	Amount1 *big.Int
}
