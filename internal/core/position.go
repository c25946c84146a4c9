package core

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/tickmath"
)

// PositionID is the ledger key of a position.
type PositionID struct {
	Pool     PoolKey
	Position PositionKey
}

func checkRange(key PoolKey, lower, upper int32) error {
	if key.FullRange() {
		if lower != tickmath.MinTick || upper != tickmath.MaxTick {
			return fmt.Errorf("full range pool needs [%d, %d], got [%d, %d]: %w",
				tickmath.MinTick, tickmath.MaxTick, lower, upper, ErrInvalidRange)
		}
		return nil
	}
	if lower >= upper {
		return fmt.Errorf("lower %d >= upper %d: %w", lower, upper, ErrInvalidRange)
	}
	spacing := int32(key.TickSpacing)
	if lower%spacing != 0 || upper%spacing != 0 {
		return fmt.Errorf("[%d, %d] off spacing %d: %w", lower, upper, spacing, ErrInvalidRange)
	}
	minTick, maxTick := key.TickBounds()
	if lower < minTick || upper > maxTick {
		return fmt.Errorf("[%d, %d] outside [%d, %d]: %w", lower, upper, minTick, maxTick, ErrInvalidRange)
	}
	return nil
}

func rangeRatios(key PoolKey, lower, upper int32) (fixedpoint.SqrtRatio, fixedpoint.SqrtRatio, error) {
	if key.FullRange() {
		return tickmath.MinSqrtRatio, tickmath.MaxSqrtRatio, nil
	}
	lo, err := tickmath.SqrtRatioAtTick(lower)
	if err != nil {
		return fixedpoint.SqrtRatio{}, fixedpoint.SqrtRatio{}, err
	}
	hi, err := tickmath.SqrtRatioAtTick(upper)
	if err != nil {
		return fixedpoint.SqrtRatio{}, fixedpoint.SqrtRatio{}, err
	}
	return lo, hi, nil
}

// feesInside returns the per-liquidity fees earned inside [lower, upper).
// The values are signed; only differences between two reads mean anything.
func (c *Core) feesInside(key PoolKey, state PoolState, lower, upper int32) ([2]*big.Int, error) {
	var out [2]*big.Int
	if key.FullRange() {
		for i := 0; i < 2; i++ {
			out[i] = state.FeesPerLiquidity[i].ToBig()
		}
		return out, nil
	}

	lt, okLower := c.ticks.Get(TickKey{Pool: key, Index: lower})
	ut, okUpper := c.ticks.Get(TickKey{Pool: key, Index: upper})
	if !okLower || !okUpper {
		return out, fmt.Errorf("fees inside [%d, %d] without tick records: %w", lower, upper, ErrInvariantBroken)
	}

	for i := 0; i < 2; i++ {
		global := state.FeesPerLiquidity[i].ToBig()
		below := lt.FeesOutside[i].ToBig()
		if state.Tick < lower {
			below.Sub(global, below)
		}
		above := ut.FeesOutside[i].ToBig()
		if state.Tick >= upper {
			above.Sub(global, above)
		}
		out[i] = new(big.Int).Sub(global, below)
		out[i].Sub(out[i], above)
	}
	return out, nil
}

// accrue credits fees earned since the last snapshot at the position's
// current liquidity and moves the snapshot to inside.
func (p *Position) accrue(inside [2]*big.Int) error {
	for i := 0; i < 2; i++ {
		if p.Liquidity.Sign() > 0 {
			growth := new(big.Int).Sub(inside[i], p.FeesInsideLast[i])
			if growth.Sign() < 0 {
				return fmt.Errorf("fees inside went backwards by %s: %w", growth, ErrInvariantBroken)
			}
			earned := new(big.Int).Rsh(growth.Mul(growth, p.Liquidity), 128)
			p.FeesOwed[i] = new(big.Int).Add(p.FeesOwed[i], earned)
		}
		p.FeesInsideLast[i] = new(big.Int).Set(inside[i])
	}
	return nil
}

func newPosition() Position {
	return Position{
		Liquidity:      new(big.Int),
		FeesInsideLast: [2]*big.Int{new(big.Int), new(big.Int)},
		FeesOwed:       [2]*big.Int{new(big.Int), new(big.Int)},
	}
}

// ModifyPosition adds (positive delta) or removes liquidity from the caller's
// position. The returned deltas are pool-side: deposits positive,
// withdrawals negative.
func (c *Core) ModifyPosition(caller common.Address, key PoolKey, params PositionParams) (BalanceDelta, error) {
	var out BalanceDelta
	err := c.Atomic(func() error {
		delta := fixedpoint.Clone(params.LiquidityDelta)
		if err := fixedpoint.CheckInt128(delta); err != nil {
			return fmt.Errorf("liquidity delta: %w", err)
		}
		params.LiquidityDelta = delta
		if err := checkRange(key, params.Lower, params.Upper); err != nil {
			return err
		}
		if _, err := c.Pool(key); err != nil {
			return err
		}

		if err := c.callHook(caller, key, "before_modify_position", func(ext Extension) (Verdict, error) {
			return ext.BeforeModifyPosition(caller, key, params)
		}); err != nil {
			return err
		}

		d, err := c.modifyPosition(caller, key, params)
		if err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return BalanceDelta{}, err
	}
	return out, nil
}

func (c *Core) modifyPosition(caller common.Address, key PoolKey, params PositionParams) (BalanceDelta, error) {
	release, err := c.Lock(key)
	if err != nil {
		return BalanceDelta{}, err
	}
	defer release()

	state, err := c.Pool(key)
	if err != nil {
		return BalanceDelta{}, err
	}

	pk := PositionKey{Owner: caller, Salt: params.Salt, Lower: params.Lower, Upper: params.Upper}
	id := PositionID{Pool: key, Position: pk}
	delta := params.LiquidityDelta

	stored, exists := c.positions.Get(id)
	if !exists && delta.Sign() == 0 {
		return BalanceDelta{}, fmt.Errorf("position %+v: %w", pk, ErrPositionNotFound)
	}
	pos := newPosition()
	if exists {
		pos = stored.clone()
	}

	liquidity := new(big.Int).Add(pos.Liquidity, delta)
	if liquidity.Sign() < 0 {
		return BalanceDelta{}, fmt.Errorf("position holds %s, delta %s: %w", pos.Liquidity, delta, ErrInsufficientLiquidity)
	}

	if !key.FullRange() && delta.Sign() != 0 {
		if _, err := c.updateTick(key, state, params.Lower, delta, false); err != nil {
			return BalanceDelta{}, err
		}
		if _, err := c.updateTick(key, state, params.Upper, delta, true); err != nil {
			return BalanceDelta{}, err
		}
	}

	inside, err := c.feesInside(key, state, params.Lower, params.Upper)
	if err != nil {
		return BalanceDelta{}, err
	}
	if err := pos.accrue(inside); err != nil {
		return BalanceDelta{}, err
	}
	pos.Liquidity = liquidity
	if params.Metadata != nil {
		pos.Metadata = append([]byte(nil), params.Metadata...)
	}

	if key.FullRange() || (params.Lower <= state.Tick && state.Tick < params.Upper) {
		active := new(big.Int).Add(state.Liquidity, delta)
		if active.Sign() < 0 {
			return BalanceDelta{}, fmt.Errorf("active liquidity below zero: %w", ErrInvariantBroken)
		}
		if err := fixedpoint.CheckUint128(active); err != nil {
			return BalanceDelta{}, fmt.Errorf("active liquidity: %w", err)
		}
		state.Liquidity = active
	}

	lower, upper, err := rangeRatios(key, params.Lower, params.Upper)
	if err != nil {
		return BalanceDelta{}, err
	}
	amount0, amount1, err := tickmath.LiquidityDeltaToAmounts(state.SqrtRatio, lower, upper, delta)
	if err != nil {
		return BalanceDelta{}, err
	}
	state.Reserves[0] = new(big.Int).Add(state.Reserves[0], amount0)
	state.Reserves[1] = new(big.Int).Add(state.Reserves[1], amount1)
	if state.Reserves[0].Sign() < 0 || state.Reserves[1].Sign() < 0 {
		return BalanceDelta{}, fmt.Errorf("reserves %s/%s: %w", state.Reserves[0], state.Reserves[1], ErrInsufficientFunds)
	}

	if delta.Sign() < 0 && !key.FullRange() {
		for _, tick := range []int32{params.Lower, params.Upper} {
			if t, ok := c.ticks.Get(TickKey{Pool: key, Index: tick}); ok && t.LiquidityGross.Sign() == 0 {
				c.clearTick(key, tick)
			}
		}
	}

	if pos.Liquidity.Sign() == 0 && pos.FeesOwed[0].Sign() == 0 && pos.FeesOwed[1].Sign() == 0 {
		c.positions.Delete(id)
	} else {
		c.positions.Set(id, pos)
	}
	c.setPool(key, state)

	c.Emit(PositionUpdated{
		Pool:           key,
		Position:       pk,
		LiquidityDelta: fixedpoint.Clone(delta),
		Liquidity:      fixedpoint.Clone(pos.Liquidity),
		Delta0:         fixedpoint.Clone(amount0),
		Delta1:         fixedpoint.Clone(amount1),
	})
	return BalanceDelta{Amount0: amount0, Amount1: amount1}, nil
}

// CollectFees pays out everything the position has earned. The returned
// deltas are pool-side and therefore zero or negative.
func (c *Core) CollectFees(caller common.Address, key PoolKey, salt common.Hash, lower, upper int32) (BalanceDelta, error) {
	pk := PositionKey{Owner: caller, Salt: salt, Lower: lower, Upper: upper}
	id := PositionID{Pool: key, Position: pk}

	var out BalanceDelta
	err := c.Atomic(func() error {
		if _, err := c.Pool(key); err != nil {
			return err
		}
		if err := checkRange(key, lower, upper); err != nil {
			return err
		}
		if _, ok := c.positions.Get(id); !ok {
			// Never opened, or withdrawn and already paid out.
			out = BalanceDelta{Amount0: new(big.Int), Amount1: new(big.Int)}
			return nil
		}

		if err := c.callHook(caller, key, "before_collect_fees", func(ext Extension) (Verdict, error) {
			return ext.BeforeCollectFees(caller, key, pk)
		}); err != nil {
			return err
		}

		d, err := c.collectFees(key, id)
		if err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return BalanceDelta{}, err
	}
	return out, nil
}

func (c *Core) collectFees(key PoolKey, id PositionID) (BalanceDelta, error) {
	release, err := c.Lock(key)
	if err != nil {
		return BalanceDelta{}, err
	}
	defer release()

	state, err := c.Pool(key)
	if err != nil {
		return BalanceDelta{}, err
	}
	stored, ok := c.positions.Get(id)
	if !ok {
		return BalanceDelta{}, fmt.Errorf("position %+v: %w", id.Position, ErrPositionNotFound)
	}
	pos := stored.clone()

	if pos.Liquidity.Sign() > 0 {
		inside, err := c.feesInside(key, state, id.Position.Lower, id.Position.Upper)
		if err != nil {
			return BalanceDelta{}, err
		}
		if err := pos.accrue(inside); err != nil {
			return BalanceDelta{}, err
		}
	}

	owed := pos.FeesOwed
	pos.FeesOwed = [2]*big.Int{new(big.Int), new(big.Int)}
	for i := 0; i < 2; i++ {
		state.Reserves[i] = new(big.Int).Sub(state.Reserves[i], owed[i])
		if state.Reserves[i].Sign() < 0 {
			return BalanceDelta{}, fmt.Errorf("reserve%d %s: %w", i, state.Reserves[i], ErrInsufficientFunds)
		}
	}

	if pos.Liquidity.Sign() == 0 {
		c.positions.Delete(id)
	} else {
		c.positions.Set(id, pos)
	}
	c.setPool(key, state)

	c.Emit(FeesCollected{
		Pool:     key,
		Position: id.Position,
		Amount0:  fixedpoint.Clone(owed[0]),
		Amount1:  fixedpoint.Clone(owed[1]),
	})
	return BalanceDelta{
		Amount0: new(big.Int).Neg(owed[0]),
		Amount1: new(big.Int).Neg(owed[1]),
	}, nil
}
