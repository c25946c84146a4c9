package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/tickmath"
)

var one = big.NewInt(1)

// Swap trades against the pool's liquidity until the amount is used up or
// the price reaches the limit.
func (c *Core) Swap(caller common.Address, key PoolKey, params SwapParams) (SwapResult, error) {
	var result SwapResult
	err := c.Atomic(func() error {
		amount := fixedpoint.Clone(params.Amount)
		if err := fixedpoint.CheckInt128(amount); err != nil {
			return fmt.Errorf("swap amount: %w", err)
		}
		if amount.Cmp(fixedpoint.MinInt128) == 0 {
			return fmt.Errorf("swap amount %s: %w", amount, ErrOverflow)
		}
		params.Amount = amount
		if _, err := c.Pool(key); err != nil {
			return err
		}

		if err := c.callHook(caller, key, "before_swap", func(ext Extension) (Verdict, error) {
			return ext.BeforeSwap(caller, key, params)
		}); err != nil {
			return err
		}

		r, err := c.swap(key, params)
		if err != nil {
			return err
		}
		c.Emit(Swapped{
			Pool:      key,
			Caller:    caller,
			Delta0:    r.Delta0,
			Delta1:    r.Delta1,
			Fee:       r.Fee,
			FeeToken1: isPriceIncreasing(amount, params.IsToken1),
			SqrtRatio: r.State.SqrtRatio,
			Tick:      r.State.Tick,
			Liquidity: fixedpoint.Clone(r.State.Liquidity),
			Reserve0:  fixedpoint.Clone(r.State.Reserves[0]),
			Reserve1:  fixedpoint.Clone(r.State.Reserves[1]),
		})

		if err := c.callHook(caller, key, "after_swap", func(ext Extension) (Verdict, error) {
			return ext.AfterSwap(caller, key, params, r)
		}); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return SwapResult{}, err
	}
	return result, nil
}

func (c *Core) swap(key PoolKey, params SwapParams) (SwapResult, error) {
	release, err := c.Lock(key)
	if err != nil {
		return SwapResult{}, err
	}
	defer release()

	state, err := c.Pool(key)
	if err != nil {
		return SwapResult{}, err
	}

	amount := params.Amount
	if amount.Sign() == 0 {
		return SwapResult{Delta0: new(big.Int), Delta1: new(big.Int), Fee: new(big.Int), State: state}, nil
	}

	increasing := isPriceIncreasing(amount, params.IsToken1)
	limit := params.SqrtRatioLimit
	if limit.IsZero() {
		limit = tickmath.MinSqrtRatio
		if increasing {
			limit = tickmath.MaxSqrtRatio
		}
	}
	if err := tickmath.CheckSqrtRatio(limit); err != nil {
		return SwapResult{}, fmt.Errorf("%w: %w", ErrInvalidPriceLimit, err)
	}
	if (increasing && limit.Lt(state.SqrtRatio)) || (!increasing && limit.Gt(state.SqrtRatio)) {
		return SwapResult{}, fmt.Errorf("limit %s against price %s: %w", limit, state.SqrtRatio, ErrInvalidPriceLimit)
	}

	// Fees are charged in the input token, which is token1 exactly when the
	// price rises.
	feeToken := 0
	if increasing {
		feeToken = 1
	}

	remaining := new(big.Int).Set(amount)
	calculated := new(big.Int)
	feeTotal := new(big.Int)

	for remaining.Sign() != 0 && state.SqrtRatio != limit {
		var nextTick int32
		var initialized bool
		var nextRatio fixedpoint.SqrtRatio
		if key.FullRange() {
			nextRatio = tickmath.MinSqrtRatio
			if increasing {
				nextRatio = tickmath.MaxSqrtRatio
			}
		} else {
			nextTick, initialized = c.nextInitializedTickWithinWord(key, state.Tick, !increasing)
			if nextTick < tickmath.MinTick {
				nextTick, initialized = tickmath.MinTick, false
			} else if nextTick > tickmath.MaxTick {
				nextTick, initialized = tickmath.MaxTick, false
			}
			if nextRatio, err = tickmath.SqrtRatioAtTick(nextTick); err != nil {
				return SwapResult{}, err
			}
		}

		target := nextRatio
		if (increasing && nextRatio.Gt(limit)) || (!increasing && nextRatio.Lt(limit)) {
			target = limit
		}

		step, err := computeStep(state.SqrtRatio, state.Liquidity, target, remaining, params.IsToken1, key.Fee)
		if errors.Is(err, errExactOutputStalled) {
			if remaining.CmpAbs(one) <= 0 {
				break
			}
			return SwapResult{}, fmt.Errorf("exact output stalled with %s left: %w", remaining, ErrInvariantBroken)
		}
		if err != nil {
			return SwapResult{}, err
		}

		remaining.Sub(remaining, step.consumed)
		calculated.Add(calculated, step.calculated)
		if step.fee.Sign() > 0 {
			feeTotal.Add(feeTotal, step.fee)
			if err := accrueFee(&state, feeToken, step.fee); err != nil {
				return SwapResult{}, err
			}
		}

		switch {
		case !key.FullRange() && step.next == nextRatio:
			if initialized {
				net, err := c.crossTick(key, nextTick, state.FeesPerLiquidity)
				if err != nil {
					return SwapResult{}, err
				}
				if !increasing {
					net.Neg(net)
				}
				state.Liquidity = new(big.Int).Add(state.Liquidity, net)
				if state.Liquidity.Sign() < 0 {
					return SwapResult{}, fmt.Errorf("liquidity below zero crossing tick %d: %w", nextTick, ErrInvariantBroken)
				}
			}
			if increasing {
				state.Tick = nextTick
			} else {
				state.Tick = nextTick - 1
			}
		case step.next != state.SqrtRatio:
			if state.Tick, err = tickmath.TickAtSqrtRatio(step.next); err != nil {
				return SwapResult{}, err
			}
		}
		state.SqrtRatio = step.next
	}

	exactIn := amount.Sign() > 0
	specified := new(big.Int).Sub(amount, remaining)
	other := new(big.Int).Set(calculated)
	if exactIn {
		other.Neg(other)
	}
	delta0, delta1 := specified, other
	if params.IsToken1 {
		delta0, delta1 = other, specified
	}
	if err := fixedpoint.CheckInt128(delta0); err != nil {
		return SwapResult{}, fmt.Errorf("delta0: %w", err)
	}
	if err := fixedpoint.CheckInt128(delta1); err != nil {
		return SwapResult{}, fmt.Errorf("delta1: %w", err)
	}

	if params.Threshold != nil {
		if exactIn && calculated.Cmp(params.Threshold) < 0 {
			return SwapResult{}, fmt.Errorf("output %s below %s: %w", calculated, params.Threshold, ErrSlippageExceeded)
		}
		if !exactIn && calculated.Cmp(params.Threshold) > 0 {
			return SwapResult{}, fmt.Errorf("input %s above %s: %w", calculated, params.Threshold, ErrSlippageExceeded)
		}
	}

	state.Reserves[0] = new(big.Int).Add(state.Reserves[0], delta0)
	state.Reserves[1] = new(big.Int).Add(state.Reserves[1], delta1)
	if state.Reserves[0].Sign() < 0 || state.Reserves[1].Sign() < 0 {
		return SwapResult{}, fmt.Errorf("reserves %s/%s: %w", state.Reserves[0], state.Reserves[1], ErrInsufficientFunds)
	}

	c.setPool(key, state)
	return SwapResult{Delta0: delta0, Delta1: delta1, Fee: feeTotal, State: state.Clone()}, nil
}

// accrueFee spreads fee over the active liquidity. Whatever the accumulator
// cannot represent is kept in UnattributedFees.
func accrueFee(state *PoolState, token int, fee *big.Int) error {
	if state.Liquidity.Sign() == 0 {
		state.UnattributedFees[token] = new(big.Int).Add(state.UnattributedFees[token], fee)
		return nil
	}

	increment := new(big.Int).Quo(new(big.Int).Lsh(fee, 128), state.Liquidity)
	attributed := new(big.Int).Rsh(new(big.Int).Mul(increment, state.Liquidity), 128)
	state.UnattributedFees[token] = new(big.Int).Add(state.UnattributedFees[token], new(big.Int).Sub(fee, attributed))
	if increment.Sign() == 0 {
		return nil
	}

	inc, err := fixedpoint.U256(increment)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(state.FeesPerLiquidity[token], inc)
	if overflow {
		return fmt.Errorf("fees per liquidity%d: %w", token, ErrOverflow)
	}
	state.FeesPerLiquidity[token] = next
	return nil
}
