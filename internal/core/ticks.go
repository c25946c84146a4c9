package core

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/holiman/uint256"

	"liquidityEngine/internal/fixedpoint"
)

// TickKey addresses one tick record.
type TickKey struct {
	Pool  PoolKey
	Index int32
}

// WordKey addresses one 256-tick bitmap word.
type WordKey struct {
	Pool PoolKey
	Word int16
}

// TickInfo is a read-only view of an initialised tick.
type TickInfo struct {
	Index          int32
	LiquidityNet   *big.Int
	LiquidityGross *big.Int
}

// compress maps a tick to its index on the spacing grid, rounding toward
// negative infinity.
func compress(tick, spacing int32) int32 {
	c := tick / spacing
	if tick < 0 && tick%spacing != 0 {
		c--
	}
	return c
}

func wordPosition(compressed int32) (int16, uint8) {
	return int16(compressed >> 8), uint8(compressed & 0xff)
}

func (c *Core) flipTick(key PoolKey, tick int32) {
	word, bit := wordPosition(compress(tick, int32(key.TickSpacing)))
	wk := WordKey{Pool: key, Word: word}
	w, _ := c.words.Get(wk)
	w = w.Flip(bit)
	if w.IsZero() {
		c.words.Delete(wk)
		return
	}
	c.words.Set(wk, w)
}

func (c *Core) tickInitialized(key PoolKey, tick int32) bool {
	word, bit := wordPosition(compress(tick, int32(key.TickSpacing)))
	w, _ := c.words.Get(WordKey{Pool: key, Word: word})
	return w.IsSet(bit)
}

// nextInitializedTickWithinWord searches one bitmap word from tick in the
// direction of travel. When nothing is set it returns the word edge with
// initialized=false so the swap loop can step there and continue.
func (c *Core) nextInitializedTickWithinWord(key PoolKey, tick int32, lte bool) (int32, bool) {
	spacing := int32(key.TickSpacing)
	compressed := compress(tick, spacing)

	if lte {
		word, bit := wordPosition(compressed)
		w, _ := c.words.Get(WordKey{Pool: key, Word: word})
		if found, ok := w.HighestAtOrBelow(bit); ok {
			return (compressed - int32(bit) + int32(found)) * spacing, true
		}
		return (compressed - int32(bit)) * spacing, false
	}

	word, bit := wordPosition(compressed + 1)
	w, _ := c.words.Get(WordKey{Pool: key, Word: word})
	if found, ok := w.LowestAtOrAbove(bit); ok {
		return (compressed + 1 + int32(found) - int32(bit)) * spacing, true
	}
	return (compressed + 1 + int32(255-bit)) * spacing, false
}

func maxLiquidityPerTick(key PoolKey) *big.Int {
	lower, upper := key.TickBounds()
	spacing := int32(key.TickSpacing)
	count := big.NewInt(int64((upper-lower)/spacing + 1))
	return new(big.Int).Quo(fixedpoint.MaxUint128, count)
}

// updateTick applies a position's liquidity change to one boundary and
// reports whether the tick's initialised state flipped.
func (c *Core) updateTick(key PoolKey, pool PoolState, tick int32, delta *big.Int, upper bool) (bool, error) {
	tk := TickKey{Pool: key, Index: tick}
	current, ok := c.ticks.Get(tk)
	var next Tick
	if ok {
		next = current.clone()
	} else {
		next = Tick{
			LiquidityNet:   new(big.Int),
			LiquidityGross: new(big.Int),
			FeesOutside:    [2]*uint256.Int{new(uint256.Int), new(uint256.Int)},
		}
	}

	grossBefore := next.LiquidityGross
	grossAfter := new(big.Int).Add(grossBefore, delta)
	if grossAfter.Sign() < 0 {
		return false, fmt.Errorf("tick %d gross liquidity below zero: %w", tick, ErrInvariantBroken)
	}
	if grossAfter.Cmp(maxLiquidityPerTick(key)) > 0 {
		return false, fmt.Errorf("tick %d: %w", tick, ErrMaxLiquidityPerTick)
	}

	if grossBefore.Sign() == 0 && grossAfter.Sign() > 0 && tick <= pool.Tick {
		// Fees so far are attributed to the side below the current price.
		next.FeesOutside = [2]*uint256.Int{
			new(uint256.Int).Set(pool.FeesPerLiquidity[0]),
			new(uint256.Int).Set(pool.FeesPerLiquidity[1]),
		}
	}

	if upper {
		next.LiquidityNet.Sub(next.LiquidityNet, delta)
	} else {
		next.LiquidityNet.Add(next.LiquidityNet, delta)
	}
	if err := fixedpoint.CheckInt128(next.LiquidityNet); err != nil {
		return false, fmt.Errorf("tick %d net liquidity: %w", tick, err)
	}
	next.LiquidityGross = grossAfter

	flipped := (grossBefore.Sign() == 0) != (grossAfter.Sign() == 0)
	if flipped {
		c.flipTick(key, tick)
	}
	c.ticks.Set(tk, next)
	return flipped, nil
}

func (c *Core) clearTick(key PoolKey, tick int32) {
	c.ticks.Delete(TickKey{Pool: key, Index: tick})
}

// crossTick flips the tick's outside accumulators and returns its net
// liquidity.
func (c *Core) crossTick(key PoolKey, tick int32, global [2]*uint256.Int) (*big.Int, error) {
	tk := TickKey{Pool: key, Index: tick}
	current, ok := c.ticks.Get(tk)
	if !ok {
		return nil, fmt.Errorf("crossing uninitialised tick %d: %w", tick, ErrInvariantBroken)
	}

	next := current.clone()
	for i := 0; i < 2; i++ {
		outside, underflow := new(uint256.Int).SubOverflow(global[i], next.FeesOutside[i])
		if underflow {
			return nil, fmt.Errorf("tick %d fees outside above global: %w", tick, ErrInvariantBroken)
		}
		next.FeesOutside[i] = outside
	}
	c.ticks.Set(tk, next)
	return fixedpoint.Clone(next.LiquidityNet), nil
}

// Tick returns a copy of a tick record.
func (c *Core) Tick(key PoolKey, tick int32) (Tick, bool) {
	t, ok := c.ticks.Get(TickKey{Pool: key, Index: tick})
	if !ok {
		return Tick{}, false
	}
	return t.clone(), true
}

// Ticks lists the initialised ticks of a pool in ascending order.
func (c *Core) Ticks(key PoolKey) []TickInfo {
	var out []TickInfo
	c.ticks.Range(func(k TickKey, t Tick) bool {
		if k.Pool == key {
			out = append(out, TickInfo{
				Index:          k.Index,
				LiquidityNet:   fixedpoint.Clone(t.LiquidityNet),
				LiquidityGross: fixedpoint.Clone(t.LiquidityGross),
			})
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
