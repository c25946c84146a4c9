package twamm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/core"
	"liquidityEngine/internal/fixedpoint"
)

// Extension runs virtual orders on full range pools that name it as their
// extension. Its state lives in tables on the engine's journal, so it rolls
// back together with the pool.
type Extension struct {
	core.BaseExtension

	address common.Address
	engine  *core.Core
	clock   Clock
	logger  *zap.Logger

	states    *core.Table[core.PoolKey, State]
	snapshots *core.Table[snapshotKey, marks]
	orders    *core.Table[OrderKey, Order]
	schedule  *Scheduler
}

// New builds the extension and registers it with the engine under address.
func New(engine *core.Core, address common.Address, clock Clock, logger *zap.Logger) (*Extension, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	journal := engine.Journal()
	x := &Extension{
		address:   address,
		engine:    engine,
		clock:     clock,
		logger:    logger,
		states:    core.NewTable[core.PoolKey, State](journal),
		snapshots: core.NewTable[snapshotKey, marks](journal),
		orders:    core.NewTable[OrderKey, Order](journal),
		schedule:  NewScheduler(journal),
	}
	if err := engine.RegisterExtension(address, x); err != nil {
		return nil, err
	}
	return x, nil
}

func (x *Extension) Address() common.Address {
	return x.address
}

func (x *Extension) Scheduler() *Scheduler {
	return x.schedule
}

// State returns a copy of a pool's virtual order state.
func (x *Extension) State(pool core.PoolKey) (State, bool) {
	st, ok := x.states.Get(pool)
	if !ok {
		return State{}, false
	}
	return st.Clone(), true
}

func (x *Extension) BeforeInitializePool(_ common.Address, key core.PoolKey, _ fixedpoint.SqrtRatio) (core.Verdict, error) {
	if !key.FullRange() {
		return core.Halt, fmt.Errorf("tick spacing %d: %w", key.TickSpacing, ErrFullRangeOnly)
	}
	return core.Continue, nil
}

func (x *Extension) AfterInitializePool(_ common.Address, key core.PoolKey, _ core.PoolState) (core.Verdict, error) {
	x.states.Set(key, newState(x.clock.Now()))
	return core.Continue, nil
}

func (x *Extension) BeforeSwap(_ common.Address, key core.PoolKey, _ core.SwapParams) (core.Verdict, error) {
	return core.Continue, x.settle(key, x.clock.Now())
}

func (x *Extension) BeforeModifyPosition(_ common.Address, key core.PoolKey, _ core.PositionParams) (core.Verdict, error) {
	return core.Continue, x.settle(key, x.clock.Now())
}

func (x *Extension) BeforeCollectFees(_ common.Address, key core.PoolKey, _ core.PositionKey) (core.Verdict, error) {
	return core.Continue, x.settle(key, x.clock.Now())
}

// Settle executes the pool's virtual orders up to the current time. It is
// safe to call any number of times.
func (x *Extension) Settle(pool core.PoolKey) error {
	return x.engine.Atomic(func() error {
		return x.settle(pool, x.clock.Now())
	})
}

func (x *Extension) settle(pool core.PoolKey, now uint64) error {
	stored, ok := x.states.Get(pool)
	if !ok {
		return fmt.Errorf("pool %s: %w", pool, ErrPoolNotTracked)
	}
	if now <= stored.LastSettled {
		return nil
	}

	st := stored.Clone()
	from := st.LastSettled
	sold := [2]*big.Int{new(big.Int), new(big.Int)}
	bought := [2]*big.Int{new(big.Int), new(big.Int)}

	for st.LastSettled != now {
		next, scheduled := x.schedule.NextInitializedTime(pool, st.LastSettled, st.LastSettled, now)
		elapsed := next - st.LastSettled

		amounts := [2]*big.Int{
			ComputeAmountFromSaleRate(st.SaleRate[0], elapsed, false),
			ComputeAmountFromSaleRate(st.SaleRate[1], elapsed, false),
		}
		if amounts[0].Sign() > 0 || amounts[1].Sign() > 0 {
			s, b, err := x.execute(pool, &st, amounts, elapsed)
			if err != nil {
				return fmt.Errorf("settle %d..%d: %w", st.LastSettled, next, err)
			}
			for i := 0; i < 2; i++ {
				sold[i].Add(sold[i], s[i])
				bought[i].Add(bought[i], b[i])
			}
		}

		if scheduled {
			bucket, _ := x.schedule.Consume(pool, next)
			x.snapshots.Set(snapshotKey{Pool: pool, Time: next}, st.marks())
			for i := 0; i < 2; i++ {
				rate := new(big.Int).Add(st.SaleRate[i], bucket.SaleRateDelta[i])
				if rate.Sign() < 0 {
					return fmt.Errorf("sale rate %d below zero at %d: %w", i, next, core.ErrInvariantBroken)
				}
				st.SaleRate[i] = rate
			}
		}
		st.LastSettled = next
	}

	x.states.Set(pool, st)
	x.engine.Emit(VirtualOrdersExecuted{
		Pool:      pool,
		From:      from,
		To:        now,
		SaleRate0: fixedpoint.Clone(st.SaleRate[0]),
		SaleRate1: fixedpoint.Clone(st.SaleRate[1]),
		Sold0:     sold[0],
		Sold1:     sold[1],
		Bought0:   bought[0],
		Bought1:   bought[1],
	})
	x.logger.Debug("virtual orders settled",
		zap.String("pool", pool.String()),
		zap.Uint64("from", from),
		zap.Uint64("to", now),
	)
	return nil
}

// execute trades one settlement segment. It returns, per token, what the
// orders sold and what they received: received[0] is token1 owed to token0
// sellers. A lone side sells only what the pool takes; the rest is credited
// back to it as unsold.
func (x *Extension) execute(pool core.PoolKey, st *State, amounts [2]*big.Int, elapsed uint64) (sold, received [2]*big.Int, err error) {
	state, err := x.engine.Pool(pool)
	if err != nil {
		return sold, received, err
	}

	sold = [2]*big.Int{new(big.Int), new(big.Int)}
	delta := [2]*big.Int{new(big.Int), new(big.Int)}
	unsold := [2]*big.Int{new(big.Int), new(big.Int)}

	switch {
	case amounts[0].Sign() > 0 && amounts[1].Sign() > 0:
		sold = amounts
		if state.Liquidity.Sign() == 0 {
			// With nothing to trade against, the two sides clear each other
			// at the ratio of their sale rates and the pool price stays put.
			break
		}
		next, err := ComputeNextSqrtRatio(state.SqrtRatio, state.Liquidity, st.SaleRate[0], st.SaleRate[1], elapsed, pool.Fee)
		if err != nil {
			return sold, received, err
		}
		switch next.Cmp(state.SqrtRatio) {
		case 1:
			delta, err = x.sell(pool, amounts[1], true, next)
		case -1:
			delta, err = x.sell(pool, amounts[0], false, next)
		}
		if err != nil {
			return sold, received, err
		}
	default:
		side := 0
		if amounts[1].Sign() > 0 {
			side = 1
		}
		if state.Liquidity.Sign() > 0 {
			if delta, err = x.sell(pool, amounts[side], side == 1, fixedpoint.SqrtRatio{}); err != nil {
				return sold, received, err
			}
		}
		sold[side] = fixedpoint.Clone(delta[side])
		unsold[side] = new(big.Int).Sub(amounts[side], sold[side])
	}

	received = [2]*big.Int{
		new(big.Int).Sub(sold[1], delta[1]),
		new(big.Int).Sub(sold[0], delta[0]),
	}
	for i := 0; i < 2; i++ {
		st.Holdings[i] = new(big.Int).Sub(st.Holdings[i], delta[i])
		if st.Holdings[i].Sign() < 0 {
			return sold, received, fmt.Errorf("holdings%d %s: %w", i, st.Holdings[i], core.ErrInsufficientFunds)
		}
		if st.SaleRate[i].Sign() == 0 {
			// Proceeds for a side with no sale rate have no owner and stay
			// in holdings.
			continue
		}
		st.RewardRate[i] = perRate(st.RewardRate[i], received[i], st.SaleRate[i])
		st.UnsoldRate[i] = perRate(st.UnsoldRate[i], unsold[i], st.SaleRate[i])
	}
	return sold, received, nil
}

// perRate adds amount, spread over rate and shifted by 128 bits, to acc.
func perRate(acc, amount, rate *big.Int) *big.Int {
	if amount.Sign() <= 0 {
		return acc
	}
	increment := new(big.Int).Lsh(amount, 128)
	increment.Quo(increment, rate)
	return new(big.Int).Add(acc, increment)
}

// sell swaps amount of one token into the pool as the extension, so no hooks
// run. The returned deltas are pool-side.
func (x *Extension) sell(pool core.PoolKey, amount *big.Int, isToken1 bool, limit fixedpoint.SqrtRatio) ([2]*big.Int, error) {
	res, err := x.engine.Swap(x.address, pool, core.SwapParams{
		Amount:         amount,
		IsToken1:       isToken1,
		SqrtRatioLimit: limit,
	})
	if err != nil {
		return [2]*big.Int{}, err
	}
	return [2]*big.Int{res.Delta0, res.Delta1}, nil
}
