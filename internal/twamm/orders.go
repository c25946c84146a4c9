package twamm

import (
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"liquidityEngine/internal/core"
	"liquidityEngine/internal/fixedpoint"
)

// Order returns a copy of an order.
func (x *Extension) Order(key OrderKey) (Order, bool) {
	o, ok := x.orders.Get(key)
	if !ok {
		return Order{}, false
	}
	return o.clone(), true
}

// UpdateSaleRate settles the pool and moves the order's sale rate by delta.
// The returned amount is what the owner pays in when positive, or is
// refunded when negative.
func (x *Extension) UpdateSaleRate(key OrderKey, delta *big.Int) (*big.Int, error) {
	var amount *big.Int
	err := x.engine.Atomic(func() error {
		now := x.clock.Now()
		if err := x.settle(key.Pool, now); err != nil {
			return err
		}
		var err error
		amount, err = x.updateSaleRate(key, delta, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

func (x *Extension) updateSaleRate(key OrderKey, delta *big.Int, now uint64) (*big.Int, error) {
	if delta == nil {
		delta = new(big.Int)
	}
	if key.Pool.Extension != x.address {
		return nil, fmt.Errorf("pool %s: %w", key.Pool, ErrPoolNotTracked)
	}
	if err := checkOrderTimes(key, now); err != nil {
		return nil, err
	}
	stored, _ := x.states.Get(key.Pool)
	st := stored.Clone()

	order := newOrder()
	if o, ok := x.orders.Get(key); ok {
		order = o.clone()
	}
	if err := x.accrue(&order, key, st); err != nil {
		return nil, err
	}

	rate := new(big.Int).Add(order.SaleRate, delta)
	if rate.Sign() < 0 {
		return nil, fmt.Errorf("sale rate %s below zero: %w", rate, core.ErrInsufficientFunds)
	}
	if rate.Cmp(MaxSaleRate) > 0 {
		return nil, fmt.Errorf("sale rate %s: %w", rate, core.ErrOverflow)
	}

	orders := 0
	switch {
	case order.SaleRate.Sign() == 0 && rate.Sign() > 0:
		orders = 1
	case order.SaleRate.Sign() > 0 && rate.Sign() == 0:
		orders = -1
	}
	side := key.side()
	if delta.Sign() != 0 {
		if err := x.scheduleBoundary(key.Pool, &st, key.Start, side, delta, orders); err != nil {
			return nil, err
		}
		if err := x.scheduleBoundary(key.Pool, &st, key.End, side, new(big.Int).Neg(delta), orders); err != nil {
			return nil, err
		}
	}
	if st.SaleRate[side].Cmp(MaxSaleRate) > 0 {
		return nil, fmt.Errorf("pool sale rate %s: %w", st.SaleRate[side], core.ErrOverflow)
	}

	from := key.Start
	if now > from {
		from = now
	}
	amount := ComputeAmountFromSaleRate(new(big.Int).Abs(delta), key.End-from, delta.Sign() > 0)
	if delta.Sign() < 0 {
		amount.Neg(amount)
	}
	st.Holdings[side] = new(big.Int).Add(st.Holdings[side], amount)
	if st.Holdings[side].Sign() < 0 {
		return nil, fmt.Errorf("holdings%d %s: %w", side, st.Holdings[side], core.ErrInsufficientFunds)
	}

	order.SaleRate = rate
	order.RewardSnapshot, order.UnsoldSnapshot = x.inside(key, st)
	x.states.Set(key.Pool, st)
	x.saveOrder(key, order, now)

	x.engine.Emit(OrderUpdated{
		Pool:          key.Pool,
		Order:         key,
		SaleRateDelta: fixedpoint.Clone(delta),
		SaleRate:      fixedpoint.Clone(rate),
		Amount:        fixedpoint.Clone(amount),
	})
	x.logger.Debug("order updated",
		zap.String("pool", key.Pool.String()),
		zap.String("owner", key.Owner.Hex()),
		zap.Uint64("start", key.Start),
		zap.Uint64("end", key.End),
		zap.String("sale_rate", rate.String()),
	)
	return amount, nil
}

// Proceeds is a payout: Amount in the token the order buys, Refund in the
// token it sells.
type Proceeds struct {
	Amount *big.Int
	Refund *big.Int
}

// CollectProceeds settles the pool and pays out everything the order has
// bought so far, plus whatever the pool could not take off its hands.
func (x *Extension) CollectProceeds(key OrderKey) (Proceeds, error) {
	var out Proceeds
	err := x.engine.Atomic(func() error {
		now := x.clock.Now()
		if err := x.settle(key.Pool, now); err != nil {
			return err
		}
		var err error
		out, err = x.collectProceeds(key, now)
		return err
	})
	if err != nil {
		return Proceeds{}, err
	}
	return out, nil
}

func (x *Extension) collectProceeds(key OrderKey, now uint64) (Proceeds, error) {
	stored, ok := x.orders.Get(key)
	if !ok {
		return Proceeds{}, fmt.Errorf("owner %s: %w", key.Owner.Hex(), ErrOrderNotFound)
	}
	state, _ := x.states.Get(key.Pool)
	st := state.Clone()
	order := stored.clone()
	if err := x.accrue(&order, key, st); err != nil {
		return Proceeds{}, err
	}

	out := Proceeds{Amount: order.ProceedsOwed, Refund: order.RefundOwed}
	order.ProceedsOwed, order.RefundOwed = new(big.Int), new(big.Int)
	sell := key.side()
	for i, paid := range [2]*big.Int{out.Refund, out.Amount} {
		token := sell ^ i
		st.Holdings[token] = new(big.Int).Sub(st.Holdings[token], paid)
		if st.Holdings[token].Sign() < 0 {
			return Proceeds{}, fmt.Errorf("holdings%d %s: %w", token, st.Holdings[token], core.ErrInsufficientFunds)
		}
	}
	x.states.Set(key.Pool, st)
	x.saveOrder(key, order, now)

	x.engine.Emit(ProceedsCollected{
		Pool:   key.Pool,
		Order:  key,
		Amount: fixedpoint.Clone(out.Amount),
		Refund: fixedpoint.Clone(out.Refund),
	})
	return out, nil
}

// RewardInside is the reward per unit of sale rate an order has earned over
// its lifetime so far, shifted by 128 bits.
func (x *Extension) RewardInside(key OrderKey) (*big.Int, error) {
	st, ok := x.states.Get(key.Pool)
	if !ok {
		return nil, fmt.Errorf("pool %s: %w", key.Pool, ErrPoolNotTracked)
	}
	reward, _ := x.inside(key, st)
	return reward, nil
}

// inside returns the reward and unsold accumulators over the order's
// lifetime so far.
func (x *Extension) inside(key OrderKey, st State) (reward, unsold *big.Int) {
	side := key.side()
	var upto marks
	switch {
	case st.LastSettled >= key.End:
		upto = x.snapshot(key.Pool, key.End)
	case st.LastSettled >= key.Start:
		upto = st.marks()
	default:
		return new(big.Int), new(big.Int)
	}
	start := x.snapshot(key.Pool, key.Start)
	return new(big.Int).Sub(upto.Reward[side], start.Reward[side]),
		new(big.Int).Sub(upto.Unsold[side], start.Unsold[side])
}

func (x *Extension) snapshot(pool core.PoolKey, t uint64) marks {
	snap, ok := x.snapshots.Get(snapshotKey{Pool: pool, Time: t})
	if !ok {
		return newState(0).marks()
	}
	return snap
}

// accrue credits the order with what it earned, and what went unsold, since
// its snapshots.
func (x *Extension) accrue(order *Order, key OrderKey, st State) error {
	reward, unsold := x.inside(key, st)
	if order.SaleRate.Sign() > 0 {
		earned, err := share(reward, order.RewardSnapshot, order.SaleRate)
		if err != nil {
			return fmt.Errorf("reward: %w", err)
		}
		back, err := share(unsold, order.UnsoldSnapshot, order.SaleRate)
		if err != nil {
			return fmt.Errorf("unsold: %w", err)
		}
		order.ProceedsOwed = new(big.Int).Add(order.ProceedsOwed, earned)
		order.RefundOwed = new(big.Int).Add(order.RefundOwed, back)
	}
	order.RewardSnapshot, order.UnsoldSnapshot = reward, unsold
	return nil
}

// share is (inside - snapshot) * rate >> 128.
func share(inside, snapshot, rate *big.Int) (*big.Int, error) {
	growth := new(big.Int).Sub(inside, snapshot)
	if growth.Sign() < 0 {
		return nil, fmt.Errorf("growth %s: %w", growth, core.ErrInvariantBroken)
	}
	growth.Mul(growth, rate)
	return growth.Rsh(growth, 128), nil
}

// scheduleBoundary applies delta at t. Boundaries that are already behind the
// settled time change the live rate instead, and pin the reward snapshot the
// order will measure from.
func (x *Extension) scheduleBoundary(pool core.PoolKey, st *State, t uint64, side int, delta *big.Int, orders int) error {
	if t > st.LastSettled {
		var d [2]*big.Int
		d[side] = delta
		return x.schedule.Update(pool, t, d, orders)
	}

	st.SaleRate[side] = new(big.Int).Add(st.SaleRate[side], delta)
	if st.SaleRate[side].Sign() < 0 {
		return fmt.Errorf("pool sale rate %s: %w", st.SaleRate[side], core.ErrInvariantBroken)
	}
	key := snapshotKey{Pool: pool, Time: t}
	if _, ok := x.snapshots.Get(key); !ok {
		x.snapshots.Set(key, st.marks())
	}
	return nil
}

// saveOrder stores the order, or drops it once it can neither earn nor pay
// out anything more.
func (x *Extension) saveOrder(key OrderKey, order Order, now uint64) {
	if order.ProceedsOwed.Sign() == 0 && order.RefundOwed.Sign() == 0 && (order.SaleRate.Sign() == 0 || now >= key.End) {
		x.orders.Delete(key)
		return
	}
	x.orders.Set(key, order)
}

func checkOrderTimes(key OrderKey, now uint64) error {
	if key.End <= key.Start {
		return fmt.Errorf("start %d end %d: %w: %w", key.Start, key.End, ErrInvalidOrderTime, core.ErrInvalidRange)
	}
	if !IsTimeValid(now, key.Start) || !IsTimeValid(now, key.End) {
		return fmt.Errorf("start %d end %d at %d: %w: %w", key.Start, key.End, now, ErrInvalidOrderTime, core.ErrInvalidRange)
	}
	if now >= key.End {
		return fmt.Errorf("end %d at %d: %w", key.End, now, ErrOrderEnded)
	}
	return nil
}
