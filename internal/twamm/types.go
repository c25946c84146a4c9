package twamm

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/core"
	"liquidityEngine/internal/fixedpoint"
)

var (
	ErrFullRangeOnly    = errors.New("virtual orders need a full range pool")
	ErrPoolNotTracked   = errors.New("pool is not managed by this extension")
	ErrInvalidOrderTime = errors.New("invalid order time")
	ErrOrderEnded       = errors.New("order already ended")
	ErrOrderNotFound    = errors.New("order not found")
)

// State is the virtual order state of one pool.
type State struct {
	LastSettled uint64
	// SaleRate is the aggregate rate of each side: index 0 sells token0.
	SaleRate [2]*big.Int
	// RewardRate accumulates, per unit of sale rate and shifted by 128 bits,
	// what each side has received: index 0 is token1 paid to token0 sellers.
	RewardRate [2]*big.Int
	// UnsoldRate accumulates, per unit of sale rate and shifted by 128 bits,
	// what each side put up for sale that the pool could not take. It is
	// paid back in the side's own token.
	UnsoldRate [2]*big.Int
	// Holdings is what the extension holds on behalf of orders, per token.
	Holdings [2]*big.Int
}

func newState(now uint64) State {
	return State{
		LastSettled: now,
		SaleRate:    [2]*big.Int{new(big.Int), new(big.Int)},
		RewardRate:  [2]*big.Int{new(big.Int), new(big.Int)},
		UnsoldRate:  [2]*big.Int{new(big.Int), new(big.Int)},
		Holdings:    [2]*big.Int{new(big.Int), new(big.Int)},
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{LastSettled: s.LastSettled}
	for i := 0; i < 2; i++ {
		out.SaleRate[i] = fixedpoint.Clone(s.SaleRate[i])
		out.RewardRate[i] = fixedpoint.Clone(s.RewardRate[i])
		out.UnsoldRate[i] = fixedpoint.Clone(s.UnsoldRate[i])
		out.Holdings[i] = fixedpoint.Clone(s.Holdings[i])
	}
	return out
}

// marks snapshots both accumulators.
func (s State) marks() marks {
	var m marks
	for i := 0; i < 2; i++ {
		m.Reward[i] = fixedpoint.Clone(s.RewardRate[i])
		m.Unsold[i] = fixedpoint.Clone(s.UnsoldRate[i])
	}
	return m
}

// marks are the accumulator values recorded at a scheduled time.
type marks struct {
	Reward [2]*big.Int
	Unsold [2]*big.Int
}

// OrderKey identifies an order. Sellers of token0 receive token1 and the
// other way round.
type OrderKey struct {
	Owner      common.Address
	Salt       common.Hash
	Pool       core.PoolKey
	SellToken1 bool
	Start      uint64
	End        uint64
}

func (k OrderKey) side() int {
	if k.SellToken1 {
		return 1
	}
	return 0
}

// Order is the ledger entry of one order. ProceedsOwed is in the bought
// token, RefundOwed in the sold one.
type Order struct {
	SaleRate       *big.Int
	RewardSnapshot *big.Int
	UnsoldSnapshot *big.Int
	ProceedsOwed   *big.Int
	RefundOwed     *big.Int
}

func newOrder() Order {
	return Order{
		SaleRate:       new(big.Int),
		RewardSnapshot: new(big.Int),
		UnsoldSnapshot: new(big.Int),
		ProceedsOwed:   new(big.Int),
		RefundOwed:     new(big.Int),
	}
}

func (o Order) clone() Order {
	return Order{
		SaleRate:       fixedpoint.Clone(o.SaleRate),
		RewardSnapshot: fixedpoint.Clone(o.RewardSnapshot),
		UnsoldSnapshot: fixedpoint.Clone(o.UnsoldSnapshot),
		ProceedsOwed:   fixedpoint.Clone(o.ProceedsOwed),
		RefundOwed:     fixedpoint.Clone(o.RefundOwed),
	}
}

type snapshotKey struct {
	Pool core.PoolKey
	Time uint64
}

// VirtualOrdersExecuted reports one settlement from From to To.
type VirtualOrdersExecuted struct {
	Pool      core.PoolKey
	From      uint64
	To        uint64
	SaleRate0 *big.Int
	SaleRate1 *big.Int
	// Sold and Bought are per token: what orders sold and what they got back.
	Sold0   *big.Int
	Sold1   *big.Int
	Bought0 *big.Int
	Bought1 *big.Int
}

type OrderUpdated struct {
	Pool          core.PoolKey
	Order         OrderKey
	SaleRateDelta *big.Int
	SaleRate      *big.Int
	// Amount is paid in when positive and refunded when negative.
	Amount *big.Int
}

// ProceedsCollected pays Amount in the bought token and Refund, the part of
// the sale the pool could not take, in the sold token.
type ProceedsCollected struct {
	Pool   core.PoolKey
	Order  OrderKey
	Amount *big.Int
	Refund *big.Int
}

func (e VirtualOrdersExecuted) EventName() string     { return "VirtualOrdersExecuted" }
func (e VirtualOrdersExecuted) PoolKey() core.PoolKey { return e.Pool }
func (e OrderUpdated) EventName() string              { return "OrderUpdated" }
func (e OrderUpdated) PoolKey() core.PoolKey          { return e.Pool }
func (e ProceedsCollected) EventName() string         { return "ProceedsCollected" }
func (e ProceedsCollected) PoolKey() core.PoolKey     { return e.Pool }
