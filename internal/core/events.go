package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/fixedpoint"
)

// Event is published after the outermost operation that produced it commits.
type Event interface {
	EventName() string
	PoolKey() PoolKey
}

type PoolInitialized struct {
	Pool      PoolKey
	Caller    common.Address
	SqrtRatio fixedpoint.SqrtRatio
	Tick      int32
}

type Swapped struct {
	Pool      PoolKey
	Caller    common.Address
	Delta0    *big.Int
	Delta1    *big.Int
	Fee       *big.Int
	FeeToken1 bool
	SqrtRatio fixedpoint.SqrtRatio
	Tick      int32
	Liquidity *big.Int
	Reserve0  *big.Int
	Reserve1  *big.Int
}

type PositionUpdated struct {
	Pool           PoolKey
	Position       PositionKey
	LiquidityDelta *big.Int
	Liquidity      *big.Int
	Delta0         *big.Int
	Delta1         *big.Int
}

type FeesCollected struct {
	Pool     PoolKey
	Position PositionKey
	Amount0  *big.Int
	Amount1  *big.Int
}

// HookFaulted reports an extension failure that was isolated.
type HookFaulted struct {
	Pool      PoolKey
	Extension common.Address
	Hook      string
	Error     string
}

func (e PoolInitialized) EventName() string { return "PoolInitialized" }
func (e PoolInitialized) PoolKey() PoolKey  { return e.Pool }
func (e Swapped) EventName() string         { return "Swapped" }
func (e Swapped) PoolKey() PoolKey          { return e.Pool }
func (e PositionUpdated) EventName() string { return "PositionUpdated" }
func (e PositionUpdated) PoolKey() PoolKey  { return e.Pool }
func (e FeesCollected) EventName() string   { return "FeesCollected" }
func (e FeesCollected) PoolKey() PoolKey    { return e.Pool }
func (e HookFaulted) EventName() string     { return "HookFaulted" }
func (e HookFaulted) PoolKey() PoolKey      { return e.Pool }
