package core

import (
	"errors"

	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/tickmath"
)

var (
	ErrOverflow              = fixedpoint.ErrOverflow
	ErrInsufficientLiquidity = tickmath.ErrInsufficientLiquidity
	ErrInvalidRange          = errors.New("invalid range")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrSlippageExceeded      = errors.New("slippage exceeded")
	ErrPoolNotInitialized    = errors.New("pool not initialized")
	ErrReentrant             = errors.New("reentrant call")
	ErrInvariantBroken       = errors.New("internal invariant broken")

	ErrPoolAlreadyInitialized = errors.New("pool already initialized")
	ErrTokensNotSorted        = errors.New("tokens not sorted")
	ErrInvalidTickSpacing     = errors.New("invalid tick spacing")
	ErrInvalidPriceLimit      = errors.New("invalid price limit")
	ErrMaxLiquidityPerTick    = errors.New("max liquidity per tick exceeded")
	ErrPositionNotFound       = errors.New("position not found")
	ErrUnknownExtension       = errors.New("unknown extension")
	ErrHookHalted             = errors.New("extension halted operation")
)
