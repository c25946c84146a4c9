package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/tickmath"
)

// InitializePool creates a pool at sqrtRatio.
func (c *Core) InitializePool(caller common.Address, key PoolKey, sqrtRatio fixedpoint.SqrtRatio) (PoolState, error) {
	var state PoolState
	err := c.Atomic(func() error {
		if err := key.Validate(); err != nil {
			return err
		}
		if _, err := c.extension(key); err != nil {
			return err
		}
		if _, ok := c.pools.Get(key); ok {
			return fmt.Errorf("pool %s: %w", key, ErrPoolAlreadyInitialized)
		}
		if err := tickmath.CheckSqrtRatio(sqrtRatio); err != nil {
			return err
		}

		if err := c.callHook(caller, key, "before_initialize_pool", func(ext Extension) (Verdict, error) {
			return ext.BeforeInitializePool(caller, key, sqrtRatio)
		}); err != nil {
			return err
		}
		// A hook may have raced us to it.
		if _, ok := c.pools.Get(key); ok {
			return fmt.Errorf("pool %s: %w", key, ErrPoolAlreadyInitialized)
		}

		tick, err := tickmath.TickAtSqrtRatio(sqrtRatio)
		if err != nil {
			return err
		}
		state = newPoolState(sqrtRatio, tick)
		c.setPool(key, state)
		c.Emit(PoolInitialized{Pool: key, Caller: caller, SqrtRatio: sqrtRatio, Tick: tick})

		snapshot := state.Clone()
		if err := c.callHook(caller, key, "after_initialize_pool", func(ext Extension) (Verdict, error) {
			return ext.AfterInitializePool(caller, key, snapshot)
		}); err != nil {
			return err
		}
		state, err = c.Pool(key)
		return err
	})
	if err != nil {
		return PoolState{}, err
	}
	return state, nil
}
