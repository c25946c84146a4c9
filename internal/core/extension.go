package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/fixedpoint"
)

// Verdict is what a hook hands back to the engine.
type Verdict int

const (
	Continue Verdict = iota
	// Halt stops the operation; the engine fails it with ErrHookHalted.
	Halt
)

// Extension is attached to a pool through PoolKey.Extension. Hooks run
// outside the pool's compute section and may call back into the engine;
// the engine re-reads pool state after every hook. Hooks are not invoked for
// calls made by the extension itself.
type Extension interface {
	BeforeInitializePool(caller common.Address, key PoolKey, sqrtRatio fixedpoint.SqrtRatio) (Verdict, error)
	AfterInitializePool(caller common.Address, key PoolKey, state PoolState) (Verdict, error)
	BeforeSwap(caller common.Address, key PoolKey, params SwapParams) (Verdict, error)
	AfterSwap(caller common.Address, key PoolKey, params SwapParams, result SwapResult) (Verdict, error)
	BeforeModifyPosition(caller common.Address, key PoolKey, params PositionParams) (Verdict, error)
	BeforeCollectFees(caller common.Address, key PoolKey, position PositionKey) (Verdict, error)
}

// BaseExtension implements every hook as a no-op; embed it to override a
// subset.
type BaseExtension struct{}

func (BaseExtension) BeforeInitializePool(common.Address, PoolKey, fixedpoint.SqrtRatio) (Verdict, error) {
	return Continue, nil
}

func (BaseExtension) AfterInitializePool(common.Address, PoolKey, PoolState) (Verdict, error) {
	return Continue, nil
}

func (BaseExtension) BeforeSwap(common.Address, PoolKey, SwapParams) (Verdict, error) {
	return Continue, nil
}

func (BaseExtension) AfterSwap(common.Address, PoolKey, SwapParams, SwapResult) (Verdict, error) {
	return Continue, nil
}

func (BaseExtension) BeforeModifyPosition(common.Address, PoolKey, PositionParams) (Verdict, error) {
	return Continue, nil
}

func (BaseExtension) BeforeCollectFees(common.Address, PoolKey, PositionKey) (Verdict, error) {
	return Continue, nil
}

// RegisterExtension binds an extension implementation to an address.
func (c *Core) RegisterExtension(addr common.Address, ext Extension) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("extension address is zero")
	}
	if _, ok := c.extensions[addr]; ok {
		return fmt.Errorf("extension %s already registered", addr.Hex())
	}
	c.extensions[addr] = ext
	return nil
}

func (c *Core) extension(key PoolKey) (Extension, error) {
	if !key.HasExtension() {
		return nil, nil
	}
	ext, ok := c.extensions[key.Extension]
	if !ok {
		return nil, fmt.Errorf("extension %s: %w", key.Extension.Hex(), ErrUnknownExtension)
	}
	return ext, nil
}

// callHook runs one hook under a savepoint. Under HookIsolate a failing hook
// is rolled back and recorded instead of failing the operation; a Halt
// verdict always fails it.
func (c *Core) callHook(caller common.Address, key PoolKey, name string, fn func(Extension) (Verdict, error)) error {
	if !key.HasExtension() || caller == key.Extension {
		return nil
	}
	ext, err := c.extension(key)
	if err != nil {
		return err
	}

	mark := c.journal.Mark()
	verdict, err := fn(ext)
	if verdict == Halt {
		c.journal.RollbackTo(mark)
		if err != nil {
			return fmt.Errorf("%s: %w: %w", name, ErrHookHalted, err)
		}
		return fmt.Errorf("%s: %w", name, ErrHookHalted)
	}
	if err == nil {
		return nil
	}
	if c.cfg.HookFailure == HookAbort {
		return fmt.Errorf("%s hook: %w", name, err)
	}

	c.journal.RollbackTo(mark)
	c.logger.Warn("extension hook failed",
		zap.String("pool", key.String()),
		zap.String("extension", key.Extension.Hex()),
		zap.String("hook", name),
		zap.Error(err),
	)
	if state, ok := c.pools.Get(key); ok {
		next := state.Clone()
		next.HookFaults++
		c.setPool(key, next)
	}
	c.Emit(HookFaulted{Pool: key, Extension: key.Extension, Hook: name, Error: err.Error()})
	return nil
}
