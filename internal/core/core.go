package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/bitmap"
)

// HookFailurePolicy decides what happens when an extension hook errors.
type HookFailurePolicy string

const (
	// HookIsolate rolls back the hook's writes, records a fault and lets the
	// operation continue.
	HookIsolate HookFailurePolicy = "isolate"
	// HookAbort fails the whole operation.
	HookAbort HookFailurePolicy = "abort"
)

const defaultMaxDepth = 8

// Config configures the engine.
type Config struct {
	HookFailure HookFailurePolicy
	MaxDepth    int
}

// Core owns every pool, tick, bitmap word and position. It is a
// single-threaded state machine: callers serialise access.
type Core struct {
	cfg    Config
	logger *zap.Logger

	journal   *Journal
	pools     *Table[PoolKey, PoolState]
	ticks     *Table[TickKey, Tick]
	words     *Table[WordKey, bitmap.Word]
	positions *Table[PositionID, Position]

	extensions  map[common.Address]Extension
	locked      map[PoolKey]struct{}
	depth       int
	subscribers []func([]Event)
}

// New builds an empty engine.
func New(cfg Config, logger *zap.Logger) *Core {
	if cfg.HookFailure == "" {
		cfg.HookFailure = HookIsolate
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaultMaxDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	journal := &Journal{}
	return &Core{
		cfg:        cfg,
		logger:     logger,
		journal:    journal,
		pools:      NewTable[PoolKey, PoolState](journal),
		ticks:      NewTable[TickKey, Tick](journal),
		words:      NewTable[WordKey, bitmap.Word](journal),
		positions:  NewTable[PositionID, Position](journal),
		extensions: make(map[common.Address]Extension),
		locked:     make(map[PoolKey]struct{}),
	}
}

// Journal is shared with extensions so their state rolls back together with
// the pool state.
func (c *Core) Journal() *Journal {
	return c.journal
}

// Subscribe registers a callback for committed events.
func (c *Core) Subscribe(fn func([]Event)) {
	c.subscribers = append(c.subscribers, fn)
}

// Emit buffers an event for the current operation.
func (c *Core) Emit(e Event) {
	c.journal.Emit(e)
}

// Atomic runs fn as one all-or-nothing operation. Nested calls get their own
// savepoint; events are published once the outermost call commits.
func (c *Core) Atomic(fn func() error) error {
	if c.depth >= c.cfg.MaxDepth {
		return fmt.Errorf("nesting depth %d: %w", c.depth, ErrReentrant)
	}

	mark := c.journal.Mark()
	c.depth++
	err := fn()
	c.depth--
	if err != nil {
		c.journal.RollbackTo(mark)
		return err
	}

	if c.depth == 0 {
		events := c.journal.Commit()
		if len(events) > 0 {
			for _, fn := range c.subscribers {
				fn(events)
			}
		}
	}
	return nil
}

// Lock marks a pool's compute section as busy. A second entry before the
// returned release runs fails with ErrReentrant.
func (c *Core) Lock(key PoolKey) (func(), error) {
	if _, busy := c.locked[key]; busy {
		return nil, fmt.Errorf("pool %s: %w", key, ErrReentrant)
	}
	c.locked[key] = struct{}{}
	return func() { delete(c.locked, key) }, nil
}

// Pool returns a copy of the pool state.
func (c *Core) Pool(key PoolKey) (PoolState, error) {
	state, ok := c.pools.Get(key)
	if !ok {
		return PoolState{}, fmt.Errorf("pool %s: %w", key, ErrPoolNotInitialized)
	}
	return state.Clone(), nil
}

// Pools lists the keys of every initialised pool.
func (c *Core) Pools() []PoolKey {
	keys := make([]PoolKey, 0, c.pools.Len())
	c.pools.Range(func(k PoolKey, _ PoolState) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Position returns a copy of a position.
func (c *Core) Position(key PoolKey, pos PositionKey) (Position, bool) {
	p, ok := c.positions.Get(PositionID{Pool: key, Position: pos})
	if !ok {
		return Position{}, false
	}
	return p.clone(), true
}

func (c *Core) setPool(key PoolKey, state PoolState) {
	c.pools.Set(key, state)
}
