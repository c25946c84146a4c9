package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"

	"liquidityEngine/internal/model"
)

// Accumulator holds aggregate values for one pool window.
type Accumulator struct {
	RunID        string
	PoolID       string
	PoolMeta     model.PoolMeta
	WindowStart  uint64
	WindowEnd    uint64
	SwapCount    uint64
	Volume0      *big.Int
	Volume1      *big.Int
	Fee0         *big.Int
	Fee1         *big.Int
	VirtualSold0 *big.Int
	VirtualSold1 *big.Int
	// Liquidity and SqrtRatio follow the last swap; empty when none.
	Liquidity string
	SqrtRatio string
	FirstTS   uint64
	LastTS    uint64
}

func NewAccumulator(record model.EventRecordLine, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		RunID:        record.RunID,
		PoolID:       record.PoolID,
		PoolMeta:     record.PoolMeta,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		Volume0:      new(big.Int),
		Volume1:      new(big.Int),
		Fee0:         new(big.Int),
		Fee1:         new(big.Int),
		VirtualSold0: new(big.Int),
		VirtualSold1: new(big.Int),
		FirstTS:      record.Time,
		LastTS:       record.Time,
	}
}

func (a *Accumulator) AddEvent(record model.EventRecordLine) error {
	if record.Time > a.LastTS {
		a.LastTS = record.Time
	}

	switch record.EventName {
	case "Swapped":
		var swap model.SwapData
		if err := json.Unmarshal(record.Decoded, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return a.applySwap(swap)
	case "VirtualOrdersExecuted":
		var exec model.VirtualOrdersData
		if err := json.Unmarshal(record.Decoded, &exec); err != nil {
			return fmt.Errorf("decode virtual orders: %w", err)
		}
		return a.applyVirtual(exec)
	default:
		return nil
	}
}

func (a *Accumulator) applySwap(swap model.SwapData) error {
	delta0, err := parseBigInt(swap.Delta0)
	if err != nil {
		return err
	}
	delta1, err := parseBigInt(swap.Delta1)
	if err != nil {
		return err
	}
	fee, err := parseBigInt(swap.Fee)
	if err != nil {
		return err
	}

	absAdd(a.Volume0, delta0)
	absAdd(a.Volume1, delta1)
	if swap.FeeToken1 {
		a.Fee1.Add(a.Fee1, fee)
	} else {
		a.Fee0.Add(a.Fee0, fee)
	}
	a.Liquidity = swap.Liquidity
	a.SqrtRatio = swap.SqrtRatio
	a.SwapCount++
	return nil
}

func (a *Accumulator) applyVirtual(exec model.VirtualOrdersData) error {
	sold0, err := parseBigInt(exec.Sold0)
	if err != nil {
		return err
	}
	sold1, err := parseBigInt(exec.Sold1)
	if err != nil {
		return err
	}
	a.VirtualSold0.Add(a.VirtualSold0, sold0)
	a.VirtualSold1.Add(a.VirtualSold1, sold1)
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}

func absAdd(target *big.Int, value *big.Int) {
	if value == nil || target == nil {
		return
	}
	target.Add(target, new(big.Int).Abs(value))
}
