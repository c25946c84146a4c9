package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"

	"liquidityEngine/internal/model"
)

// reserveLedger follows each pool's reserves through the event stream.
// Liquidity changes and fee collections move them by their deltas; swaps
// report the exact figure.
type reserveLedger struct {
	pools map[string]*[2]*big.Int
}

func newReserveLedger() *reserveLedger {
	return &reserveLedger{pools: make(map[string]*[2]*big.Int)}
}

func ledgerKey(record model.EventRecordLine) string {
	return record.RunID + "/" + record.PoolID
}

func (l *reserveLedger) reserves(key string) *[2]*big.Int {
	r, ok := l.pools[key]
	if !ok {
		r = &[2]*big.Int{new(big.Int), new(big.Int)}
		l.pools[key] = r
	}
	return r
}

// Get returns copies of the reserves, and false for an unseen pool.
func (l *reserveLedger) Get(key string) (*big.Int, *big.Int, bool) {
	r, ok := l.pools[key]
	if !ok {
		return nil, nil, false
	}
	return new(big.Int).Set(r[0]), new(big.Int).Set(r[1]), true
}

func (l *reserveLedger) Apply(record model.EventRecordLine) error {
	r := l.reserves(ledgerKey(record))
	switch record.EventName {
	case "Swapped":
		var swap model.SwapData
		if err := json.Unmarshal(record.Decoded, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return setAll(r, swap.Reserve0, swap.Reserve1)
	case "PositionUpdated":
		var pos model.PositionData
		if err := json.Unmarshal(record.Decoded, &pos); err != nil {
			return fmt.Errorf("decode position: %w", err)
		}
		return addAll(r, pos.Delta0, pos.Delta1, false)
	case "FeesCollected":
		var fees model.FeesData
		if err := json.Unmarshal(record.Decoded, &fees); err != nil {
			return fmt.Errorf("decode fees: %w", err)
		}
		return addAll(r, fees.Amount0, fees.Amount1, true)
	}
	return nil
}

func setAll(r *[2]*big.Int, v0, v1 string) error {
	for i, v := range []string{v0, v1} {
		n, err := parseBigInt(v)
		if err != nil {
			return err
		}
		r[i] = n
	}
	return nil
}

func addAll(r *[2]*big.Int, v0, v1 string, negate bool) error {
	for i, v := range []string{v0, v1} {
		n, err := parseBigInt(v)
		if err != nil {
			return err
		}
		if negate {
			n.Neg(n)
		}
		r[i] = new(big.Int).Add(r[i], n)
	}
	return nil
}
