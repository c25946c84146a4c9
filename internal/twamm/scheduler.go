package twamm

import (
	"fmt"
	"math/big"

	"liquidityEngine/internal/bitmap"
	"liquidityEngine/internal/core"
	"liquidityEngine/internal/fixedpoint"
)

// TimeKey addresses one scheduled instant of a pool.
type TimeKey struct {
	Pool core.PoolKey
	Time uint64
}

// TimeWordKey addresses 256 bitmap bits, 65536 seconds of schedule.
type TimeWordKey struct {
	Pool core.PoolKey
	Word uint64
}

// TimeBucket holds the sale rate changes that take effect at one instant.
type TimeBucket struct {
	SaleRateDelta [2]*big.Int
	Orders        uint32
}

func (b TimeBucket) clone() TimeBucket {
	return TimeBucket{
		SaleRateDelta: [2]*big.Int{fixedpoint.Clone(b.SaleRateDelta[0]), fixedpoint.Clone(b.SaleRateDelta[1])},
		Orders:        b.Orders,
	}
}

// Scheduler is the sparse per-pool timeline of sale rate changes.
type Scheduler struct {
	buckets *core.Table[TimeKey, TimeBucket]
	words   *core.Table[TimeWordKey, bitmap.Word]
}

func NewScheduler(journal *core.Journal) *Scheduler {
	return &Scheduler{
		buckets: core.NewTable[TimeKey, TimeBucket](journal),
		words:   core.NewTable[TimeWordKey, bitmap.Word](journal),
	}
}

func timePosition(t uint64) (uint64, uint8) {
	return t >> 16, uint8(t >> 8)
}

func (s *Scheduler) flip(pool core.PoolKey, t uint64) {
	word, bit := timePosition(t)
	key := TimeWordKey{Pool: pool, Word: word}
	w, _ := s.words.Get(key)
	w = w.Flip(bit)
	if w.IsZero() {
		s.words.Delete(key)
		return
	}
	s.words.Set(key, w)
}

// Bucket returns a copy of the bucket at t.
func (s *Scheduler) Bucket(pool core.PoolKey, t uint64) (TimeBucket, bool) {
	b, ok := s.buckets.Get(TimeKey{Pool: pool, Time: t})
	if !ok {
		return TimeBucket{}, false
	}
	return b.clone(), true
}

// Update adds delta to the bucket at t and moves its order count by
// orders. A bucket whose order count returns to zero is removed; its deltas
// must have cancelled out by then.
func (s *Scheduler) Update(pool core.PoolKey, t uint64, delta [2]*big.Int, orders int) error {
	if t%minStep != 0 {
		return fmt.Errorf("time %d off the bitmap grid: %w", t, core.ErrInvalidRange)
	}
	key := TimeKey{Pool: pool, Time: t}
	current, exists := s.buckets.Get(key)
	next := TimeBucket{SaleRateDelta: [2]*big.Int{new(big.Int), new(big.Int)}}
	if exists {
		next = current.clone()
	}

	count := int64(next.Orders) + int64(orders)
	if count < 0 || count > int64(^uint32(0)) {
		return fmt.Errorf("bucket %d order count %d: %w", t, count, core.ErrInvariantBroken)
	}
	next.Orders = uint32(count)
	for i := 0; i < 2; i++ {
		if delta[i] != nil {
			next.SaleRateDelta[i] = new(big.Int).Add(next.SaleRateDelta[i], delta[i])
		}
	}

	if next.Orders == 0 {
		if next.SaleRateDelta[0].Sign() != 0 || next.SaleRateDelta[1].Sign() != 0 {
			return fmt.Errorf("bucket %d emptied with residual rate: %w", t, core.ErrInvariantBroken)
		}
		if exists {
			s.buckets.Delete(key)
			s.flip(pool, t)
		}
		return nil
	}
	if !exists {
		s.flip(pool, t)
	}
	s.buckets.Set(key, next)
	return nil
}

// Consume removes the bucket at t and hands it back.
func (s *Scheduler) Consume(pool core.PoolKey, t uint64) (TimeBucket, bool) {
	key := TimeKey{Pool: pool, Time: t}
	b, ok := s.buckets.Get(key)
	if !ok {
		return TimeBucket{}, false
	}
	s.buckets.Delete(key)
	s.flip(pool, t)
	return b.clone(), true
}

// NextInitializedTime finds the first scheduled time in (from, until]. It
// walks the valid grid as seen from reference and, whenever it lands inside
// a bitmap word, scans that word from its start (or from+1) so a landing in
// the middle of a coarse step never skips a bucket. When nothing is
// scheduled it returns until and false.
func (s *Scheduler) NextInitializedTime(pool core.PoolKey, reference, from, until uint64) (uint64, bool) {
	t := from
	for t < until {
		candidate, ok := NextValidTime(reference, t)
		if !ok || candidate > until {
			break
		}

		wordStart := candidate &^ 0xffff
		wordEnd := wordStart | 0xffff
		start := wordStart
		if t+1 > start {
			start = t + 1
		}
		end := wordEnd
		if until < end {
			end = until
		}
		if found, ok := s.lowestIn(pool, start, end); ok {
			return found, true
		}
		t = wordEnd
	}
	return until, false
}

// lowestIn returns the first initialised time in [start, end], both inside
// one bitmap word.
func (s *Scheduler) lowestIn(pool core.PoolKey, start, end uint64) (uint64, bool) {
	firstBit := (start + minStep - 1) / minStep
	lastBit := end / minStep
	if firstBit > lastBit {
		return 0, false
	}
	word, bit := timePosition(firstBit * minStep)
	if lastWord, _ := timePosition(lastBit * minStep); lastWord != word {
		return 0, false
	}
	w, ok := s.words.Get(TimeWordKey{Pool: pool, Word: word})
	if !ok {
		return 0, false
	}
	found, ok := w.LowestAtOrAbove(bit)
	if !ok || uint64(found) > lastBit&0xff {
		return 0, false
	}
	return (word<<16 | uint64(found)<<8), true
}
