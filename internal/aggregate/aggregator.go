// Package aggregate folds engine event streams into per-pool window metrics.
package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/model"
)

const (
	feeMethodExact    = "exact_engine"
	tvlMethodReserves = "engine_reserves"
	tvlMethodNone     = "unavailable"
)

// Sink receives pools and finished windows. *postgres.Store satisfies it.
type Sink interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
	// Decimals overrides or replaces on-chain token decimals, keyed by
	// lower-case token address.
	Decimals map[string]uint8
}

// Aggregator aggregates engine events into pool window metrics.
type Aggregator struct {
	cfg          Config
	sink         Sink
	caller       dex.ContractCaller
	logger       *zap.Logger
	tokens       *dex.TokenMetaCache
	ledger       *reserveLedger
	accumulators map[string]*Accumulator
	poolSeen     map[string]model.Pool
}

// NewAggregator builds an Aggregator. caller may be nil, in which case
// amounts without configured decimals are reported in raw units.
func NewAggregator(cfg Config, sink Sink, caller dex.ContractCaller, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	decimals := make(map[string]uint8, len(cfg.Decimals))
	for token, d := range cfg.Decimals {
		decimals[strings.ToLower(token)] = d
	}
	cfg.Decimals = decimals

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		caller:       caller,
		logger:       logger,
		tokens:       dex.NewTokenMetaCache(),
		ledger:       newReserveLedger(),
		accumulators: make(map[string]*Accumulator),
		poolSeen:     make(map[string]model.Pool),
	}
}

// Stats counts what a run did.
type Stats struct {
	Total   int
	Windows int
	Skipped int
	Failed  int
}

// Run executes aggregation over an events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) (Stats, error) {
	var stats Stats
	if a.sink == nil {
		return stats, fmt.Errorf("sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return stats, fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return stats, err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return stats, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	pools := make([]model.Pool, 0, 16)
	maxTs := startTs

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Total++

		var record model.EventRecordLine
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			a.logger.Warn("decode event record", zap.Error(err))
			continue
		}

		// Windows already written still move the reserves forward.
		if record.Time <= startTs {
			if err := a.ledger.Apply(record); err != nil {
				a.logger.Warn("reserve ledger", zap.Error(err), zap.String("pool", record.PoolID))
			}
			stats.Skipped++
			continue
		}

		ws := windowStart(record.Time, a.cfg.WindowSeconds)
		key := ledgerKey(record)
		acc := a.accumulators[key]
		if acc != nil && acc.WindowStart != ws {
			metrics, pool := a.flushAccumulator(ctx, acc)
			batch = append(batch, metrics)
			if pool != nil {
				pools = append(pools, *pool)
			}
			acc = nil
		}
		if acc == nil {
			acc = NewAccumulator(record, ws, ws+a.cfg.WindowSeconds)
			a.accumulators[key] = acc
		}

		if err := a.ledger.Apply(record); err != nil {
			a.logger.Warn("reserve ledger", zap.Error(err), zap.String("pool", record.PoolID))
		}
		if err := acc.AddEvent(record); err != nil {
			stats.Failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.PoolID), zap.String("event", record.EventName))
			continue
		}
		if record.Time > maxTs {
			maxTs = record.Time
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flushBatches(ctx, batch, pools); err != nil {
				return stats, err
			}
			stats.Windows += len(batch)
			batch = batch[:0]
			pools = pools[:0]
			if err := a.saveState(ctx); err != nil {
				return stats, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}

	keys := make([]string, 0, len(a.accumulators))
	for key := range a.accumulators {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		metrics, pool := a.flushAccumulator(ctx, a.accumulators[key])
		batch = append(batch, metrics)
		if pool != nil {
			pools = append(pools, *pool)
		}
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 || len(pools) > 0 {
		if err := a.flushBatches(ctx, batch, pools); err != nil {
			return stats, err
		}
		stats.Windows += len(batch)
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return stats, err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", stats.Total),
		zap.Int("windows", stats.Windows),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil || !ok {
		return 0, err
	}
	return last, nil
}

// saveState records the last time before every window still open, so a
// rerun recomputes those windows in full.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs--
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flushBatches(ctx context.Context, batch []model.PoolWindowMetrics, pools []model.Pool) error {
	if len(pools) > 0 {
		if err := a.sink.UpsertPools(ctx, pools); err != nil {
			return err
		}
	}
	if len(batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) flushAccumulator(ctx context.Context, acc *Accumulator) (model.PoolWindowMetrics, *model.Pool) {
	pool := a.registerPool(acc)
	decimals0 := a.tokenDecimals(ctx, acc.PoolMeta.Token0)
	decimals1 := a.tokenDecimals(ctx, acc.PoolMeta.Token1)

	metrics := model.PoolWindowMetrics{
		RunID:          acc.RunID,
		PoolID:         acc.PoolID,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		Volume0:        formatTokenAmount(acc.Volume0, decimals0),
		Volume1:        formatTokenAmount(acc.Volume1, decimals1),
		Fee0:           formatTokenAmount(acc.Fee0, decimals0),
		Fee1:           formatTokenAmount(acc.Fee1, decimals1),
		VirtualSold0:   formatTokenAmount(acc.VirtualSold0, decimals0),
		VirtualSold1:   formatTokenAmount(acc.VirtualSold1, decimals1),
		Liquidity:      acc.Liquidity,
		SqrtRatio:      acc.SqrtRatio,
		FeeMethod:      feeMethodExact,
		TVLMethod:      tvlMethodNone,
	}

	reserve0, reserve1, ok := a.ledger.Get(acc.RunID + "/" + acc.PoolID)
	if ok {
		tvl0 := formatTokenAmount(reserve0, decimals0)
		tvl1 := formatTokenAmount(reserve1, decimals1)
		metrics.TVL0, metrics.TVL1 = &tvl0, &tvl1
		metrics.TVLMethod = tvlMethodReserves
		metrics.FeeRate0 = computeRate(acc.Fee0, reserve0)
		metrics.FeeRate1 = computeRate(acc.Fee1, reserve1)
		metrics.APR = computeAPR(acc.Fee0, acc.Fee1, reserve0, reserve1, acc.SqrtRatio, a.cfg.WindowSeconds)
	}
	return metrics, pool
}

// registerPool returns the pool row the first time a pool is seen, or when
// an earlier first appearance turns up.
func (a *Aggregator) registerPool(acc *Accumulator) *model.Pool {
	key := acc.RunID + "/" + acc.PoolID
	pool := model.Pool{
		RunID:       acc.RunID,
		PoolID:      acc.PoolID,
		Token0:      acc.PoolMeta.Token0,
		Token1:      acc.PoolMeta.Token1,
		Fee:         new(big.Int).SetUint64(acc.PoolMeta.Fee).String(),
		TickSpacing: acc.PoolMeta.TickSpacing,
		Extension:   acc.PoolMeta.Extension,
		FirstSeen:   acc.FirstTS,
	}
	if existing, ok := a.poolSeen[key]; ok && existing.FirstSeen <= pool.FirstSeen {
		return nil
	}
	a.poolSeen[key] = pool
	return &pool
}

func (a *Aggregator) tokenDecimals(ctx context.Context, token string) uint8 {
	if d, ok := a.cfg.Decimals[strings.ToLower(token)]; ok {
		return d
	}
	if a.caller == nil || !common.IsHexAddress(token) {
		return 0
	}
	return a.tokens.Load(ctx, a.caller, common.HexToAddress(token), a.logger).Decimals
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
