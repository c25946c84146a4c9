package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityEngine/internal/model"
)

// Store provides Postgres persistence for pools, pool snapshots, window
// metrics and aggregation progress.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertPools inserts or updates pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				run_id, pool_id, token0, token1, fee, tick_spacing, extension, first_seen_ts, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8, now(), now())
			ON CONFLICT (run_id, pool_id)
			DO UPDATE SET
				first_seen_ts = LEAST(pools.first_seen_ts, EXCLUDED.first_seen_ts),
				updated_at = now()
		`,
			pool.RunID,
			pool.PoolID,
			pool.Token0,
			pool.Token1,
			pool.Fee,
			int64(pool.TickSpacing),
			pool.Extension,
			int64(pool.FirstSeen),
		)
	}
	return s.sendBatch(ctx, batch)
}

// SavePoolSnapshots stores end-of-run pool states, replacing earlier ones for
// the same run.
func (s *Store) SavePoolSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO pool_snapshots (
				run_id, pool_id, sqrt_ratio, tick, liquidity, reserve0, reserve1,
				fees_per_liquidity0, fees_per_liquidity1, unattributed_fee0, unattributed_fee1,
				hook_faults, taken_at
			) VALUES (
				$1, $2, $3::text::numeric, $4, $5::text::numeric, $6::text::numeric, $7::text::numeric,
				$8::text::numeric, $9::text::numeric, $10::text::numeric, $11::text::numeric, $12, $13
			)
			ON CONFLICT (run_id, pool_id)
			DO UPDATE SET
				sqrt_ratio = EXCLUDED.sqrt_ratio,
				tick = EXCLUDED.tick,
				liquidity = EXCLUDED.liquidity,
				reserve0 = EXCLUDED.reserve0,
				reserve1 = EXCLUDED.reserve1,
				fees_per_liquidity0 = EXCLUDED.fees_per_liquidity0,
				fees_per_liquidity1 = EXCLUDED.fees_per_liquidity1,
				unattributed_fee0 = EXCLUDED.unattributed_fee0,
				unattributed_fee1 = EXCLUDED.unattributed_fee1,
				hook_faults = EXCLUDED.hook_faults,
				taken_at = EXCLUDED.taken_at
		`,
			snap.RunID,
			snap.PoolID,
			snap.SqrtRatio,
			snap.Tick,
			snap.Liquidity,
			snap.Reserve0,
			snap.Reserve1,
			snap.FeesPerLiquidity0,
			snap.FeesPerLiquidity1,
			snap.UnattributedFee0,
			snap.UnattributedFee1,
			int64(snap.HookFaults),
			snap.TakenAt,
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				run_id, pool_id, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, volume0, volume1, fee0, fee1, virtual_sold0, virtual_sold1,
				fee_rate0, fee_rate1, tvl0, tvl1, apr, liquidity, sqrt_ratio,
				fee_method, tvl_method, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6,
				$7::text::numeric, $8::text::numeric, $9::text::numeric, $10::text::numeric,
				$11::text::numeric, $12::text::numeric, $13::text::numeric, $14::text::numeric,
				$15::text::numeric, $16::text::numeric, $17::text::numeric, $18::text::numeric,
				$19::text::numeric, $20, $21, now(), now()
			)
			ON CONFLICT (run_id, pool_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				volume0 = EXCLUDED.volume0,
				volume1 = EXCLUDED.volume1,
				fee0 = EXCLUDED.fee0,
				fee1 = EXCLUDED.fee1,
				virtual_sold0 = EXCLUDED.virtual_sold0,
				virtual_sold1 = EXCLUDED.virtual_sold1,
				fee_rate0 = EXCLUDED.fee_rate0,
				fee_rate1 = EXCLUDED.fee_rate1,
				tvl0 = EXCLUDED.tvl0,
				tvl1 = EXCLUDED.tvl1,
				apr = EXCLUDED.apr,
				liquidity = EXCLUDED.liquidity,
				sqrt_ratio = EXCLUDED.sqrt_ratio,
				fee_method = EXCLUDED.fee_method,
				tvl_method = EXCLUDED.tvl_method,
				updated_at = now()
		`,
			m.RunID,
			m.PoolID,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			m.Volume0,
			m.Volume1,
			m.Fee0,
			m.Fee1,
			m.VirtualSold0,
			m.VirtualSold1,
			m.FeeRate0,
			m.FeeRate1,
			m.TVL0,
			m.TVL1,
			m.APR,
			nullIfEmpty(m.Liquidity),
			nullIfEmpty(m.SqrtRatio),
			m.FeeMethod,
			m.TVLMethod,
		)
	}
	return s.sendBatch(ctx, batch)
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregate_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregate_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
