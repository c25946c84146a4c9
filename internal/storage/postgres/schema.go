package postgres

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pools (
		run_id        TEXT NOT NULL,
		pool_id       TEXT NOT NULL,
		token0        TEXT NOT NULL,
		token1        TEXT NOT NULL,
		fee           NUMERIC(20, 0) NOT NULL,
		tick_spacing  BIGINT NOT NULL,
		extension     TEXT NOT NULL DEFAULT '',
		first_seen_ts BIGINT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, pool_id)
	)`,
	`CREATE TABLE IF NOT EXISTS pool_snapshots (
		run_id              TEXT NOT NULL,
		pool_id             TEXT NOT NULL,
		sqrt_ratio          NUMERIC NOT NULL,
		tick                INTEGER NOT NULL,
		liquidity           NUMERIC NOT NULL,
		reserve0            NUMERIC NOT NULL,
		reserve1            NUMERIC NOT NULL,
		fees_per_liquidity0 NUMERIC NOT NULL,
		fees_per_liquidity1 NUMERIC NOT NULL,
		unattributed_fee0   NUMERIC NOT NULL,
		unattributed_fee1   NUMERIC NOT NULL,
		hook_faults         BIGINT NOT NULL,
		taken_at            TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, pool_id)
	)`,
	`CREATE TABLE IF NOT EXISTS pool_window_metrics (
		run_id              TEXT NOT NULL,
		pool_id             TEXT NOT NULL,
		window_size_seconds BIGINT NOT NULL,
		window_start_ts     TIMESTAMPTZ NOT NULL,
		window_end_ts       TIMESTAMPTZ NOT NULL,
		swap_count          BIGINT NOT NULL,
		volume0             NUMERIC NOT NULL,
		volume1             NUMERIC NOT NULL,
		fee0                NUMERIC NOT NULL,
		fee1                NUMERIC NOT NULL,
		virtual_sold0       NUMERIC NOT NULL,
		virtual_sold1       NUMERIC NOT NULL,
		fee_rate0           NUMERIC,
		fee_rate1           NUMERIC,
		tvl0                NUMERIC,
		tvl1                NUMERIC,
		apr                 NUMERIC,
		liquidity           NUMERIC,
		sqrt_ratio          NUMERIC,
		fee_method          TEXT NOT NULL,
		tvl_method          TEXT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, pool_id, window_size_seconds, window_start_ts)
	)`,
	`CREATE TABLE IF NOT EXISTS aggregate_state (
		name              TEXT PRIMARY KEY,
		last_processed_ts BIGINT NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,
}
