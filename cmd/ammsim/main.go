package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "ammsim",
		Short:        "Concentrated liquidity engine with virtual orders",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Apply a scenario of ops to a fresh engine",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("in", "", "scenario file (.jsonl, .yaml)")
	simulateCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	simulateCmd.Flags().String("errors", "./data/op_errors.jsonl", "failed ops JSONL")
	simulateCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	simulateCmd.Flags().Bool("checkpoint-enabled", false, "enable checkpointing")
	simulateCmd.Flags().Uint64("batch-size", 1000, "ops per checkpointed batch")
	simulateCmd.Flags().Uint64("start-time", 0, "initial clock in unix seconds")
	simulateCmd.Flags().String("hook-failure", "isolate", "extension hook failure policy (isolate, abort)")
	simulateCmd.Flags().String("twamm-address", "", "address the virtual order extension is registered at")
	simulateCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for pools and final pool states")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a Uniswap-V3 style pool's logs through the engine",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("rpc", "", "RPC URL for pool metadata, and logs when --in is not set")
	replayCmd.Flags().String("in", "", "input raw logs JSONL")
	replayCmd.Flags().String("pool", "", "pool address")
	replayCmd.Flags().Uint64("from", 0, "start block (inclusive); the pool is seeded from the block before")
	replayCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	replayCmd.Flags().Uint64("batch-size", 2000, "blocks per log request")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().String("out", "./data/replay_events.jsonl", "output events JSONL")
	replayCmd.Flags().String("errors", "./data/replay_errors.jsonl", "failed ops JSONL")
	replayCmd.Flags().String("report", "", "optional drift report JSON path")
	replayCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	replayCmd.Flags().Bool("check-balances", false, "compare engine reserves with the pool's token balances")
	replayCmd.Flags().String("hook-failure", "isolate", "extension hook failure policy (isolate, abort)")
	replayCmd.Flags().String("token0", "", "token0 address, when replaying without rpc")
	replayCmd.Flags().String("token1", "", "token1 address, when replaying without rpc")
	replayCmd.Flags().Uint32("fee", 0, "fee in hundredths of a bip, when replaying without rpc")
	replayCmd.Flags().Int32("tick-spacing", 0, "tick spacing, when replaying without rpc")
	replayCmd.Flags().String("sqrt-price-x96", "", "starting sqrtPriceX96, when replaying without rpc")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate engine events into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("rpc", "", "optional RPC URL for token decimals")
	aggregateCmd.Flags().String("in", "", "input events JSONL")
	aggregateCmd.Flags().Duration("window", 5*time.Minute, "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("state-name", "", "progress key, defaults to the input path")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("decimals", "", "token decimals (comma-separated address=decimals)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
