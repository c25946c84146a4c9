package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/config"
	"liquidityEngine/internal/core"
	"liquidityEngine/internal/sim"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/storage/postgres"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	scenario, err := sim.LoadScenario(cfg.In)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := storage.NewJsonlStorage(cfg.Out)
	errs := storage.NewJsonlStorage(cfg.Errors)
	_, resuming, err := sim.NewCheckpointStore(cfg.Checkpoint, cfg.CheckpointEnabled).Load()
	if err != nil {
		return err
	}
	if !resuming {
		if err := events.Truncate(); err != nil {
			return err
		}
		if err := errs.Truncate(); err != nil {
			return err
		}
	}

	var twammAddress common.Address
	if cfg.TWAMMAddress != "" {
		twammAddress = common.HexToAddress(cfg.TWAMMAddress)
	}
	runner, err := sim.NewRunner(sim.RunConfig{
		StartTime:         cfg.StartTime,
		TWAMMAddress:      twammAddress,
		HookFailure:       core.HookFailurePolicy(cfg.HookFailure),
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		InputDigest:       scenario.Digest,
	}, events, errs, logger)
	if err != nil {
		return err
	}

	logger.Info("simulate start",
		zap.String("in", cfg.In),
		zap.Int("ops", len(scenario.Ops)),
		zap.String("digest", scenario.Digest),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("hook_failure", cfg.HookFailure),
	)

	summary, err := runner.Run(ctx, scenario.Ops)
	if err != nil {
		return err
	}

	if cfg.PGDSN != "" {
		if err := storeRun(ctx, cfg.PGDSN, runner); err != nil {
			return err
		}
	}

	logger.Info("simulate complete",
		zap.String("run_id", summary.RunID),
		zap.Int("applied", summary.Applied),
		zap.Int("failed", summary.Failed),
		zap.Int("resumed", summary.Resumed),
		zap.Int("events", summary.Events),
	)
	return nil
}

// storeRun writes the run's pools and their final states to Postgres.
func storeRun(ctx context.Context, dsn string, runner *sim.Runner) error {
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := store.UpsertPools(ctx, runner.Pools()); err != nil {
		return err
	}
	snapshots, err := runner.Snapshots(time.Now())
	if err != nil {
		return err
	}
	return store.SavePoolSnapshots(ctx, snapshots)
}
