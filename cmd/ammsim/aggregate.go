package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/aggregate"
	"liquidityEngine/internal/chain"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/storage/postgres"
)

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAggregate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	windowSeconds := uint64(cfg.Window.Seconds())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var caller dex.ContractCaller
	if cfg.RPCURL != "" {
		chainClient, err := chain.Dial(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		caller = chainClient
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	stateName := fmt.Sprintf("aggregator:%d:%s", windowSeconds, cfg.StateName)
	var stateStore aggregate.StateStore
	if cfg.StateFile != "" {
		stateStore = &aggregate.FileStateStore{Path: cfg.StateFile, Name: stateName}
	} else {
		stateStore = &aggregate.DBStateStore{Store: store, Name: stateName}
	}

	agg := aggregate.NewAggregator(aggregate.Config{
		WindowSeconds: windowSeconds,
		BatchSize:     cfg.BatchSize,
		RecomputeFrom: cfg.RecomputeFrom,
		StateStore:    stateStore,
		Decimals:      cfg.Decimals,
	}, store, caller, logger)

	logger.Info("aggregate start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint64("window_seconds", windowSeconds),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint64("recompute_from", cfg.RecomputeFrom),
		zap.Bool("rpc_decimals", caller != nil),
	)

	_, err = agg.Run(ctx, cfg.Input)
	return err
}
