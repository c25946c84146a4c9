package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/chain"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/core"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/replay"
	"liquidityEngine/internal/storage"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var chainClient *chain.Client
	if cfg.RPCURL != "" {
		if chainClient, err = chain.Dial(ctx, cfg.RPCURL); err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
	}

	decoder, err := dex.NewV3PoolDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}
	pool := common.HexToAddress(cfg.Pool)

	meta, err := replayPoolMeta(ctx, cfg, chainClient, logger)
	if err != nil {
		return err
	}

	var logs []model.LogRecord
	if cfg.In != "" {
		logs, err = replay.ReadLogFile(cfg.In)
	} else {
		src := &replay.RPCSource{
			Fetcher:      chainClient,
			Pool:         pool,
			Topics:       decoder.Topics(),
			FromBlock:    cfg.FromBlock,
			ToBlock:      cfg.ToBlock,
			BatchSize:    cfg.BatchSize,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			Logger:       logger.Named("source"),
		}
		logs, err = src.Fetch(ctx)
	}
	if err != nil {
		return err
	}

	events := storage.NewJsonlStorage(cfg.Out)
	errs := storage.NewJsonlStorage(cfg.Errors)
	for _, s := range []*storage.JsonlStorage{events, errs} {
		if err := s.Truncate(); err != nil {
			return err
		}
	}

	logger.Info("replay start",
		zap.String("pool", meta.Address),
		zap.Int("logs", len(logs)),
		zap.Uint32("fee", meta.Fee),
		zap.Int32("tick_spacing", meta.TickSpacing),
		zap.String("out", cfg.Out),
	)

	r := replay.New(replay.Config{
		HookFailure: core.HookFailurePolicy(cfg.HookFailure),
	}, meta, decoder, events, errs, logger)
	report, err := r.Run(ctx, logs)
	if err != nil {
		return err
	}

	if cfg.CheckBalances {
		if err := replay.CheckBalances(ctx, chainClient, meta, cfg.ToBlock, &report); err != nil {
			logger.Warn("balance check failed", zap.Error(err))
		}
	}

	if cfg.Report != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if err := os.WriteFile(cfg.Report, data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	logger.Info("replay report",
		zap.String("run_id", report.RunID),
		zap.Int("swaps_checked", report.SwapsChecked),
		zap.Int("tick_mismatches", report.TickMismatches),
		zap.Int32("final_tick", report.FinalTick),
		zap.String("reserve0", report.Reserve0),
		zap.String("reserve1", report.Reserve1),
		zap.String("chain_balance0", report.ChainBalance0),
		zap.String("chain_balance1", report.ChainBalance1),
	)
	return nil
}

// replayPoolMeta reads the pool from chain as of the block before the
// replay starts, or builds it from flags when there is no RPC.
func replayPoolMeta(ctx context.Context, cfg config.ReplayConfig, client *chain.Client, logger *zap.Logger) (model.V3PoolMeta, error) {
	pool := common.HexToAddress(cfg.Pool)
	if client == nil {
		return model.V3PoolMeta{
			Address:     pool.Hex(),
			Token0:      common.HexToAddress(cfg.Token0).Hex(),
			Token1:      common.HexToAddress(cfg.Token1).Hex(),
			Fee:         cfg.FeePips,
			TickSpacing: cfg.TickSpacing,
			Slot0:       &model.PoolSlot0{SqrtPriceX96: cfg.SqrtPriceX96},
		}, nil
	}

	var seedBlock uint64
	if cfg.FromBlock > 0 {
		seedBlock = cfg.FromBlock - 1
	} else {
		logger.Warn("no start block, seeding from the latest pool state")
	}
	meta, err := dex.FetchPoolMeta(ctx, client, pool, seedBlock)
	if err != nil {
		return meta, fmt.Errorf("pool metadata: %w", err)
	}
	if cfg.SqrtPriceX96 != "" {
		meta.Slot0.SqrtPriceX96 = cfg.SqrtPriceX96
	}
	return meta, nil
}
