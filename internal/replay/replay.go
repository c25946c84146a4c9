// Package replay re-runs a deployed Uniswap-V3 style pool's history through
// the engine and reports how far the engine's price drifts from the chain's.
package replay

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/core"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/sim"
	"liquidityEngine/internal/storage"
)

// Config holds runtime settings for a replay.
type Config struct {
	HookFailure core.HookFailurePolicy
	BatchSize   uint64
	RunID       string
}

// Report summarises a replay. Ticks are compared after every swap against
// the tick the pool logged.
type Report struct {
	RunID          string `json:"run_id"`
	Pool           string `json:"pool"`
	Logs           int    `json:"logs"`
	Decoded        int    `json:"decoded"`
	Skipped        int    `json:"skipped"`
	Applied        int    `json:"applied"`
	Failed         int    `json:"failed"`
	SwapsChecked   int    `json:"swaps_checked"`
	TickMismatches int    `json:"tick_mismatches"`
	MaxTickDrift   int32  `json:"max_tick_drift"`

	FinalTick         int32  `json:"final_tick"`
	FinalSqrtPriceX96 string `json:"final_sqrt_price_x96"`
	ChainTick         *int32 `json:"chain_tick,omitempty"`
	ChainSqrtPriceX96 string `json:"chain_sqrt_price_x96,omitempty"`
	Liquidity         string `json:"liquidity"`
	Reserve0          string `json:"reserve0"`
	Reserve1          string `json:"reserve1"`
	ChainBalance0     string `json:"chain_balance0,omitempty"`
	ChainBalance1     string `json:"chain_balance1,omitempty"`
}

// Replayer applies decoded pool logs to a fresh engine.
type Replayer struct {
	cfg     Config
	meta    model.V3PoolMeta
	decoder dex.Decoder
	events  storage.EventSink
	errors  storage.ErrorSink
	logger  *zap.Logger

	runner *sim.Runner
	key    core.PoolKey
}

// New builds a Replayer for the pool described by meta, whose Slot0 is the
// price the engine pool starts at.
func New(cfg Config, meta model.V3PoolMeta, decoder dex.Decoder, events storage.EventSink, errs storage.ErrorSink, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}
	return &Replayer{cfg: cfg, meta: meta, decoder: decoder, events: events, errors: errs, logger: logger}
}

// Runner exposes the underlying op runner once Run has started.
func (r *Replayer) Runner() *sim.Runner { return r.runner }

// Run replays the pool's logs in chain order. Logs of other contracts and
// removed logs are ignored; logs that fail in the engine are recorded as op
// errors and the replay carries on.
func (r *Replayer) Run(ctx context.Context, logs []model.LogRecord) (Report, error) {
	if !common.IsHexAddress(r.meta.Address) {
		return Report{}, fmt.Errorf("invalid pool address %q", r.meta.Address)
	}
	logs = poolLogs(logs, common.HexToAddress(r.meta.Address))

	var start uint64
	if len(logs) > 0 {
		start = logs[0].Timestamp
	}
	runner, err := sim.NewRunner(sim.RunConfig{
		StartTime:   start,
		HookFailure: r.cfg.HookFailure,
		BatchSize:   r.cfg.BatchSize,
		RunID:       r.cfg.RunID,
	}, r.events, r.errors, r.logger.Named("sim"))
	if err != nil {
		return Report{}, err
	}
	r.runner = runner

	ref := dex.PoolRef(r.meta)
	if r.key, err = sim.PoolKey(ref, runner.TWAMMAddress()); err != nil {
		return Report{}, err
	}
	init, err := dex.InitializeOp(r.meta, start)
	if err != nil {
		return Report{}, err
	}
	if err := runner.Apply(0, init, nil); err != nil {
		return Report{}, fmt.Errorf("seed pool: %w", err)
	}

	report := Report{RunID: runner.RunID(), Pool: r.meta.Address, Logs: len(logs)}
	for i, log := range logs {
		if i%int(r.cfg.BatchSize) == 0 && i > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			default:
			}
			if err := runner.Flush(); err != nil {
				return report, err
			}
		}

		if !r.decoder.CanDecode(log.Topic0()) {
			report.Skipped++
			continue
		}
		ev, err := r.decoder.Decode(log)
		if err != nil {
			r.logger.Warn("decode failed", zap.Uint64("block_number", log.BlockNumber), zap.Uint64("log_index", log.LogIndex), zap.Error(err))
			report.Skipped++
			continue
		}
		report.Decoded++

		op, ok := dex.ToOp(ev, ref)
		if !ok {
			report.Skipped++
			continue
		}
		if err := runner.Apply(i+1, op, ev.Source); err != nil {
			report.Failed++
			continue
		}
		report.Applied++

		if ev.Name == model.V3Swap {
			if err := r.checkSwap(&report, ev); err != nil {
				return report, err
			}
		}
	}
	if err := runner.Flush(); err != nil {
		return report, err
	}

	st, err := runner.Engine().Pool(r.key)
	if err != nil {
		return report, err
	}
	report.FinalTick = st.Tick
	report.FinalSqrtPriceX96 = st.SqrtRatio.ToX96().String()
	report.Liquidity = st.Liquidity.String()
	report.Reserve0 = st.Reserves[0].String()
	report.Reserve1 = st.Reserves[1].String()

	r.logger.Info("replay complete",
		zap.Int("applied", report.Applied),
		zap.Int("failed", report.Failed),
		zap.Int("tick_mismatches", report.TickMismatches),
		zap.Int32("max_tick_drift", report.MaxTickDrift),
	)
	return report, nil
}

func (r *Replayer) checkSwap(report *Report, ev *model.V3Event) error {
	st, err := r.runner.Engine().Pool(r.key)
	if err != nil {
		return err
	}
	report.SwapsChecked++
	tick := ev.Tick
	report.ChainTick = &tick
	report.ChainSqrtPriceX96 = ev.SqrtPriceX96.String()

	drift := st.Tick - ev.Tick
	if drift < 0 {
		drift = -drift
	}
	if drift == 0 {
		return nil
	}
	report.TickMismatches++
	if drift > report.MaxTickDrift {
		report.MaxTickDrift = drift
	}
	r.logger.Debug("tick drift",
		zap.Uint64("block_number", ev.Source.BlockNumber),
		zap.Int32("engine_tick", st.Tick),
		zap.Int32("chain_tick", ev.Tick),
	)
	return nil
}

// CheckBalances fills the report with the pool's token balances at block,
// for comparison against the engine's reserves. Only a replay from the
// pool's first log is expected to match.
func CheckBalances(ctx context.Context, caller dex.ContractCaller, meta model.V3PoolMeta, block uint64, report *Report) error {
	pool := common.HexToAddress(meta.Address)
	balances := [2]*big.Int{}
	for i, token := range []string{meta.Token0, meta.Token1} {
		b, err := dex.FetchBalance(ctx, caller, common.HexToAddress(token), pool, block)
		if err != nil {
			return fmt.Errorf("balance of token%d: %w", i, err)
		}
		balances[i] = b
	}
	report.ChainBalance0 = balances[0].String()
	report.ChainBalance1 = balances[1].String()
	return nil
}
