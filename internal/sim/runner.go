package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"liquidityEngine/internal/core"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/twamm"
)

var (
	ErrTimeBackwards = errors.New("op time is before the clock")
	ErrInputChanged  = errors.New("scenario changed since the checkpoint")
	ErrUnknownOpKind = errors.New("unknown op kind")
)

// DefaultTWAMMAddress is where the virtual order extension is registered
// unless configured otherwise.
var DefaultTWAMMAddress = common.HexToAddress("0x00000000000000000000000000000000000000a1")

// RunConfig holds runtime settings for a simulation.
type RunConfig struct {
	// StartTime seeds the manual clock.
	StartTime         uint64
	TWAMMAddress      common.Address
	HookFailure       core.HookFailurePolicy
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	InputDigest       string
	RunID             string
}

// Summary counts what a run did.
type Summary struct {
	RunID   string
	Applied int
	Failed  int
	Resumed int
	Events  int
}

// Runner applies ops to an engine with the virtual order extension attached
// and streams the committed events to a sink.
type Runner struct {
	cfg        RunConfig
	engine     *core.Core
	twamm      *twamm.Extension
	clock      *twamm.ManualClock
	events     storage.EventSink
	errors     storage.ErrorSink
	logger     *zap.Logger
	checkpoint *CheckpointStore

	runID   string
	opIndex int
	seq     int
	source  *model.SourceRef
	silent  bool
	pending []model.EventRecord
	failed  []model.OpError
	seen    map[core.PoolKey]uint64
	emitted int
}

// NewRunner builds a Runner with a fresh engine.
func NewRunner(cfg RunConfig, events storage.EventSink, errs storage.ErrorSink, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = storage.Discard{}
	}
	if errs == nil {
		errs = storage.Discard{}
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}
	if cfg.TWAMMAddress == (common.Address{}) {
		cfg.TWAMMAddress = DefaultTWAMMAddress
	}

	engine := core.New(core.Config{HookFailure: cfg.HookFailure}, logger.Named("core"))
	clock := twamm.NewManualClock(cfg.StartTime)
	ext, err := twamm.New(engine, cfg.TWAMMAddress, clock, logger.Named("twamm"))
	if err != nil {
		return nil, fmt.Errorf("register twamm: %w", err)
	}

	r := &Runner{
		cfg:        cfg,
		engine:     engine,
		twamm:      ext,
		clock:      clock,
		events:     events,
		errors:     errs,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		runID:      cfg.RunID,
		seen:       make(map[core.PoolKey]uint64),
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	engine.Subscribe(r.onCommit)
	return r, nil
}

func (r *Runner) Engine() *core.Core           { return r.engine }
func (r *Runner) TWAMM() *twamm.Extension      { return r.twamm }
func (r *Runner) Clock() *twamm.ManualClock    { return r.clock }
func (r *Runner) RunID() string                { return r.runID }
func (r *Runner) TWAMMAddress() common.Address { return r.cfg.TWAMMAddress }

// Run applies ops in checkpointed batches. A checkpoint for the same input
// resumes the run: ops before it are re-applied without output to rebuild
// the engine state.
func (r *Runner) Run(ctx context.Context, ops []model.Op) (Summary, error) {
	var resumeFrom uint64
	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return Summary{}, err
	}
	if ok {
		if !cp.Resumes(r.cfg.InputDigest) {
			return Summary{}, fmt.Errorf("checkpoint %s: %w", cp.InputDigest, ErrInputChanged)
		}
		resumeFrom = cp.NextOp
		r.runID = cp.RunID
		r.logger.Info("resume from checkpoint", zap.String("run_id", r.runID), zap.Uint64("next_op", resumeFrom))
	}

	summary := Summary{RunID: r.runID}
	if len(ops) == 0 {
		return summary, nil
	}
	spans, err := SplitRange(0, uint64(len(ops)-1), r.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	for _, span := range spans {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		for i := span.From; i <= span.To; i++ {
			if i < resumeFrom {
				r.replaySilently(int(i), ops[i])
				summary.Resumed++
				continue
			}
			if err := r.Apply(int(i), ops[i], nil); err != nil {
				summary.Failed++
				continue
			}
			summary.Applied++
		}
		if span.To < resumeFrom {
			continue
		}

		if err := r.Flush(); err != nil {
			return summary, err
		}
		if err := r.checkpoint.Save(Checkpoint{RunID: r.runID, NextOp: span.To + 1, InputDigest: r.cfg.InputDigest}); err != nil {
			return summary, err
		}
		r.logger.Info("batch complete", zap.Uint64("from", span.From), zap.Uint64("to", span.To))
	}

	summary.Events = r.emitted
	return summary, nil
}

func (r *Runner) replaySilently(index int, op model.Op) {
	r.silent = true
	defer func() { r.silent = false }()
	if err := r.apply(index, op); err != nil {
		r.logger.Debug("resumed op failed", zap.Int("op", index), zap.Error(err))
	}
}

// Apply runs one op. Failures are queued as op errors and returned; the
// engine state is unchanged by a failed op.
func (r *Runner) Apply(index int, op model.Op, source *model.SourceRef) error {
	r.source = source
	defer func() { r.source = nil }()

	err := r.apply(index, op)
	if err == nil {
		return nil
	}
	opErr := model.OpError{RunID: r.runID, Index: index, Kind: op.Kind, Error: err.Error()}
	if source != nil {
		opErr.BlockNumber = source.BlockNumber
		opErr.TxHash = source.TxHash
		opErr.LogIndex = source.LogIndex
	}
	r.failed = append(r.failed, opErr)
	r.logger.Warn("op failed", zap.Int("op", index), zap.String("kind", op.Kind), zap.Error(err))
	return err
}

// Flush hands queued events and errors to the sinks.
func (r *Runner) Flush() error {
	if err := r.events.PutEventBatch(r.pending); err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	r.emitted += len(r.pending)
	r.pending = r.pending[:0]

	if err := r.errors.PutOpErrors(r.failed); err != nil {
		return fmt.Errorf("store op errors: %w", err)
	}
	r.failed = r.failed[:0]
	return nil
}

func (r *Runner) apply(index int, op model.Op) error {
	r.opIndex = index
	if op.At > 0 {
		if op.At < r.clock.Now() {
			return fmt.Errorf("at %d, clock %d: %w", op.At, r.clock.Now(), ErrTimeBackwards)
		}
		r.clock.Set(op.At)
	}
	if op.Kind == model.OpAdvance {
		r.clock.Advance(op.Seconds)
		return nil
	}

	caller, err := parseAddress("caller", op.Caller)
	if err != nil {
		return err
	}
	key, err := PoolKey(op.Pool, r.cfg.TWAMMAddress)
	if err != nil {
		return err
	}

	switch op.Kind {
	case model.OpInitialize:
		sr, err := initialRatio(op)
		if err != nil {
			return err
		}
		if _, err := r.engine.InitializePool(caller, key, sr); err != nil {
			return err
		}
		r.seen[key] = r.clock.Now()
		return nil

	case model.OpSwap:
		amount, err := parseInt("amount", op.Amount, nil)
		if err != nil {
			return err
		}
		if amount == nil {
			return fmt.Errorf("swap without amount: %w", core.ErrInvalidRange)
		}
		limit, err := parseSqrtRatio("sqrt_ratio_limit", op.SqrtRatioLimit)
		if err != nil {
			return err
		}
		threshold, err := parseInt("threshold", op.Threshold, nil)
		if err != nil {
			return err
		}
		_, err = r.engine.Swap(caller, key, core.SwapParams{
			Amount:         amount,
			IsToken1:       op.IsToken1,
			SqrtRatioLimit: limit,
			Threshold:      threshold,
		})
		return err

	case model.OpModifyPosition:
		delta, err := parseInt("liquidity_delta", op.LiquidityDelta, nil)
		if err != nil {
			return err
		}
		if delta == nil {
			return fmt.Errorf("modify_position without liquidity_delta: %w", core.ErrInvalidRange)
		}
		_, err = r.engine.ModifyPosition(caller, key, core.PositionParams{
			Salt:           parseHash(op.Salt),
			Lower:          op.Lower,
			Upper:          op.Upper,
			LiquidityDelta: delta,
		})
		return err

	case model.OpCollectFees:
		_, err := r.engine.CollectFees(caller, key, parseHash(op.Salt), op.Lower, op.Upper)
		return err

	case model.OpUpdateOrder:
		delta, err := saleRateDelta(op, r.clock.Now())
		if err != nil {
			return err
		}
		_, err = r.twamm.UpdateSaleRate(orderKey(op, caller, key), delta)
		return err

	case model.OpCollectProceeds:
		_, err := r.twamm.CollectProceeds(orderKey(op, caller, key))
		return err

	case model.OpSettle:
		return r.twamm.Settle(key)

	default:
		return fmt.Errorf("%q: %w", op.Kind, ErrUnknownOpKind)
	}
}

func (r *Runner) onCommit(events []core.Event) {
	if r.silent {
		return
	}
	now := r.clock.Now()
	for _, ev := range events {
		r.seq++
		key := ev.PoolKey()
		r.pending = append(r.pending, model.EventRecord{
			RunID:     r.runID,
			OpIndex:   r.opIndex,
			Seq:       r.seq,
			Time:      now,
			PoolID:    key.String(),
			EventName: ev.EventName(),
			Decoded:   payload(ev),
			PoolMeta:  PoolMeta(key),
			Source:    r.source,
		})
	}
}

// Pools lists every pool the run initialized.
func (r *Runner) Pools() []model.Pool {
	out := make([]model.Pool, 0, len(r.seen))
	for key, first := range r.seen {
		meta := PoolMeta(key)
		out = append(out, model.Pool{
			RunID:       r.runID,
			PoolID:      key.String(),
			Token0:      meta.Token0,
			Token1:      meta.Token1,
			Fee:         fmt.Sprint(key.Fee),
			TickSpacing: key.TickSpacing,
			Extension:   meta.Extension,
			FirstSeen:   first,
		})
	}
	return out
}

// Snapshots captures the current state of every pool.
func (r *Runner) Snapshots(takenAt time.Time) ([]model.PoolSnapshot, error) {
	keys := r.engine.Pools()
	out := make([]model.PoolSnapshot, 0, len(keys))
	for _, key := range keys {
		st, err := r.engine.Pool(key)
		if err != nil {
			return nil, err
		}
		out = append(out, model.PoolSnapshot{
			RunID:             r.runID,
			PoolID:            key.String(),
			SqrtRatio:         st.SqrtRatio.String(),
			Tick:              st.Tick,
			Liquidity:         str(st.Liquidity),
			Reserve0:          str(st.Reserves[0]),
			Reserve1:          str(st.Reserves[1]),
			FeesPerLiquidity0: st.FeesPerLiquidity[0].ToBig().String(),
			FeesPerLiquidity1: st.FeesPerLiquidity[1].ToBig().String(),
			UnattributedFee0:  str(st.UnattributedFees[0]),
			UnattributedFee1:  str(st.UnattributedFees[1]),
			HookFaults:        st.HookFaults,
			TakenAt:           takenAt.UTC(),
		})
	}
	return out, nil
}
