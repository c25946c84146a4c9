package sim

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/core"
	"liquidityEngine/internal/model"
)

type memSink struct {
	records []model.EventRecord
	errs    []model.OpError
}

func (m *memSink) PutEventBatch(records []model.EventRecord) error {
	m.records = append(m.records, records...)
	return nil
}

func (m *memSink) PutOpErrors(errs []model.OpError) error {
	m.errs = append(m.errs, errs...)
	return nil
}

func (m *memSink) names() []string {
	out := make([]string, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.EventName)
	}
	return out
}

const t0 = 16 * 65536

const concentratedScenario = `
ops:
  - kind: initialize
    pool: &pool
      token0: "0x0000000000000000000000000000000000000a01"
      token1: "0x0000000000000000000000000000000000000b02"
      fee_pips: 3000
      tick_spacing: 60
    tick: 0
  - kind: modify_position
    caller: "0x00000000000000000000000000000000000000c1"
    pool: *pool
    salt: lp
    lower: -600
    upper: 600
    liquidity_delta: "1000000000000000000"
  - kind: swap
    caller: "0x00000000000000000000000000000000000000d1"
    pool: *pool
    amount: "1000000000000000"
  - kind: collect_fees
    caller: "0x00000000000000000000000000000000000000c1"
    pool: *pool
    salt: lp
    lower: -600
    upper: 600
`

func loadYAML(t *testing.T, doc string) []model.Op {
	t.Helper()
	ops, err := ParseYAML([]byte(doc))
	require.NoError(t, err)
	return ops
}

func newTestRunner(t *testing.T, cfg RunConfig) (*Runner, *memSink) {
	t.Helper()
	sink := &memSink{}
	if cfg.StartTime == 0 {
		cfg.StartTime = t0
	}
	r, err := NewRunner(cfg, sink, sink, nil)
	require.NoError(t, err)
	return r, sink
}

func TestRunnerAppliesScenario(t *testing.T) {
	r, sink := newTestRunner(t, RunConfig{})
	ops := loadYAML(t, concentratedScenario)
	require.Len(t, ops, 4)

	summary, err := r.Run(context.Background(), ops)
	require.NoError(t, err)
	require.Equal(t, 4, summary.Applied)
	require.Zero(t, summary.Failed)
	require.Empty(t, sink.errs)
	require.Equal(t, []string{"PoolInitialized", "PositionUpdated", "Swapped", "FeesCollected"}, sink.names())
	require.Equal(t, len(sink.records), summary.Events)

	swap := sink.records[2]
	require.Equal(t, 2, swap.OpIndex)
	require.Equal(t, uint64(t0), swap.Time)
	require.Equal(t, r.RunID(), swap.RunID)
	data := swap.Decoded.(model.SwapData)
	require.Equal(t, "1000000000000000", data.Delta0)
	require.Equal(t, "-", data.Delta1[:1])
	require.False(t, data.FeeToken1)

	fees := sink.records[3].Decoded.(model.FeesData)
	paid, ok := new(big.Int).SetString(data.Fee, 10)
	require.True(t, ok)
	collected, ok := new(big.Int).SetString(fees.Amount0, 10)
	require.True(t, ok)
	// The only position in range earns the whole fee, less division dust.
	require.True(t, collected.Sign() > 0)
	require.True(t, collected.Cmp(paid) <= 0)
	require.Equal(t, "0", fees.Amount1)

	pools := r.Pools()
	require.Len(t, pools, 1)
	require.Equal(t, swap.PoolID, pools[0].PoolID)
	require.Equal(t, uint64(t0), pools[0].FirstSeen)
}

func TestRunnerRecordsFailuresAndContinues(t *testing.T) {
	r, sink := newTestRunner(t, RunConfig{})
	ops := loadYAML(t, concentratedScenario)
	// Swap before the pool exists, then run the scenario as usual.
	ops = append([]model.Op{ops[2]}, ops...)

	summary, err := r.Run(context.Background(), ops)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 4, summary.Applied)
	require.Len(t, sink.errs, 1)
	require.Equal(t, 0, sink.errs[0].Index)
	require.Equal(t, model.OpSwap, sink.errs[0].Kind)
	require.Contains(t, sink.errs[0].Error, core.ErrPoolNotInitialized.Error())
	require.Equal(t, r.RunID(), sink.errs[0].RunID)
}

func TestRunnerRejectsTimeTravel(t *testing.T) {
	r, sink := newTestRunner(t, RunConfig{})
	ops := loadYAML(t, concentratedScenario)
	ops[1].At = t0 + 100
	ops[2].At = t0 + 50

	summary, err := r.Run(context.Background(), ops)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)
	require.Contains(t, sink.errs[0].Error, ErrTimeBackwards.Error())
	require.Equal(t, uint64(t0+100), r.Clock().Now())
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	ops := loadYAML(t, concentratedScenario)
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	full, fullSink := newTestRunner(t, RunConfig{})
	_, err := full.Run(context.Background(), ops)
	require.NoError(t, err)

	store := NewCheckpointStore(path, true)
	require.NoError(t, store.Save(Checkpoint{RunID: "earlier-run", NextOp: 2, InputDigest: "digest"}))

	resumed, sink := newTestRunner(t, RunConfig{
		BatchSize:         1,
		CheckpointPath:    path,
		CheckpointEnabled: true,
		InputDigest:       "digest",
	})
	summary, err := resumed.Run(context.Background(), ops)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Resumed)
	require.Equal(t, 2, summary.Applied)
	require.Equal(t, "earlier-run", summary.RunID)
	require.Equal(t, []string{"Swapped", "FeesCollected"}, sink.names())
	require.Equal(t, fullSink.records[2].Decoded, sink.records[0].Decoded)
	require.Equal(t, fullSink.records[3].Decoded, sink.records[1].Decoded)

	cp, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(4), cp.NextOp)
	require.Equal(t, "earlier-run", cp.RunID)

	changed, _ := newTestRunner(t, RunConfig{CheckpointPath: path, CheckpointEnabled: true, InputDigest: "other"})
	_, err = changed.Run(context.Background(), ops)
	require.ErrorIs(t, err, ErrInputChanged)
}

func TestRunnerVirtualOrders(t *testing.T) {
	scenario := `
- kind: initialize
  pool: &pool
    token0: "0x0000000000000000000000000000000000000a01"
    token1: "0x0000000000000000000000000000000000000b02"
    fee: 18014398509481984
    tick_spacing: 0
    twamm: true
- kind: modify_position
  caller: "0x00000000000000000000000000000000000000c1"
  pool: *pool
  lower: -887272
  upper: 887272
  liquidity_delta: "1000000000000000000000"
- kind: update_order
  caller: "0x00000000000000000000000000000000000000e1"
  pool: *pool
  start: 1048576
  end: 1052672
  sell_amount: "4096000000"
- kind: advance
  seconds: 4096
- kind: collect_proceeds
  caller: "0x00000000000000000000000000000000000000e1"
  pool: *pool
  start: 1048576
  end: 1052672
`
	r, sink := newTestRunner(t, RunConfig{})
	summary, err := r.Run(context.Background(), loadYAML(t, scenario))
	require.NoError(t, err)
	require.Empty(t, sink.errs)
	require.Equal(t, 5, summary.Applied)

	names := sink.names()
	require.Equal(t, "OrderUpdated", names[2])
	require.Equal(t, "ProceedsCollected", names[len(names)-1])
	require.Contains(t, names, "VirtualOrdersExecuted")
	require.Contains(t, names, "Swapped")

	order := sink.records[2].Decoded.(model.OrderData)
	require.Equal(t, "4096000000", order.Amount)
	require.NotEmpty(t, sink.records[2].PoolMeta.Extension)

	proceeds := sink.records[len(names)-1].Decoded.(model.ProceedsData)
	got, ok := new(big.Int).SetString(proceeds.Amount, 10)
	require.True(t, ok)
	require.True(t, got.Sign() > 0)
	// Selling token0 at a price near 1 with a 0.1% fee returns a little less.
	require.True(t, got.Cmp(big.NewInt(4096000000)) < 0)
	require.Equal(t, "0", proceeds.Refund)
}

func TestLoadScenarioJSONLAndDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ops.jsonl")
	body := `{"kind":"advance","seconds":10}

{"kind":"settle","pool":{"token0":"0x0000000000000000000000000000000000000a01","token1":"0x0000000000000000000000000000000000000b02","twamm":true}}
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	require.Len(t, sc.Ops, 2)
	require.Equal(t, Digest([]byte(body)), sc.Digest)
	require.Len(t, sc.Digest, 64)

	require.NoError(t, os.WriteFile(path, []byte(body+`{"kind":"teleport"}`+"\n"), 0o644))
	_, err = LoadScenario(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"kind":"swap","pool":{"token0":"nope"}}`), 0o644))
	_, err = LoadScenario(path)
	require.Error(t, err)
}

func TestFeeFromPips(t *testing.T) {
	require.Equal(t, uint64(0), FeeFromPips(0))
	// 0.3% of 2^64, rounded down.
	require.Equal(t, uint64(55340232221128654), FeeFromPips(3000))
	require.Equal(t, uint64(18446744073709), FeeFromPips(1))
}
