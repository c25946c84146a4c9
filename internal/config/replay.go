package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for the replay command. Without an RPC
// endpoint the pool's identity and starting price must be given.
type ReplayConfig struct {
	RPCURL        string
	In            string `validate:"required_without=RPCURL"`
	Pool          string `validate:"required,eth_addr"`
	FromBlock     uint64
	ToBlock       uint64
	BatchSize     uint64 `validate:"min=1"`
	MaxRetries    int    `validate:"min=0"`
	RetryBackoff  time.Duration
	Out           string `validate:"required"`
	Errors        string `validate:"required"`
	Report        string
	Topic0Map     map[string]string
	CheckBalances bool
	HookFailure   string `validate:"oneof=isolate abort"`
	LogLevel      string `validate:"oneof=debug info warn error"`

	Token0       string `validate:"omitempty,eth_addr"`
	Token1       string `validate:"omitempty,eth_addr"`
	FeePips      uint32 `validate:"lt=1000000"`
	TickSpacing  int32  `validate:"min=0"`
	SqrtPriceX96 string `validate:"omitempty,numeric"`
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"out":           "./data/replay_events.jsonl",
		"errors":        "./data/replay_errors.jsonl",
		"batch-size":    uint64(2000),
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"hook-failure":  "isolate",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	cfg := ReplayConfig{
		RPCURL:        v.GetString("rpc"),
		In:            v.GetString("in"),
		Pool:          v.GetString("pool"),
		FromBlock:     v.GetUint64("from"),
		ToBlock:       v.GetUint64("to"),
		BatchSize:     v.GetUint64("batch-size"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		Out:           v.GetString("out"),
		Errors:        v.GetString("errors"),
		Report:        v.GetString("report"),
		Topic0Map:     getStringMap(v, "topic0-map"),
		CheckBalances: v.GetBool("check-balances"),
		HookFailure:   v.GetString("hook-failure"),
		LogLevel:      v.GetString("log-level"),
		Token0:        v.GetString("token0"),
		Token1:        v.GetString("token1"),
		FeePips:       v.GetUint32("fee"),
		TickSpacing:   v.GetInt32("tick-spacing"),
		SqrtPriceX96:  v.GetString("sqrt-price-x96"),
	}
	if err := check(cfg); err != nil {
		return cfg, err
	}
	if cfg.RPCURL == "" && (cfg.Token0 == "" || cfg.Token1 == "" || cfg.TickSpacing == 0 || cfg.SqrtPriceX96 == "") {
		return cfg, fmt.Errorf("invalid config: without rpc, token0, token1, tick-spacing and sqrt-price-x96 are required")
	}
	if cfg.CheckBalances && cfg.RPCURL == "" {
		return cfg, fmt.Errorf("invalid config: check-balances needs rpc")
	}
	return cfg, nil
}
