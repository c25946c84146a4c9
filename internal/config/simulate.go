package config

import (
	"github.com/spf13/pflag"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	In                string `validate:"required"`
	Out               string `validate:"required"`
	Errors            string `validate:"required"`
	Checkpoint        string
	CheckpointEnabled bool
	BatchSize         uint64 `validate:"min=1"`
	StartTime         uint64
	HookFailure       string `validate:"oneof=isolate abort"`
	TWAMMAddress      string `validate:"omitempty,eth_addr"`
	PGDSN             string
	LogLevel          string `validate:"oneof=debug info warn error"`
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"out":                "./data/events.jsonl",
		"errors":             "./data/op_errors.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": false,
		"batch-size":         uint64(1000),
		"hook-failure":       "isolate",
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		In:                v.GetString("in"),
		Out:               v.GetString("out"),
		Errors:            v.GetString("errors"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		BatchSize:         v.GetUint64("batch-size"),
		StartTime:         v.GetUint64("start-time"),
		HookFailure:       v.GetString("hook-failure"),
		TWAMMAddress:      v.GetString("twamm-address"),
		PGDSN:             v.GetString("pg-dsn"),
		LogLevel:          v.GetString("log-level"),
	}
	return cfg, check(cfg)
}
