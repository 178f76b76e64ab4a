// Package config loads gateway configuration from YAML with environment
// overrides. The loaded values are plain data; they are threaded explicitly
// through constructors rather than read ambiently.
package config

import (
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/paygrid-dev/paygate/types"
	"github.com/paygrid-dev/paygate/utils"
)

// Environment variable names. Each overrides the corresponding YAML field
// when set.
const (
	EnvPayTo         = "PAYGATE_PAY_TO"
	EnvDefaultPrice  = "PAYGATE_DEFAULT_PRICE"
	EnvMode          = "PAYGATE_MODE"
	EnvNetwork       = "PAYGATE_NETWORK"
	EnvLogLevel      = "PAYGATE_LOG_LEVEL"
	EnvEnableMetrics = "PAYGATE_ENABLE_METRICS"
)

// fileConfig mirrors GatewayConfig for YAML decoding. Prices are strings
// on disk because the decimal type has no YAML support.
type fileConfig struct {
	PayTo                string `yaml:"payTo"`
	DefaultPrice         string `yaml:"defaultPrice"`
	Mode                 string `yaml:"mode"`
	Network              string `yaml:"network"`
	ProofValiditySeconds int64  `yaml:"proofValiditySeconds"`
	ClockSkewSeconds     int64  `yaml:"clockSkewSeconds"`
	LogLevel             string `yaml:"logLevel"`
	EnableMetrics        bool   `yaml:"enableMetrics"`
}

// Load reads a YAML file, applies environment overrides, normalizes
// defaults and validates the result.
func Load(path string) (*types.GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewGateError(types.ErrConfigInvalid, "read config: %v", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, types.NewGateError(types.ErrConfigInvalid, "parse config: %v", err)
	}

	cfg := types.GatewayConfig{
		PayTo:                fc.PayTo,
		Mode:                 types.VerifyMode(fc.Mode),
		Network:              types.Network(fc.Network),
		ProofValiditySeconds: fc.ProofValiditySeconds,
		ClockSkewSeconds:     fc.ClockSkewSeconds,
		LogLevel:             fc.LogLevel,
		EnableMetrics:        fc.EnableMetrics,
	}
	if fc.DefaultPrice != "" {
		d, err := decimal.NewFromString(fc.DefaultPrice)
		if err != nil {
			return nil, types.NewGateError(types.ErrConfigInvalid, "invalid defaultPrice: %v", err)
		}
		cfg.DefaultPrice = d
	}

	applyEnv(&cfg)
	return finish(&cfg)
}

// FromEnv builds a configuration from environment variables alone.
func FromEnv() (*types.GatewayConfig, error) {
	var cfg types.GatewayConfig
	applyEnv(&cfg)
	return finish(&cfg)
}

func applyEnv(cfg *types.GatewayConfig) {
	if v := os.Getenv(EnvPayTo); v != "" {
		cfg.PayTo = v
	}
	if v := os.Getenv(EnvDefaultPrice); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			cfg.DefaultPrice = d
		}
	}
	if v := os.Getenv(EnvMode); v != "" {
		cfg.Mode = types.VerifyMode(v)
	}
	if v := os.Getenv(EnvNetwork); v != "" {
		cfg.Network = types.Network(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvEnableMetrics); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnableMetrics = b
		}
	}
}

func finish(cfg *types.GatewayConfig) (*types.GatewayConfig, error) {
	cfg.Normalize()
	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, types.NewGateError(types.ErrConfigInvalid, "invalid config: %v", err)
	}
	if !utils.ValidateAddress(cfg.PayTo) {
		return nil, types.NewGateError(types.ErrConfigInvalid, "payTo is not a valid address: %s", cfg.PayTo)
	}
	return cfg, nil
}
