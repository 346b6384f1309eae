package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Defaults applied when the config file is absent or fields are unset.
const (
	DefaultRPCAddress          = ":8661"
	DefaultDataDir             = "./localex-data"
	DefaultNetworkName         = "localex-local"
	DefaultOfferTTLSeconds     = 1200
	DefaultFiatWindowSeconds   = 7200
	DefaultDisputeDelaySeconds = 3600
)

// Pauses is the operator circuit breaker for individual modules.
type Pauses struct {
	Offer      bool `toml:"Offer" json:"offer"`
	Trade      bool `toml:"Trade" json:"trade"`
	Incentives bool `toml:"Incentives" json:"incentives"`
}

// IsPaused implements the pause view consumed by the engine guards.
func (p Pauses) IsPaused(module string) bool {
	switch strings.ToLower(strings.TrimSpace(module)) {
	case "offer":
		return p.Offer
	case "trade":
		return p.Trade
	case "incentives":
		return p.Incentives
	default:
		return false
	}
}

// Incentives configures the trading-incentives distribution schedule.
type Incentives struct {
	StartTime       int64  `toml:"StartTime" json:"startTime"`
	PeriodSeconds   int64  `toml:"PeriodSeconds" json:"periodSeconds"`
	PeriodBudget    string `toml:"PeriodBudget" json:"periodBudget"`
	RewardDenom     string `toml:"RewardDenom" json:"rewardDenom"`
	TreasuryAddress string `toml:"TreasuryAddress" json:"treasuryAddress"`
}

// Config is the daemon configuration loaded from TOML.
type Config struct {
	RPCAddress          string            `toml:"RPCAddress"`
	DataDir             string            `toml:"DataDir"`
	NetworkName         string            `toml:"NetworkName"`
	OperatorAddress     string            `toml:"OperatorAddress"`
	OfferTTLSeconds     int64             `toml:"OfferTTLSeconds"`
	FiatWindowSeconds   int64             `toml:"FiatWindowSeconds"`
	DisputeDelaySeconds int64             `toml:"DisputeDelaySeconds"`
	TradingLimits       map[string]string `toml:"TradingLimits"`
	Incentives          Incentives        `toml:"Incentives"`
	Pauses              Pauses            `toml:"Pauses"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = DefaultRPCAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = DefaultNetworkName
	}
	if cfg.OfferTTLSeconds <= 0 {
		cfg.OfferTTLSeconds = DefaultOfferTTLSeconds
	}
	if cfg.FiatWindowSeconds <= 0 {
		cfg.FiatWindowSeconds = DefaultFiatWindowSeconds
	}
	if cfg.DisputeDelaySeconds <= 0 {
		cfg.DisputeDelaySeconds = DefaultDisputeDelaySeconds
	}
	if cfg.TradingLimits == nil {
		cfg.TradingLimits = map[string]string{}
	}
}

// Validate checks the semantic constraints on a loaded configuration.
func (c *Config) Validate() error {
	for denom, limit := range c.TradingLimits {
		if strings.TrimSpace(denom) == "" {
			return fmt.Errorf("config: trading limit with empty denom")
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(limit), 10)
		if !ok || amount.Sign() <= 0 {
			return fmt.Errorf("config: trading limit for %s must be a positive integer, got %q", denom, limit)
		}
	}
	if c.Incentives.PeriodSeconds < 0 {
		return fmt.Errorf("config: incentives period must not be negative")
	}
	if budget := strings.TrimSpace(c.Incentives.PeriodBudget); budget != "" {
		amount, ok := new(big.Int).SetString(budget, 10)
		if !ok || amount.Sign() < 0 {
			return fmt.Errorf("config: incentives budget must be a non-negative integer, got %q", budget)
		}
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
