package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"localex/config"
	"localex/core/events"
	"localex/core/state"
	coretypes "localex/core/types"
	"localex/crypto"
	"localex/native/incentives"
	"localex/native/offer"
	"localex/native/params"
	"localex/native/trade"
	"localex/observability/logging"
	"localex/rpc"
	"localex/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LOCALEX_ENV"))
	logger := logging.Setup("localexd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	store := params.NewStore(manager)
	if err := seedParams(store, cfg); err != nil {
		logger.Error("failed to seed parameters", slog.Any("error", err))
		os.Exit(1)
	}

	var operator [20]byte
	if raw := strings.TrimSpace(cfg.OperatorAddress); raw != "" {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			logger.Error("invalid operator address", slog.Any("error", err))
			os.Exit(1)
		}
		operator = addr.Array()
	} else {
		logger.Warn("no operator address configured, arbitrator registry is locked")
	}

	emitter := &slogEmitter{logger: logger.With("component", "events")}

	offers := offer.NewEngine()
	offers.SetState(manager)
	offers.SetParams(store)
	offers.SetPauses(cfg.Pauses)
	offers.SetEmitter(emitter)

	trades := trade.NewEngine(offers)
	trades.SetState(manager)
	trades.SetParams(store)
	trades.SetPauses(cfg.Pauses)
	trades.SetOperator(operator)
	trades.SetEmitter(emitter)

	inc := incentives.NewEngine()
	inc.SetState(manager)
	inc.SetParams(store)
	inc.SetPauses(cfg.Pauses)
	inc.SetEmitter(emitter)
	trades.SetVolumeRecorder(inc)

	server := rpc.NewServer(offers, trades, inc, manager, logger)
	logger.Info("localexd starting",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("data", cfg.DataDir))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// seedParams pushes the operator configuration into the parameter store so
// engines observe one consistent source at runtime.
func seedParams(store *params.Store, cfg *config.Config) error {
	if err := store.SetTimers(params.Timers{
		OfferTTL:     cfg.OfferTTLSeconds,
		FiatWindow:   cfg.FiatWindowSeconds,
		DisputeDelay: cfg.DisputeDelaySeconds,
	}); err != nil {
		return err
	}
	if err := store.SetPauses(cfg.Pauses); err != nil {
		return err
	}
	for denom, raw := range cfg.TradingLimits {
		limit, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
		if !ok {
			return fmt.Errorf("invalid trading limit for %s: %q", denom, raw)
		}
		if err := store.SetTradingLimit(denom, limit); err != nil {
			return err
		}
	}
	if cfg.Incentives.PeriodSeconds > 0 && strings.TrimSpace(cfg.Incentives.PeriodBudget) != "" {
		budget, ok := new(big.Int).SetString(strings.TrimSpace(cfg.Incentives.PeriodBudget), 10)
		if !ok {
			return fmt.Errorf("invalid incentives budget: %q", cfg.Incentives.PeriodBudget)
		}
		treasury, err := crypto.DecodeAddress(strings.TrimSpace(cfg.Incentives.TreasuryAddress))
		if err != nil {
			return fmt.Errorf("invalid incentives treasury: %w", err)
		}
		if err := store.SetIncentives(params.IncentivesSchedule{
			StartTime:     cfg.Incentives.StartTime,
			PeriodSeconds: cfg.Incentives.PeriodSeconds,
			PeriodBudget:  budget,
			RewardDenom:   strings.ToUpper(strings.TrimSpace(cfg.Incentives.RewardDenom)),
			Treasury:      treasury.Array(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// slogEmitter logs engine events as structured records.
type slogEmitter struct {
	logger *slog.Logger
}

func (e *slogEmitter) Emit(evt events.Event) {
	if e == nil || e.logger == nil || evt == nil {
		return
	}
	attrs := []any{slog.String("event", evt.EventType())}
	if carrier, ok := evt.(interface{ Event() *coretypes.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			for k, v := range payload.Attributes {
				attrs = append(attrs, slog.String(k, v))
			}
		}
	}
	e.logger.Info("engine event", attrs...)
}
