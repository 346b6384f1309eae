package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"localex/config"
)

// StoreState captures the subset of state manager capabilities required by the
// parameter helpers.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Timers groups the venue's lifecycle windows, all in seconds.
type Timers struct {
	OfferTTL     int64 `json:"offerTtl"`
	FiatWindow   int64 `json:"fiatWindow"`
	DisputeDelay int64 `json:"disputeDelay"`
}

// IncentivesSchedule configures the trading-incentives distribution.
type IncentivesSchedule struct {
	StartTime     int64    `json:"startTime"`
	PeriodSeconds int64    `json:"periodSeconds"`
	PeriodBudget  *big.Int `json:"periodBudget"`
	RewardDenom   string   `json:"rewardDenom"`
	Treasury      [20]byte `json:"treasury"`
}

// Store provides typed accessors for operator-controlled parameters.
type Store struct {
	state StoreState
}

// NewStore constructs a parameter store wrapper using the supplied state
// backend.
func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

func (s *Store) setJSON(key string, v interface{}) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("params: encode %s: %w", key, err)
	}
	return state.ParamStoreSet(key, encoded)
}

func (s *Store) getJSON(key string, out interface{}) (bool, error) {
	state, err := s.withState()
	if err != nil {
		return false, err
	}
	raw, ok, err := state.ParamStoreGet(key)
	if err != nil {
		return false, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("params: decode %s: %w", key, err)
	}
	return true, nil
}

// SetPauses persists the pause configuration under the canonical key.
func (s *Store) SetPauses(pauses config.Pauses) error {
	return s.setJSON(KeyPauses, pauses)
}

// Pauses loads the persisted pause configuration. When unset, a zero-value
// configuration is returned.
func (s *Store) Pauses() (config.Pauses, error) {
	var pauses config.Pauses
	if _, err := s.getJSON(KeyPauses, &pauses); err != nil {
		return config.Pauses{}, err
	}
	return pauses, nil
}

// SetTimers persists the lifecycle windows.
func (s *Store) SetTimers(timers Timers) error {
	return s.setJSON(KeyTimers, timers)
}

// Timers loads the lifecycle windows, falling back to the compiled defaults
// when unset.
func (s *Store) Timers() (Timers, error) {
	timers := Timers{
		OfferTTL:     config.DefaultOfferTTLSeconds,
		FiatWindow:   config.DefaultFiatWindowSeconds,
		DisputeDelay: config.DefaultDisputeDelaySeconds,
	}
	if _, err := s.getJSON(KeyTimers, &timers); err != nil {
		return Timers{}, err
	}
	return timers, nil
}

// SetIncentives persists the incentives schedule.
func (s *Store) SetIncentives(schedule IncentivesSchedule) error {
	return s.setJSON(KeyIncentives, schedule)
}

// Incentives loads the incentives schedule if configured.
func (s *Store) Incentives() (IncentivesSchedule, bool, error) {
	var schedule IncentivesSchedule
	ok, err := s.getJSON(KeyIncentives, &schedule)
	if err != nil {
		return IncentivesSchedule{}, false, err
	}
	return schedule, ok, nil
}

func tradingLimitKey(denom string) string {
	return fmt.Sprintf(keyTradingLimitFmt, strings.ToUpper(strings.TrimSpace(denom)))
}

// SetTradingLimit persists the per-denom cap on a single trade's crypto leg.
// A denom is tradable on the venue iff a limit is configured for it.
func (s *Store) SetTradingLimit(denom string, limit *big.Int) error {
	if limit == nil || limit.Sign() <= 0 {
		return fmt.Errorf("params: trading limit for %s must be positive", denom)
	}
	return s.setJSON(tradingLimitKey(denom), limit)
}

// TradingLimit returns the configured cap for the denom. The boolean reports
// whether the denom is configured at all.
func (s *Store) TradingLimit(denom string) (*big.Int, bool, error) {
	limit := new(big.Int)
	ok, err := s.getJSON(tradingLimitKey(denom), limit)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return limit, true, nil
}
