// Package incentives accrues settled trade volume into fixed periods and pays
// pro-rata rewards from the venue treasury for completed periods.
package incentives

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
	"time"

	"localex/core/events"
	"localex/core/types"
	nativecommon "localex/native/common"
	"localex/native/params"
)

const moduleName = "incentives"

var (
	errNilState  = errors.New("incentives engine: state not configured")
	errNilParams = errors.New("incentives engine: params not configured")

	// ErrDistributionNotStarted rejects claims before the program start.
	ErrDistributionNotStarted = errors.New("incentives: distribution has not started")
	// ErrClaimInvalidPeriod rejects claims for the current or a future period.
	ErrClaimInvalidPeriod = errors.New("incentives: period is not claimable yet")
	// ErrAlreadyClaimed rejects a second claim for the same period.
	ErrAlreadyClaimed = errors.New("incentives: reward already claimed for period")
	// ErrNothingToClaim rejects claims from addresses with no volume in the
	// period.
	ErrNothingToClaim = errors.New("incentives: no volume recorded for claimant")
)

// Period aggregates the venue volume for one distribution window. Address
// keys are hex-encoded for stable JSON round-trips.
type Period struct {
	Index       uint64              `json:"index"`
	TotalVolume *big.Int            `json:"totalVolume"`
	Volumes     map[string]*big.Int `json:"volumes"`
	Claimed     map[string]bool     `json:"claimed"`
}

// Clone returns a deep copy of the period record.
func (p *Period) Clone() *Period {
	if p == nil {
		return nil
	}
	clone := &Period{Index: p.Index, TotalVolume: big.NewInt(0)}
	if p.TotalVolume != nil {
		clone.TotalVolume = new(big.Int).Set(p.TotalVolume)
	}
	clone.Volumes = make(map[string]*big.Int, len(p.Volumes))
	for k, v := range p.Volumes {
		clone.Volumes[k] = new(big.Int).Set(v)
	}
	clone.Claimed = make(map[string]bool, len(p.Claimed))
	for k, v := range p.Claimed {
		clone.Claimed[k] = v
	}
	return clone
}

type engineState interface {
	IncentivesPeriodPut(*Period) error
	IncentivesPeriodGet(index uint64) (*Period, bool)
	BalanceTransfer(from, to [20]byte, denom string, amount *big.Int) error
}

const EventTypeRewardClaimed = "incentives.claimed"

type incentivesEvent struct {
	evt *types.Event
}

func (e incentivesEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e incentivesEvent) Event() *types.Event { return e.evt }

// Engine tracks per-period trading volume and settles reward claims.
type Engine struct {
	state   engineState
	params  *params.Store
	emitter events.Emitter
	nowFn   func() int64
	pauses  nativecommon.PauseView
}

// NewEngine creates an incentives engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetParams configures the parameter store holding the schedule.
func (e *Engine) SetParams(store *params.Store) { e.params = store }

// SetPauses configures the operator pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.params == nil:
		return errNilParams
	}
	return nil
}

func (e *Engine) schedule() (params.IncentivesSchedule, bool, error) {
	schedule, ok, err := e.params.Incentives()
	if err != nil {
		return params.IncentivesSchedule{}, false, err
	}
	if !ok || schedule.PeriodSeconds <= 0 || schedule.PeriodBudget == nil || schedule.PeriodBudget.Sign() <= 0 {
		return params.IncentivesSchedule{}, false, nil
	}
	return schedule, true, nil
}

func periodIndex(schedule params.IncentivesSchedule, at int64) (uint64, bool) {
	if at < schedule.StartTime {
		return 0, false
	}
	return uint64((at - schedule.StartTime) / schedule.PeriodSeconds), true
}

// CurrentPeriod returns the period index containing now. The boolean reports
// whether the program has started.
func (e *Engine) CurrentPeriod(now int64) (uint64, bool, error) {
	if err := e.ready(); err != nil {
		return 0, false, err
	}
	schedule, ok, err := e.schedule()
	if err != nil || !ok {
		return 0, false, err
	}
	index, started := periodIndex(schedule, now)
	return index, started, nil
}

// RecordVolume accrues a settled trade leg into the period containing the
// settlement time. Volume outside the program window is discarded.
func (e *Engine) RecordVolume(addr [20]byte, amount *big.Int, at int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	schedule, ok, err := e.schedule()
	if err != nil || !ok {
		return err
	}
	index, started := periodIndex(schedule, at)
	if !started {
		return nil
	}
	period, found := e.state.IncentivesPeriodGet(index)
	if !found {
		period = &Period{
			Index:       index,
			TotalVolume: big.NewInt(0),
			Volumes:     make(map[string]*big.Int),
			Claimed:     make(map[string]bool),
		}
	}
	key := hex.EncodeToString(addr[:])
	current, ok := period.Volumes[key]
	if !ok {
		current = big.NewInt(0)
	}
	period.Volumes[key] = new(big.Int).Add(current, amount)
	period.TotalVolume = new(big.Int).Add(period.TotalVolume, amount)
	return e.state.IncentivesPeriodPut(period)
}

// Claim pays the caller's pro-rata share of the period budget from the
// treasury. Only completed periods are claimable, once per address.
func (e *Engine) Claim(caller [20]byte, periodIdx uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	schedule, ok, err := e.schedule()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDistributionNotStarted
	}
	current, started := periodIndex(schedule, e.now())
	if !started {
		return nil, ErrDistributionNotStarted
	}
	if periodIdx >= current {
		return nil, ErrClaimInvalidPeriod
	}
	period, found := e.state.IncentivesPeriodGet(periodIdx)
	if !found {
		return nil, ErrNothingToClaim
	}
	key := hex.EncodeToString(caller[:])
	volume, ok := period.Volumes[key]
	if !ok || volume.Sign() <= 0 {
		return nil, ErrNothingToClaim
	}
	if period.Claimed[key] {
		return nil, ErrAlreadyClaimed
	}
	if period.TotalVolume == nil || period.TotalVolume.Sign() <= 0 {
		return nil, ErrNothingToClaim
	}
	reward := new(big.Int).Mul(schedule.PeriodBudget, volume)
	reward.Quo(reward, period.TotalVolume)
	if reward.Sign() > 0 {
		if err := e.state.BalanceTransfer(schedule.Treasury, caller, schedule.RewardDenom, reward); err != nil {
			return nil, err
		}
	}
	period.Claimed[key] = true
	if err := e.state.IncentivesPeriodPut(period); err != nil {
		return nil, err
	}
	e.emitClaim(caller, periodIdx, schedule.RewardDenom, reward)
	return reward, nil
}

// Period returns a copy of the accrual record for a period index.
func (e *Engine) Period(index uint64) (*Period, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	period, ok := e.state.IncentivesPeriodGet(index)
	if !ok {
		return nil, false, nil
	}
	return period.Clone(), true, nil
}

func (e *Engine) emitClaim(caller [20]byte, periodIdx uint64, denom string, reward *big.Int) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(incentivesEvent{evt: &types.Event{
		Type: EventTypeRewardClaimed,
		Attributes: map[string]string{
			"claimant": hex.EncodeToString(caller[:]),
			"period":   strconv.FormatUint(periodIdx, 10),
			"denom":    denom,
			"reward":   reward.String(),
		},
	}})
}
