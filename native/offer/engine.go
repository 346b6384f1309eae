package offer

import (
	"errors"
	"math/big"
	"time"

	"localex/core/events"
	"localex/core/types"
	nativecommon "localex/native/common"
	"localex/native/params"
	"localex/native/validation"
)

var errNilState = errors.New("offer engine: state not configured")

const moduleName = "offer"

type engineState interface {
	OfferPut(*Offer) error
	OfferGet(id uint64) (*Offer, bool)
	OfferNextID() (uint64, error)
	OffersByOwner(owner [20]byte) ([]*Offer, error)
}

type offerEvent struct {
	evt *types.Event
}

func (e offerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e offerEvent) Event() *types.Event { return e.evt }

// Engine owns the offer registry: creation, owner-driven edits and state
// transitions, and the amount validation consulted by the trade engine.
type Engine struct {
	state   engineState
	params  *params.Store
	emitter events.Emitter
	nowFn   func() int64
	pauses  nativecommon.PauseView
}

// NewEngine creates an offer engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetParams configures the parameter store consulted for trading limits.
func (e *Engine) SetParams(store *params.Store) { e.params = store }

// SetPauses configures the operator pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(offerEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// tradingLimit resolves the per-denom cap. Denoms without a configured limit
// are not tradable on the venue.
func (e *Engine) tradingLimit(denom string) (*big.Int, error) {
	if e.params == nil {
		return nil, errors.New("offer engine: params not configured")
	}
	limit, ok, err := e.params.TradingLimit(denom)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &validation.InvalidParameterError{
			Parameter: "denom",
			Message:   "no trading limit configured for " + denom,
		}
	}
	return limit, nil
}

func (e *Engine) checkBounds(denom string, rate, min, max *big.Int) error {
	if err := validation.CheckPositivePrice(rate); err != nil {
		return err
	}
	if err := validation.CheckMinMax(min, max); err != nil {
		return err
	}
	limit, err := e.tradingLimit(denom)
	if err != nil {
		return err
	}
	if max.Cmp(limit) > 0 {
		return &OfferMaxAboveTradingLimitError{
			MaxAmount:    new(big.Int).Set(max),
			TradingLimit: limit,
		}
	}
	return nil
}

// Create validates the offer terms against the venue limits and persists a new
// offer in the Active state.
func (e *Engine) Create(owner [20]byte, denom, fiat string, typ OfferType, rate, min, max *big.Int) (*Offer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	normalizedDenom, err := NormalizeDenom(denom)
	if err != nil {
		return nil, err
	}
	normalizedFiat, err := NormalizeFiat(fiat)
	if err != nil {
		return nil, err
	}
	if !typ.Valid() {
		return nil, &validation.InvalidParameterError{Parameter: "offerType"}
	}
	if err := e.checkBounds(normalizedDenom, rate, min, max); err != nil {
		return nil, err
	}
	id, err := e.state.OfferNextID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	o := &Offer{
		ID:           id,
		Owner:        owner,
		Denom:        normalizedDenom,
		FiatCurrency: normalizedFiat,
		Type:         typ,
		Rate:         new(big.Int).Set(rate),
		MinAmount:    new(big.Int).Set(min),
		MaxAmount:    new(big.Int).Set(max),
		State:        StateActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.state.OfferPut(o); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(o))
	return o.Clone(), nil
}

// Update lets the owner edit the rate and amount range of a non-archived
// offer. The new terms are revalidated against the trading limit.
func (e *Engine) Update(caller [20]byte, id uint64, rate, min, max *big.Int) (*Offer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	o, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	if err := nativecommon.RequireOwner(o.Owner, caller); err != nil {
		return nil, err
	}
	if o.State == StateArchived {
		return nil, ErrOfferArchived
	}
	if err := e.checkBounds(o.Denom, rate, min, max); err != nil {
		return nil, err
	}
	o.Rate = new(big.Int).Set(rate)
	o.MinAmount = new(big.Int).Set(min)
	o.MaxAmount = new(big.Int).Set(max)
	o.UpdatedAt = e.now()
	if err := e.state.OfferPut(o); err != nil {
		return nil, err
	}
	e.emit(NewUpdatedEvent(o))
	return o.Clone(), nil
}

// UpdateState applies an owner-requested state transition after checking it
// against the legality table.
func (e *Engine) UpdateState(caller [20]byte, id uint64, to OfferState) (*Offer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	o, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	if err := nativecommon.RequireOwner(o.Owner, caller); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, &validation.InvalidParameterError{Parameter: "state"}
	}
	if !CanTransition(o.State, to) {
		return nil, &InvalidOfferStateChangeError{From: o.State, To: to}
	}
	from := o.State
	o.State = to
	o.UpdatedAt = e.now()
	if err := e.state.OfferPut(o); err != nil {
		return nil, err
	}
	e.emit(NewStateChangedEvent(o, from))
	return o.Clone(), nil
}

// Get returns a copy of the offer or OfferNotFoundError.
func (e *Engine) Get(id uint64) (*Offer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	o, ok := e.state.OfferGet(id)
	if !ok {
		return nil, &OfferNotFoundError{OfferID: id}
	}
	return o.Clone(), nil
}

// ListByOwner returns all offers created by the owner, including archived
// ones.
func (e *Engine) ListByOwner(owner [20]byte) ([]*Offer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.OffersByOwner(owner)
}

// ValidateTradeAmount checks that a trade may be opened against the offer for
// the requested amount. The offer must be Active and the amount within its
// range.
func (e *Engine) ValidateTradeAmount(o *Offer, amount *big.Int) error {
	if o == nil {
		return errors.New("offer: nil offer")
	}
	if o.State != StateActive {
		return ErrOfferNotActive
	}
	if amount == nil {
		return &validation.InvalidParameterError{Parameter: "amount", Message: "nil amount"}
	}
	if amount.Cmp(o.MinAmount) < 0 || amount.Cmp(o.MaxAmount) > 0 {
		return &InvalidOfferAmountError{
			Amount:    new(big.Int).Set(amount),
			MinAmount: new(big.Int).Set(o.MinAmount),
			MaxAmount: new(big.Int).Set(o.MaxAmount),
		}
	}
	return nil
}
