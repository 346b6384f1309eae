package trade

import (
	"math/big"
	"time"

	"localex/core/events"
	"localex/core/types"
	nativecommon "localex/native/common"
	"localex/native/offer"
	"localex/native/params"
	"localex/native/validation"
)

const moduleName = "trade"

type engineState interface {
	TradePut(*Trade) error
	TradeGet(id [32]byte) (*Trade, bool)
	TradesByParticipant(addr [20]byte) ([]*Trade, error)
	TradeNextNonce() (uint64, error)
	EscrowPut(*Escrow) error
	EscrowGet(id [32]byte) (*Escrow, bool)
	DisputePut(*Dispute) error
	DisputeGet(id [32]byte) (*Dispute, bool)
	ArbitratorSet(fiat string, addr [20]byte) error
	ArbitratorGet(fiat string) ([20]byte, bool, error)
	ArbitratorRemove(fiat string) error
	Arbitrators() (map[string][20]byte, error)
	BalanceTransfer(from, to [20]byte, denom string, amount *big.Int) error
}

// VolumeRecorder receives settled trade volume for incentives accrual.
type VolumeRecorder interface {
	RecordVolume(addr [20]byte, amount *big.Int, at int64) error
}

type tradeEvent struct {
	evt *types.Event
}

func (e tradeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e tradeEvent) Event() *types.Event { return e.evt }

// Engine drives the trade state machine, the escrow ledger backing it and the
// dispute resolver. Every mutation validates fully before its first state
// write, so a failed invocation leaves no trace.
type Engine struct {
	state    engineState
	offers   *offer.Engine
	params   *params.Store
	emitter  events.Emitter
	nowFn    func() int64
	pauses   nativecommon.PauseView
	volume   VolumeRecorder
	operator [20]byte
}

// NewEngine creates a trade engine bound to the supplied offer engine.
func NewEngine(offers *offer.Engine) *Engine {
	return &Engine{
		offers:  offers,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetParams configures the parameter store consulted for lifecycle windows.
func (e *Engine) SetParams(store *params.Store) { e.params = store }

// SetPauses configures the operator pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetOperator configures the venue operator authorised to manage the
// arbitrator registry.
func (e *Engine) SetOperator(operator [20]byte) { e.operator = operator }

// SetVolumeRecorder wires settled trade volume into the incentives engine.
// Passing nil disables accrual.
func (e *Engine) SetVolumeRecorder(v VolumeRecorder) { e.volume = v }

// SetNowFunc overrides the time source, primarily used in tests.
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

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(tradeEvent{evt: evt})
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
	case e.offers == nil:
		return errNilOffers
	case e.params == nil:
		return errNilParams
	}
	return nil
}

func (e *Engine) load(id [32]byte) (*Trade, error) {
	t, ok := e.state.TradeGet(id)
	if !ok {
		return nil, &TradeNotFoundError{TradeID: id}
	}
	return t.Clone(), nil
}

// checkNotExpired is the lazy expiry guard applied by every progress call.
func (e *Engine) checkNotExpired(t *Trade) error {
	if t.Expired(e.now()) {
		return &TradeExpiredError{TradeID: t.ID, ExpiredAt: t.deadline(), CreatedAt: t.CreatedAt}
	}
	return nil
}

func requireParticipant(t *Trade, caller [20]byte) error {
	if caller != t.Buyer && caller != t.Seller {
		return &InvalidSenderError{Sender: caller, Buyer: t.Buyer, Seller: t.Seller}
	}
	return nil
}

func requireStatus(t *Trade, expected TradeStatus) error {
	if t.Status != expected {
		return &InvalidTradeStateError{Current: t.Status, Expected: expected}
	}
	return nil
}

// transition applies a status change after checking the legality table.
func transition(t *Trade, to TradeStatus) error {
	if !CanTransition(t.Status, to) {
		return &InvalidTradeStateChangeError{From: t.Status, To: to}
	}
	t.Status = to
	return nil
}

// OpenTrade opens a trade request for a taker against an active offer. Buyer
// and seller roles are derived from the offer type.
func (e *Engine) OpenTrade(offerID uint64, taker [20]byte, amount *big.Int) (*Trade, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	o, err := e.offers.Get(offerID)
	if err != nil {
		return nil, err
	}
	if taker == o.Owner {
		return nil, &validation.InvalidParameterError{Parameter: "taker", Message: "taker cannot take own offer"}
	}
	if err := e.offers.ValidateTradeAmount(o, amount); err != nil {
		return nil, err
	}
	timers, err := e.params.Timers()
	if err != nil {
		return nil, err
	}
	var buyer, seller [20]byte
	if o.Type == offer.TypeSell {
		buyer, seller = taker, o.Owner
	} else {
		buyer, seller = o.Owner, taker
	}
	nonce, err := e.state.TradeNextNonce()
	if err != nil {
		return nil, err
	}
	now := e.now()
	t := &Trade{
		ID:           ComputeTradeID(offerID, taker, nonce),
		OfferID:      offerID,
		Buyer:        buyer,
		Seller:       seller,
		Denom:        o.Denom,
		FiatCurrency: o.FiatCurrency,
		Amount:       new(big.Int).Set(amount),
		Status:       StatusRequestCreated,
		CreatedAt:    now,
		ExpiresAt:    now + timers.OfferTTL,
	}
	if err := e.state.TradePut(t); err != nil {
		return nil, err
	}
	e.emit(NewOpenedEvent(t))
	return t.Clone(), nil
}

// AcceptTrade lets the maker accept a taker's trade request.
func (e *Engine) AcceptTrade(id [32]byte, caller [20]byte) (*Trade, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	t, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if err := e.checkNotExpired(t); err != nil {
		return nil, err
	}
	o, err := e.offers.Get(t.OfferID)
	if err != nil {
		return nil, err
	}
	if caller != o.Owner {
		return nil, &InvalidSenderError{Sender: caller, Buyer: t.Buyer, Seller: t.Seller}
	}
	if err := requireStatus(t, StatusRequestCreated); err != nil {
		return nil, err
	}
	if err := transition(t, StatusRequestAccepted); err != nil {
		return nil, err
	}
	if err := e.state.TradePut(t); err != nil {
		return nil, err
	}
	e.emit(NewAcceptedEvent(t))
	return t.Clone(), nil
}

// FundEscrow moves the seller's crypto into the custody vault. The sent
// amount must equal the trade amount exactly; any mismatch fails with zero
// mutation.
func (e *Engine) FundEscrow(id [32]byte, caller [20]byte, sent *big.Int) (*Trade, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	t, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if err := e.checkNotExpired(t); err != nil {
		return nil, err
	}
	if caller != t.Seller {
		return nil, &InvalidSenderError{Sender: caller, Buyer: t.Buyer, Seller: t.Seller}
	}
	if err := requireStatus(t, StatusRequestAccepted); err != nil {
		return nil, err
	}
	if sent == nil || sent.Cmp(t.Amount) != 0 {
		sentCopy := big.NewInt(0)
		if sent != nil {
			sentCopy = new(big.Int).Set(sent)
		}
		return nil, &FundEscrowError{RequiredAmount: new(big.Int).Set(t.Amount), SentAmount: sentCopy}
	}
	timers, err := e.params.Timers()
	if err != nil {
		return nil, err
	}
	if err := e.state.BalanceTransfer(t.Seller, VaultAddress(t.Denom), t.Denom, t.Amount); err != nil {
		return nil, err
	}
	now := e.now()
	esc := &Escrow{
		TradeID:      t.ID,
		Denom:        t.Denom,
		LockedAmount: new(big.Int).Set(t.Amount),
		FundedAmount: new(big.Int).Set(t.Amount),
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	if err := transition(t, StatusEscrowFunded); err != nil {
		return nil, err
	}
	t.FundedAt = now
	t.TimeToDispute = now + timers.DisputeDelay
	t.FiatDeadline = now + timers.FiatWindow
	if err := e.state.TradePut(t); err != nil {
		return nil, err
	}
	e.emit(NewFundedEvent(t))
	return t.Clone(), nil
}

// AttestFiatDeposited records the buyer's claim that the fiat leg was paid.
// The protocol never verifies the payment itself.
func (e *Engine) AttestFiatDeposited(id [32]byte, caller [20]byte) (*Trade, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	t, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if err := e.checkNotExpired(t); err != nil {
		return nil, err
	}
	if caller != t.Buyer {
		return nil, &InvalidSenderError{Sender: caller, Buyer: t.Buyer, Seller: t.Seller}
	}
	if err := requireStatus(t, StatusEscrowFunded); err != nil {
		return nil, err
	}
	if err := transition(t, StatusFiatDeposited); err != nil {
		return nil, err
	}
	if err := e.state.TradePut(t); err != nil {
		return nil, err
	}
	e.emit(NewFiatDepositedEvent(t))
	return t.Clone(), nil
}

// ReleaseEscrow lets the seller release the escrowed crypto to the buyer
// after the fiat deposit was attested. Exactly one release per trade.
func (e *Engine) ReleaseEscrow(id [32]byte, caller [20]byte) (*Trade, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	t, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if err := e.checkNotExpired(t); err != nil {
		return nil, err
	}
	if caller != t.Seller {
		return nil, &InvalidSenderError{Sender: caller, Buyer: t.Buyer, Seller: t.Seller}
	}
	if err := requireStatus(t, StatusFiatDeposited); err != nil {
		return nil, err
	}
	now := e.now()
	if _, err := e.releaseEscrow(t, t.Buyer, now); err != nil {
		return nil, err
	}
	if err := transition(t, StatusEscrowReleased); err != nil {
		return nil, err
	}
	if err := e.state.TradePut(t); err != nil {
		return nil, err
	}
	if err := e.recordVolume(t, now); err != nil {
		return nil, err
	}
	e.emit(NewReleasedEvent(t, t.Buyer))
	return t.Clone(), nil
}

// CancelTrade lets a participant abandon the trade. Before funding either
// side may cancel; once funded only the buyer can, returning the escrow to
// the seller.
func (e *Engine) CancelTrade(id [32]byte, caller [20]byte) (*Trade, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	t, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if err := e.checkNotExpired(t); err != nil {
		return nil, err
	}
	if err := requireParticipant(t, caller); err != nil {
		return nil, err
	}
	switch t.Status {
	case StatusRequestCreated, StatusRequestAccepted:
		if err := transition(t, StatusRequestCanceled); err != nil {
			return nil, err
		}
		if err := e.state.TradePut(t); err != nil {
			return nil, err
		}
		e.emit(NewCanceledEvent(t))
		return t.Clone(), nil
	case StatusEscrowFunded:
		if caller != t.Buyer {
			return nil, &InvalidSenderError{Sender: caller, Buyer: t.Buyer, Seller: t.Seller}
		}
		if _, err := e.releaseEscrow(t, t.Seller, e.now()); err != nil {
			return nil, err
		}
		if err := transition(t, StatusEscrowRefunded); err != nil {
			return nil, err
		}
		if err := e.state.TradePut(t); err != nil {
			return nil, err
		}
		e.emit(NewCanceledEvent(t))
		return t.Clone(), nil
	default:
		return nil, &InvalidTradeStateChangeError{From: t.Status, To: StatusRequestCanceled}
	}
}

// RequestRefund settles an expired trade: funded escrows return to the
// seller, unfunded requests are marked expired.
func (e *Engine) RequestRefund(id [32]byte, caller [20]byte) (*Trade, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	t, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(t, caller); err != nil {
		return nil, err
	}
	now := e.now()
	if !t.Expired(now) {
		return nil, &RefundErrorNotExpired{TradeID: t.ID, ExpiresAt: t.deadline()}
	}
	switch t.Status {
	case StatusEscrowFunded:
		if _, err := e.releaseEscrow(t, t.Seller, now); err != nil {
			return nil, err
		}
		if err := transition(t, StatusEscrowRefunded); err != nil {
			return nil, err
		}
		if err := e.state.TradePut(t); err != nil {
			return nil, err
		}
		e.emit(NewRefundedEvent(t))
		return t.Clone(), nil
	case StatusRequestCreated, StatusRequestAccepted:
		if err := transition(t, StatusRequestExpired); err != nil {
			return nil, err
		}
		if err := e.state.TradePut(t); err != nil {
			return nil, err
		}
		e.emit(NewExpiredEvent(t))
		return t.Clone(), nil
	default:
		return nil, &InvalidTradeStateChangeError{From: t.Status, To: StatusEscrowRefunded}
	}
}

// OpenDispute escalates a funded trade to the arbitrator registered for its
// fiat currency. Only available once the dispute window has started.
func (e *Engine) OpenDispute(id [32]byte, caller [20]byte) (*Trade, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	t, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(t, caller); err != nil {
		return nil, err
	}
	if t.Status != StatusEscrowFunded && t.Status != StatusFiatDeposited {
		return nil, &InvalidTradeStateChangeError{From: t.Status, To: StatusEscrowDisputed}
	}
	if err := e.checkNotExpired(t); err != nil {
		return nil, err
	}
	now := e.now()
	if now < t.TimeToDispute {
		return nil, &PrematureDisputeRequestError{TimeToDispute: t.TimeToDispute}
	}
	arbitrator, ok, err := e.state.ArbitratorGet(t.FiatCurrency)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoArbitrator
	}
	dispute := &Dispute{
		TradeID:    t.ID,
		Arbitrator: arbitrator,
		OpenedBy:   caller,
		OpenedAt:   now,
		Decision:   DecisionUndecided,
	}
	if err := e.state.DisputePut(dispute); err != nil {
		return nil, err
	}
	t.Arbitrator = arbitrator
	if err := transition(t, StatusEscrowDisputed); err != nil {
		return nil, err
	}
	if err := e.state.TradePut(t); err != nil {
		return nil, err
	}
	e.emit(NewDisputedEvent(t, caller))
	return t.Clone(), nil
}

// ResolveDispute applies the assigned arbitrator's ruling, releasing the
// escrow to the decided party.
func (e *Engine) ResolveDispute(id [32]byte, caller [20]byte, decision DisputeDecision) (*Trade, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	t, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(t, StatusEscrowDisputed); err != nil {
		return nil, err
	}
	if caller != t.Arbitrator {
		return nil, &InvalidSenderError{Sender: caller, Buyer: t.Buyer, Seller: t.Seller}
	}
	var recipient [20]byte
	switch decision {
	case DecisionFavorBuyer:
		recipient = t.Buyer
	case DecisionFavorSeller:
		recipient = t.Seller
	default:
		return nil, &validation.InvalidParameterError{Parameter: "decision", Message: "must favor buyer or seller"}
	}
	dispute, ok := e.state.DisputeGet(t.ID)
	if !ok {
		return nil, &TradeNotFoundError{TradeID: t.ID}
	}
	now := e.now()
	if _, err := e.releaseEscrow(t, recipient, now); err != nil {
		return nil, err
	}
	dispute.Decision = decision
	dispute.DecidedAt = now
	if err := e.state.DisputePut(dispute); err != nil {
		return nil, err
	}
	if err := transition(t, StatusSettledByArbitration); err != nil {
		return nil, err
	}
	if err := e.state.TradePut(t); err != nil {
		return nil, err
	}
	if err := e.recordVolume(t, now); err != nil {
		return nil, err
	}
	e.emit(NewResolvedEvent(t, decision, recipient))
	return t.Clone(), nil
}

// releaseEscrow performs the single permitted escrow payout: the full locked
// amount, from the vault, to one recipient.
func (e *Engine) releaseEscrow(t *Trade, recipient [20]byte, now int64) (*Escrow, error) {
	esc, ok := e.state.EscrowGet(t.ID)
	if !ok {
		return nil, &InvalidTradeStateError{Current: t.Status, Expected: StatusEscrowFunded}
	}
	if esc.Released {
		return nil, &InvalidTradeStateError{Current: t.Status, Expected: StatusEscrowFunded}
	}
	if err := e.state.BalanceTransfer(VaultAddress(esc.Denom), recipient, esc.Denom, esc.LockedAmount); err != nil {
		return nil, err
	}
	esc.Released = true
	esc.Recipient = recipient
	esc.ReleasedAt = now
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

func (e *Engine) recordVolume(t *Trade, now int64) error {
	if e.volume == nil {
		return nil
	}
	if err := e.volume.RecordVolume(t.Buyer, t.Amount, now); err != nil {
		return err
	}
	return e.volume.RecordVolume(t.Seller, t.Amount, now)
}

// RegisterArbitrator assigns the arbitrator for a fiat currency. Operator
// only.
func (e *Engine) RegisterArbitrator(caller [20]byte, fiat string, arbitrator [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.RequireOwner(e.operator, caller); err != nil {
		return err
	}
	normalized, err := offer.NormalizeFiat(fiat)
	if err != nil {
		return err
	}
	return e.state.ArbitratorSet(normalized, arbitrator)
}

// RemoveArbitrator drops the arbitrator registration for a fiat currency.
// Operator only. Already assigned disputes keep their arbitrator.
func (e *Engine) RemoveArbitrator(caller [20]byte, fiat string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.RequireOwner(e.operator, caller); err != nil {
		return err
	}
	normalized, err := offer.NormalizeFiat(fiat)
	if err != nil {
		return err
	}
	return e.state.ArbitratorRemove(normalized)
}

// Arbitrators returns the fiat currency to arbitrator registry.
func (e *Engine) Arbitrators() (map[string][20]byte, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.Arbitrators()
}

// Get returns a copy of the trade or TradeNotFoundError.
func (e *Engine) Get(id [32]byte) (*Trade, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.load(id)
}

// GetEscrow returns the escrow record for a trade, if funded.
func (e *Engine) GetEscrow(id [32]byte) (*Escrow, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, false, nil
	}
	return esc.Clone(), true, nil
}

// GetDispute returns the dispute record for a trade, if opened.
func (e *Engine) GetDispute(id [32]byte) (*Dispute, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	d, ok := e.state.DisputeGet(id)
	if !ok {
		return nil, false, nil
	}
	return d.Clone(), true, nil
}

// ListByParticipant returns the trades where the address is buyer or seller.
func (e *Engine) ListByParticipant(addr [20]byte) ([]*Trade, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.TradesByParticipant(addr)
}
