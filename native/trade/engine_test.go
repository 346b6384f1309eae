package trade

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	nativecommon "localex/native/common"
	"localex/native/offer"
	"localex/native/params"
	"localex/native/validation"
)

type mockState struct {
	trades   map[[32]byte]*Trade
	escrows  map[[32]byte]*Escrow
	disputes map[[32]byte]*Dispute
	arbs     map[string][20]byte
	balances map[[20]byte]map[string]*big.Int
	nonce    uint64
}

func newMockState() *mockState {
	return &mockState{
		trades:   make(map[[32]byte]*Trade),
		escrows:  make(map[[32]byte]*Escrow),
		disputes: make(map[[32]byte]*Dispute),
		arbs:     make(map[string][20]byte),
		balances: make(map[[20]byte]map[string]*big.Int),
	}
}

func (m *mockState) TradePut(t *Trade) error {
	m.trades[t.ID] = t.Clone()
	return nil
}

func (m *mockState) TradeGet(id [32]byte) (*Trade, bool) {
	t, ok := m.trades[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

func (m *mockState) TradesByParticipant(addr [20]byte) ([]*Trade, error) {
	var out []*Trade
	for _, t := range m.trades {
		if t.Buyer == addr || t.Seller == addr || t.Arbitrator == addr {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (m *mockState) TradeNextNonce() (uint64, error) {
	m.nonce++
	return m.nonce, nil
}

func (m *mockState) EscrowPut(e *Escrow) error {
	m.escrows[e.TradeID] = e.Clone()
	return nil
}

func (m *mockState) EscrowGet(id [32]byte) (*Escrow, bool) {
	e, ok := m.escrows[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

func (m *mockState) DisputePut(d *Dispute) error {
	m.disputes[d.TradeID] = d.Clone()
	return nil
}

func (m *mockState) DisputeGet(id [32]byte) (*Dispute, bool) {
	d, ok := m.disputes[id]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

func (m *mockState) ArbitratorSet(fiat string, addr [20]byte) error {
	m.arbs[fiat] = addr
	return nil
}

func (m *mockState) ArbitratorGet(fiat string) ([20]byte, bool, error) {
	addr, ok := m.arbs[fiat]
	return addr, ok, nil
}

func (m *mockState) ArbitratorRemove(fiat string) error {
	delete(m.arbs, fiat)
	return nil
}

func (m *mockState) Arbitrators() (map[string][20]byte, error) {
	out := make(map[string][20]byte, len(m.arbs))
	for k, v := range m.arbs {
		out[k] = v
	}
	return out, nil
}

func (m *mockState) balance(addr [20]byte, denom string) *big.Int {
	if denoms, ok := m.balances[addr]; ok {
		if bal, ok := denoms[denom]; ok {
			return new(big.Int).Set(bal)
		}
	}
	return big.NewInt(0)
}

func (m *mockState) setBalance(addr [20]byte, denom string, amount int64) {
	if m.balances[addr] == nil {
		m.balances[addr] = make(map[string]*big.Int)
	}
	m.balances[addr][denom] = big.NewInt(amount)
}

func (m *mockState) BalanceTransfer(from, to [20]byte, denom string, amount *big.Int) error {
	bal := m.balance(from, denom)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance: have %s want %s", bal, amount)
	}
	if m.balances[from] == nil {
		m.balances[from] = make(map[string]*big.Int)
	}
	if m.balances[to] == nil {
		m.balances[to] = make(map[string]*big.Int)
	}
	m.balances[from][denom] = bal.Sub(bal, amount)
	m.balances[to][denom] = new(big.Int).Add(m.balance(to, denom), amount)
	return nil
}

type offerBackend struct {
	offers map[uint64]*offer.Offer
	nextID uint64
}

func (b *offerBackend) OfferPut(o *offer.Offer) error {
	b.offers[o.ID] = o.Clone()
	return nil
}

func (b *offerBackend) OfferGet(id uint64) (*offer.Offer, bool) {
	o, ok := b.offers[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

func (b *offerBackend) OfferNextID() (uint64, error) {
	b.nextID++
	return b.nextID, nil
}

func (b *offerBackend) OffersByOwner(owner [20]byte) ([]*offer.Offer, error) {
	var out []*offer.Offer
	for _, o := range b.offers {
		if o.Owner == owner {
			out = append(out, o.Clone())
		}
	}
	return out, nil
}

type memParams map[string][]byte

func (m memParams) ParamStoreSet(name string, value []byte) error {
	m[name] = append([]byte(nil), value...)
	return nil
}

func (m memParams) ParamStoreGet(name string) ([]byte, bool, error) {
	v, ok := m[name]
	return v, ok, nil
}

type volumeLog struct {
	entries []struct {
		addr   [20]byte
		amount *big.Int
		at     int64
	}
}

func (v *volumeLog) RecordVolume(addr [20]byte, amount *big.Int, at int64) error {
	v.entries = append(v.entries, struct {
		addr   [20]byte
		amount *big.Int
		at     int64
	}{addr, new(big.Int).Set(amount), at})
	return nil
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

var (
	maker    = addr(1)
	taker    = addr(2)
	arb      = addr(3)
	operator = addr(9)
	stranger = addr(7)
)

type env struct {
	engine *Engine
	offers *offer.Engine
	state  *mockState
	now    int64
}

func (e *env) advance(seconds int64) { e.now += seconds }

// newEnv wires a trade engine over mock state with a maker sell offer
// (id 1, LCX/USD, range [10, 100]) and funds the seller with 1000 LCX.
func newEnv(t *testing.T, offerType offer.OfferType) *env {
	t.Helper()
	e := &env{state: newMockState(), now: 1_700_000_000}

	store := params.NewStore(memParams{})
	if err := store.SetTradingLimit("LCX", big.NewInt(1_000)); err != nil {
		t.Fatalf("seed trading limit: %v", err)
	}
	if err := store.SetTimers(params.Timers{OfferTTL: 1200, FiatWindow: 7200, DisputeDelay: 3600}); err != nil {
		t.Fatalf("seed timers: %v", err)
	}

	e.offers = offer.NewEngine()
	e.offers.SetState(&offerBackend{offers: make(map[uint64]*offer.Offer)})
	e.offers.SetParams(store)
	e.offers.SetNowFunc(func() int64 { return e.now })
	if _, err := e.offers.Create(maker, "LCX", "USD", offerType, big.NewInt(50), big.NewInt(10), big.NewInt(100)); err != nil {
		t.Fatalf("seed offer: %v", err)
	}

	e.engine = NewEngine(e.offers)
	e.engine.SetState(e.state)
	e.engine.SetParams(store)
	e.engine.SetNowFunc(func() int64 { return e.now })
	e.engine.SetOperator(operator)

	seller := maker
	if offerType == offer.TypeBuy {
		seller = taker
	}
	e.state.setBalance(seller, "LCX", 1_000)
	return e
}

// fundedTrade drives a fresh trade to EscrowFunded on a sell offer, where the
// maker is the seller and the taker is the buyer.
func fundedTrade(t *testing.T, e *env) *Trade {
	t.Helper()
	opened, err := e.engine.OpenTrade(1, taker, big.NewInt(50))
	if err != nil {
		t.Fatalf("open trade: %v", err)
	}
	if _, err := e.engine.AcceptTrade(opened.ID, maker); err != nil {
		t.Fatalf("accept trade: %v", err)
	}
	funded, err := e.engine.FundEscrow(opened.ID, maker, big.NewInt(50))
	if err != nil {
		t.Fatalf("fund escrow: %v", err)
	}
	return funded
}

func TestHappyPathSettlement(t *testing.T) {
	e := newEnv(t, offer.TypeSell)
	volume := &volumeLog{}
	e.engine.SetVolumeRecorder(volume)

	opened, err := e.engine.OpenTrade(1, taker, big.NewInt(50))
	if err != nil {
		t.Fatalf("open trade: %v", err)
	}
	if opened.Buyer != taker || opened.Seller != maker {
		t.Fatalf("sell offer must make the taker the buyer: %+v", opened)
	}
	if opened.Status != StatusRequestCreated {
		t.Fatalf("unexpected status: %s", opened.Status)
	}
	if opened.ExpiresAt != e.now+1200 {
		t.Fatalf("open window not stamped: %d", opened.ExpiresAt)
	}

	accepted, err := e.engine.AcceptTrade(opened.ID, maker)
	if err != nil {
		t.Fatalf("accept trade: %v", err)
	}
	if accepted.Status != StatusRequestAccepted {
		t.Fatalf("unexpected status: %s", accepted.Status)
	}

	funded, err := e.engine.FundEscrow(opened.ID, maker, big.NewInt(50))
	if err != nil {
		t.Fatalf("fund escrow: %v", err)
	}
	if funded.Status != StatusEscrowFunded {
		t.Fatalf("unexpected status: %s", funded.Status)
	}
	if funded.TimeToDispute != e.now+3600 || funded.FiatDeadline != e.now+7200 {
		t.Fatalf("funding windows not stamped: %+v", funded)
	}
	vault := VaultAddress("LCX")
	if e.state.balance(vault, "LCX").Int64() != 50 {
		t.Fatalf("vault not credited: %s", e.state.balance(vault, "LCX"))
	}
	esc, ok, err := e.engine.GetEscrow(opened.ID)
	if err != nil || !ok {
		t.Fatalf("escrow record missing: %v", err)
	}
	if esc.LockedAmount.Cmp(esc.FundedAmount) != 0 || esc.LockedAmount.Int64() != 50 {
		t.Fatalf("locked and funded amounts must match: %+v", esc)
	}
	if esc.Released {
		t.Fatalf("fresh escrow must not be released")
	}
	if e.state.balance(maker, "LCX").Int64() != 950 {
		t.Fatalf("seller not debited: %s", e.state.balance(maker, "LCX"))
	}

	if _, err := e.engine.AttestFiatDeposited(opened.ID, taker); err != nil {
		t.Fatalf("attest fiat: %v", err)
	}

	released, err := e.engine.ReleaseEscrow(opened.ID, maker)
	if err != nil {
		t.Fatalf("release escrow: %v", err)
	}
	if released.Status != StatusEscrowReleased {
		t.Fatalf("unexpected status: %s", released.Status)
	}
	if e.state.balance(taker, "LCX").Int64() != 50 {
		t.Fatalf("buyer not paid: %s", e.state.balance(taker, "LCX"))
	}
	if e.state.balance(vault, "LCX").Int64() != 0 {
		t.Fatalf("vault not emptied: %s", e.state.balance(vault, "LCX"))
	}
	esc, _, err = e.engine.GetEscrow(opened.ID)
	if err != nil || !esc.Released || esc.Recipient != taker {
		t.Fatalf("escrow must record the single payout: %+v err=%v", esc, err)
	}
	if len(volume.entries) != 2 {
		t.Fatalf("settled volume must accrue for both parties, got %d entries", len(volume.entries))
	}
}

func TestBuyOfferRoleDerivation(t *testing.T) {
	e := newEnv(t, offer.TypeBuy)

	opened, err := e.engine.OpenTrade(1, taker, big.NewInt(50))
	if err != nil {
		t.Fatalf("open trade: %v", err)
	}
	if opened.Buyer != maker || opened.Seller != taker {
		t.Fatalf("buy offer must make the maker the buyer: %+v", opened)
	}
}

func TestOpenTradeRejections(t *testing.T) {
	e := newEnv(t, offer.TypeSell)

	_, err := e.engine.OpenTrade(1, maker, big.NewInt(50))
	var paramErr *validation.InvalidParameterError
	if !errors.As(err, &paramErr) {
		t.Fatalf("maker taking own offer must fail, got %v", err)
	}

	_, err = e.engine.OpenTrade(1, taker, big.NewInt(5))
	var amountErr *offer.InvalidOfferAmountError
	if !errors.As(err, &amountErr) {
		t.Fatalf("amount below offer min must fail, got %v", err)
	}

	_, err = e.engine.OpenTrade(99, taker, big.NewInt(50))
	var notFound *offer.OfferNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("unknown offer must fail, got %v", err)
	}

	if _, err := e.offers.UpdateState(maker, 1, offer.StatePaused); err != nil {
		t.Fatalf("pause offer: %v", err)
	}
	if _, err := e.engine.OpenTrade(1, taker, big.NewInt(50)); !errors.Is(err, offer.ErrOfferNotActive) {
		t.Fatalf("paused offer must reject trades, got %v", err)
	}
}

func TestAcceptTradeAuth(t *testing.T) {
	e := newEnv(t, offer.TypeSell)
	opened, err := e.engine.OpenTrade(1, taker, big.NewInt(50))
	if err != nil {
		t.Fatalf("open trade: %v", err)
	}

	_, err = e.engine.AcceptTrade(opened.ID, taker)
	var senderErr *InvalidSenderError
	if !errors.As(err, &senderErr) {
		t.Fatalf("non-maker accept must fail, got %v", err)
	}

	if _, err := e.engine.AcceptTrade(opened.ID, maker); err != nil {
		t.Fatalf("maker accept: %v", err)
	}
	_, err = e.engine.AcceptTrade(opened.ID, maker)
	var stateErr *InvalidTradeStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("double accept must fail, got %v", err)
	}
}

func TestFundEscrowExactAmount(t *testing.T) {
	e := newEnv(t, offer.TypeSell)
	opened, err := e.engine.OpenTrade(1, taker, big.NewInt(50))
	if err != nil {
		t.Fatalf("open trade: %v", err)
	}
	if _, err := e.engine.AcceptTrade(opened.ID, maker); err != nil {
		t.Fatalf("accept trade: %v", err)
	}

	for _, sent := range []int64{49, 51} {
		_, err := e.engine.FundEscrow(opened.ID, maker, big.NewInt(sent))
		var fundErr *FundEscrowError
		if !errors.As(err, &fundErr) {
			t.Fatalf("sent %d must fail exact match, got %v", sent, err)
		}
		if fundErr.RequiredAmount.Int64() != 50 || fundErr.SentAmount.Int64() != sent {
			t.Fatalf("unexpected amounts in error: %+v", fundErr)
		}
		if e.state.balance(maker, "LCX").Int64() != 1_000 {
			t.Fatalf("failed funding must not move funds")
		}
		if _, ok := e.state.escrows[opened.ID]; ok {
			t.Fatalf("failed funding must not create an escrow")
		}
		stored, _ := e.state.TradeGet(opened.ID)
		if stored.Status != StatusRequestAccepted {
			t.Fatalf("failed funding must not change status: %s", stored.Status)
		}
	}

	_, err = e.engine.FundEscrow(opened.ID, taker, big.NewInt(50))
	var senderErr *InvalidSenderError
	if !errors.As(err, &senderErr) {
		t.Fatalf("buyer funding must fail, got %v", err)
	}

	if _, err := e.engine.FundEscrow(opened.ID, maker, big.NewInt(50)); err != nil {
		t.Fatalf("exact funding: %v", err)
	}
}

func TestReleaseRequiresFiatDeposit(t *testing.T) {
	e := newEnv(t, offer.TypeSell)
	funded := fundedTrade(t, e)

	_, err := e.engine.ReleaseEscrow(funded.ID, maker)
	var stateErr *InvalidTradeStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("release before fiat attestation must fail, got %v", err)
	}

	_, err = e.engine.AttestFiatDeposited(funded.ID, maker)
	var senderErr *InvalidSenderError
	if !errors.As(err, &senderErr) {
		t.Fatalf("seller attesting fiat must fail, got %v", err)
	}
	if _, err := e.engine.AttestFiatDeposited(funded.ID, taker); err != nil {
		t.Fatalf("buyer attest: %v", err)
	}

	_, err = e.engine.ReleaseEscrow(funded.ID, taker)
	if !errors.As(err, &senderErr) {
		t.Fatalf("buyer releasing must fail, got %v", err)
	}
	if _, err := e.engine.ReleaseEscrow(funded.ID, maker); err != nil {
		t.Fatalf("release: %v", err)
	}

	_, err = e.engine.ReleaseEscrow(funded.ID, maker)
	if !errors.As(err, &stateErr) {
		t.Fatalf("second release must fail, got %v", err)
	}
	if e.state.balance(taker, "LCX").Int64() != 50 {
		t.Fatalf("exactly one payout expected, buyer has %s", e.state.balance(taker, "LCX"))
	}
}

func TestCancelTrade(t *testing.T) {
	e := newEnv(t, offer.TypeSell)

	opened, err := e.engine.OpenTrade(1, taker, big.NewInt(50))
	if err != nil {
		t.Fatalf("open trade: %v", err)
	}
	_, err = e.engine.CancelTrade(opened.ID, stranger)
	var senderErr *InvalidSenderError
	if !errors.As(err, &senderErr) {
		t.Fatalf("stranger cancel must fail, got %v", err)
	}
	canceled, err := e.engine.CancelTrade(opened.ID, taker)
	if err != nil {
		t.Fatalf("taker cancel: %v", err)
	}
	if canceled.Status != StatusRequestCanceled {
		t.Fatalf("unexpected status: %s", canceled.Status)
	}

	funded := fundedTrade(t, e)
	_, err = e.engine.CancelTrade(funded.ID, maker)
	if !errors.As(err, &senderErr) {
		t.Fatalf("seller cancel after funding must fail, got %v", err)
	}
	refunded, err := e.engine.CancelTrade(funded.ID, taker)
	if err != nil {
		t.Fatalf("buyer cancel after funding: %v", err)
	}
	if refunded.Status != StatusEscrowRefunded {
		t.Fatalf("unexpected status: %s", refunded.Status)
	}
	if e.state.balance(maker, "LCX").Int64() != 1_000 {
		t.Fatalf("seller must be made whole: %s", e.state.balance(maker, "LCX"))
	}
}

func TestRequestRefund(t *testing.T) {
	e := newEnv(t, offer.TypeSell)
	funded := fundedTrade(t, e)

	_, err := e.engine.RequestRefund(funded.ID, maker)
	var notExpired *RefundErrorNotExpired
	if !errors.As(err, &notExpired) {
		t.Fatalf("refund before expiry must fail, got %v", err)
	}

	e.advance(7201)
	refunded, err := e.engine.RequestRefund(funded.ID, maker)
	if err != nil {
		t.Fatalf("refund after fiat window: %v", err)
	}
	if refunded.Status != StatusEscrowRefunded {
		t.Fatalf("unexpected status: %s", refunded.Status)
	}
	if e.state.balance(maker, "LCX").Int64() != 1_000 {
		t.Fatalf("seller must be made whole: %s", e.state.balance(maker, "LCX"))
	}

	opened, err := e.engine.OpenTrade(1, taker, big.NewInt(20))
	if err != nil {
		t.Fatalf("open trade: %v", err)
	}
	e.advance(1201)
	expired, err := e.engine.RequestRefund(opened.ID, taker)
	if err != nil {
		t.Fatalf("refund unfunded expired trade: %v", err)
	}
	if expired.Status != StatusRequestExpired {
		t.Fatalf("unexpected status: %s", expired.Status)
	}
}

func TestExpiredTradeRejectsProgress(t *testing.T) {
	e := newEnv(t, offer.TypeSell)
	funded := fundedTrade(t, e)

	e.advance(7201)
	var expiredErr *TradeExpiredError
	if _, err := e.engine.AttestFiatDeposited(funded.ID, taker); !errors.As(err, &expiredErr) {
		t.Fatalf("attest on expired trade must fail, got %v", err)
	}
	if _, err := e.engine.ReleaseEscrow(funded.ID, maker); !errors.As(err, &expiredErr) {
		t.Fatalf("release on expired trade must fail, got %v", err)
	}

	opened, err := e.engine.OpenTrade(1, taker, big.NewInt(20))
	if err != nil {
		t.Fatalf("open trade: %v", err)
	}
	e.advance(1201)
	if _, err := e.engine.AcceptTrade(opened.ID, maker); !errors.As(err, &expiredErr) {
		t.Fatalf("accept on expired trade must fail, got %v", err)
	}
}

func TestFiatDepositStopsExpiry(t *testing.T) {
	e := newEnv(t, offer.TypeSell)
	funded := fundedTrade(t, e)
	if _, err := e.engine.AttestFiatDeposited(funded.ID, taker); err != nil {
		t.Fatalf("attest fiat: %v", err)
	}

	e.advance(100_000)
	if _, err := e.engine.RequestRefund(funded.ID, maker); err == nil {
		t.Fatalf("attested trade must not expire into a refund")
	}
	if _, err := e.engine.ReleaseEscrow(funded.ID, maker); err != nil {
		t.Fatalf("release after fiat attestation must stay available: %v", err)
	}
}

func TestDisputeLifecycle(t *testing.T) {
	e := newEnv(t, offer.TypeSell)
	if err := e.engine.RegisterArbitrator(operator, "USD", arb); err != nil {
		t.Fatalf("register arbitrator: %v", err)
	}
	funded := fundedTrade(t, e)

	_, err := e.engine.OpenDispute(funded.ID, taker)
	var premature *PrematureDisputeRequestError
	if !errors.As(err, &premature) {
		t.Fatalf("dispute before window must fail, got %v", err)
	}
	if premature.TimeToDispute != funded.TimeToDispute {
		t.Fatalf("unexpected window in error: %d", premature.TimeToDispute)
	}

	e.advance(3600)
	disputed, err := e.engine.OpenDispute(funded.ID, taker)
	if err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if disputed.Status != StatusEscrowDisputed {
		t.Fatalf("unexpected status: %s", disputed.Status)
	}
	if disputed.Arbitrator != arb {
		t.Fatalf("arbitrator not assigned: %x", disputed.Arbitrator)
	}
	listed, err := e.engine.ListByParticipant(arb)
	if err != nil || len(listed) != 1 || listed[0].ID != funded.ID {
		t.Fatalf("arbitrator must see the disputed trade: %v %v", listed, err)
	}

	e.advance(100_000)
	if _, err := e.engine.RequestRefund(funded.ID, maker); err == nil {
		t.Fatalf("disputed trade must not expire into a refund")
	}

	_, err = e.engine.ResolveDispute(funded.ID, maker, DecisionFavorBuyer)
	var senderErr *InvalidSenderError
	if !errors.As(err, &senderErr) {
		t.Fatalf("non-arbitrator resolve must fail, got %v", err)
	}

	resolved, err := e.engine.ResolveDispute(funded.ID, arb, DecisionFavorBuyer)
	if err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}
	if resolved.Status != StatusSettledByArbitration {
		t.Fatalf("unexpected status: %s", resolved.Status)
	}
	if e.state.balance(taker, "LCX").Int64() != 50 {
		t.Fatalf("buyer not paid: %s", e.state.balance(taker, "LCX"))
	}
	record, ok, err := e.engine.GetDispute(funded.ID)
	if err != nil || !ok {
		t.Fatalf("dispute record missing: %v", err)
	}
	if record.Decision != DecisionFavorBuyer || record.DecidedAt == 0 {
		t.Fatalf("ruling not recorded: %+v", record)
	}

	_, err = e.engine.ResolveDispute(funded.ID, arb, DecisionFavorSeller)
	var stateErr *InvalidTradeStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("second resolve must fail, got %v", err)
	}
}

func TestDisputeFavorSeller(t *testing.T) {
	e := newEnv(t, offer.TypeSell)
	if err := e.engine.RegisterArbitrator(operator, "USD", arb); err != nil {
		t.Fatalf("register arbitrator: %v", err)
	}
	funded := fundedTrade(t, e)
	if _, err := e.engine.AttestFiatDeposited(funded.ID, taker); err != nil {
		t.Fatalf("attest fiat: %v", err)
	}

	e.advance(3600)
	if _, err := e.engine.OpenDispute(funded.ID, maker); err != nil {
		t.Fatalf("seller opening dispute from fiat_deposited: %v", err)
	}
	if _, err := e.engine.ResolveDispute(funded.ID, arb, DecisionFavorSeller); err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}
	if e.state.balance(maker, "LCX").Int64() != 1_000 {
		t.Fatalf("seller must be made whole: %s", e.state.balance(maker, "LCX"))
	}
}

func TestDisputeRequiresRegisteredArbitrator(t *testing.T) {
	e := newEnv(t, offer.TypeSell)
	funded := fundedTrade(t, e)
	e.advance(3600)

	if _, err := e.engine.OpenDispute(funded.ID, taker); !errors.Is(err, ErrNoArbitrator) {
		t.Fatalf("dispute without arbitrator must fail, got %v", err)
	}
}

func TestArbitratorRegistryAuth(t *testing.T) {
	e := newEnv(t, offer.TypeSell)

	err := e.engine.RegisterArbitrator(stranger, "USD", arb)
	var authErr *nativecommon.UnauthorizedError
	if !errors.As(err, &authErr) {
		t.Fatalf("non-operator register must fail, got %v", err)
	}
	if err := e.engine.RegisterArbitrator(operator, "usd", arb); err != nil {
		t.Fatalf("operator register: %v", err)
	}
	listed, err := e.engine.Arbitrators()
	if err != nil {
		t.Fatalf("list arbitrators: %v", err)
	}
	if listed["USD"] != arb {
		t.Fatalf("fiat code not normalised in registry: %v", listed)
	}
	if err := e.engine.RemoveArbitrator(stranger, "USD"); !errors.As(err, &authErr) {
		t.Fatalf("non-operator remove must fail, got %v", err)
	}
	if err := e.engine.RemoveArbitrator(operator, "USD"); err != nil {
		t.Fatalf("operator remove: %v", err)
	}
	listed, _ = e.engine.Arbitrators()
	if len(listed) != 0 {
		t.Fatalf("registry not emptied: %v", listed)
	}
}

func TestTradePauseGuard(t *testing.T) {
	e := newEnv(t, offer.TypeSell)
	e.engine.SetPauses(stubPauses{paused: map[string]bool{"trade": true}})

	if _, err := e.engine.OpenTrade(1, taker, big.NewInt(50)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("paused module must reject writes, got %v", err)
	}
}

type stubPauses struct {
	paused map[string]bool
}

func (s stubPauses) IsPaused(module string) bool { return s.paused[module] }

func TestGetAndList(t *testing.T) {
	e := newEnv(t, offer.TypeSell)

	var unknown [32]byte
	unknown[0] = 0xff
	_, err := e.engine.Get(unknown)
	var notFound *TradeNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("unknown trade must return not found, got %v", err)
	}

	opened, err := e.engine.OpenTrade(1, taker, big.NewInt(50))
	if err != nil {
		t.Fatalf("open trade: %v", err)
	}
	for _, participant := range [][20]byte{maker, taker} {
		listed, err := e.engine.ListByParticipant(participant)
		if err != nil || len(listed) != 1 || listed[0].ID != opened.ID {
			t.Fatalf("participant %x missing trade: %v %v", participant, listed, err)
		}
	}
	if listed, _ := e.engine.ListByParticipant(stranger); len(listed) != 0 {
		t.Fatalf("stranger must have no trades: %v", listed)
	}
}

func TestTransitionTable(t *testing.T) {
	for _, terminal := range []TradeStatus{StatusRequestCanceled, StatusRequestExpired,
		StatusEscrowReleased, StatusEscrowRefunded, StatusSettledByArbitration} {
		if !terminal.Terminal() {
			t.Fatalf("%s must be terminal", terminal)
		}
		for to := StatusRequestCreated; to <= StatusSettledByArbitration; to++ {
			if CanTransition(terminal, to) {
				t.Fatalf("terminal %s must not transition to %s", terminal, to)
			}
		}
	}
	if CanTransition(StatusRequestCreated, StatusEscrowFunded) {
		t.Fatalf("funding must require acceptance first")
	}
	if CanTransition(StatusFiatDeposited, StatusEscrowRefunded) {
		t.Fatalf("attested trades must not refund")
	}
	if CanTransition(StatusEscrowFunded, StatusRequestExpired) {
		t.Fatalf("funded trades expire into a refund, not a plain expiry")
	}
	if !CanTransition(StatusEscrowDisputed, StatusSettledByArbitration) {
		t.Fatalf("disputes must settle by arbitration")
	}
}
