package offer

import (
	"errors"
	"math/big"
	"testing"

	nativecommon "localex/native/common"
	"localex/native/params"
	"localex/native/validation"
)

type mockState struct {
	offers map[uint64]*Offer
	nextID uint64
}

func newMockState() *mockState {
	return &mockState{offers: make(map[uint64]*Offer)}
}

func (m *mockState) OfferPut(o *Offer) error {
	m.offers[o.ID] = o.Clone()
	return nil
}

func (m *mockState) OfferGet(id uint64) (*Offer, bool) {
	o, ok := m.offers[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

func (m *mockState) OfferNextID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockState) OffersByOwner(owner [20]byte) ([]*Offer, error) {
	var out []*Offer
	for _, o := range m.offers {
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

type stubPauses struct {
	paused map[string]bool
}

func (s stubPauses) IsPaused(module string) bool { return s.paused[module] }

func newTestEngine(t *testing.T) (*Engine, *mockState) {
	t.Helper()
	state := newMockState()
	store := params.NewStore(memParams{})
	if err := store.SetTradingLimit("LCX", big.NewInt(1_000)); err != nil {
		t.Fatalf("seed trading limit: %v", err)
	}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetParams(store)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine, state
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestCreateOffer(t *testing.T) {
	engine, state := newTestEngine(t)
	owner := addr(1)

	created, err := engine.Create(owner, "lcx", "usd", TypeSell, big.NewInt(50), big.NewInt(10), big.NewInt(100))
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("unexpected id: %d", created.ID)
	}
	if created.Denom != "LCX" || created.FiatCurrency != "USD" {
		t.Fatalf("denoms not normalised: %q %q", created.Denom, created.FiatCurrency)
	}
	if created.State != StateActive {
		t.Fatalf("new offer must be active, got %s", created.State)
	}
	stored, ok := state.offers[created.ID]
	if !ok {
		t.Fatalf("offer not persisted")
	}
	if stored.CreatedAt != 1_700_000_000 || stored.UpdatedAt != 1_700_000_000 {
		t.Fatalf("timestamps not stamped: %+v", stored)
	}

	second, err := engine.Create(owner, "LCX", "EUR", TypeBuy, big.NewInt(45), big.NewInt(5), big.NewInt(50))
	if err != nil {
		t.Fatalf("create second offer: %v", err)
	}
	if second.ID != 2 {
		t.Fatalf("ids must be sequential, got %d", second.ID)
	}
}

func TestCreateOfferRejectsBadBounds(t *testing.T) {
	engine, _ := newTestEngine(t)
	owner := addr(1)

	if _, err := engine.Create(owner, "LCX", "USD", TypeSell, big.NewInt(0), big.NewInt(10), big.NewInt(100)); !errors.Is(err, validation.ErrInvalidPriceForDenom) {
		t.Fatalf("zero rate must fail price check, got %v", err)
	}

	_, err := engine.Create(owner, "LCX", "USD", TypeSell, big.NewInt(50), big.NewInt(200), big.NewInt(100))
	var minMaxErr *validation.InvalidMinMaxError
	if !errors.As(err, &minMaxErr) {
		t.Fatalf("min above max must fail, got %v", err)
	}

	_, err = engine.Create(owner, "LCX", "USD", TypeSell, big.NewInt(50), big.NewInt(10), big.NewInt(5_000))
	var limitErr *OfferMaxAboveTradingLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("max above trading limit must fail, got %v", err)
	}
	if limitErr.TradingLimit.Int64() != 1_000 {
		t.Fatalf("unexpected limit in error: %s", limitErr.TradingLimit)
	}

	_, err = engine.Create(owner, "DOGE", "USD", TypeSell, big.NewInt(50), big.NewInt(10), big.NewInt(100))
	var paramErr *validation.InvalidParameterError
	if !errors.As(err, &paramErr) {
		t.Fatalf("unconfigured denom must fail, got %v", err)
	}
}

func TestUpdateOffer(t *testing.T) {
	engine, _ := newTestEngine(t)
	owner := addr(1)
	stranger := addr(2)

	created, err := engine.Create(owner, "LCX", "USD", TypeSell, big.NewInt(50), big.NewInt(10), big.NewInt(100))
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	if _, err := engine.Update(stranger, created.ID, big.NewInt(60), big.NewInt(10), big.NewInt(100)); err == nil {
		t.Fatalf("non-owner update must fail")
	} else {
		var authErr *nativecommon.UnauthorizedError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected unauthorized error, got %v", err)
		}
	}

	updated, err := engine.Update(owner, created.ID, big.NewInt(60), big.NewInt(20), big.NewInt(200))
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Rate.Int64() != 60 || updated.MinAmount.Int64() != 20 || updated.MaxAmount.Int64() != 200 {
		t.Fatalf("terms not applied: %+v", updated)
	}

	if _, err := engine.UpdateState(owner, created.ID, StateArchived); err != nil {
		t.Fatalf("archive offer: %v", err)
	}
	if _, err := engine.Update(owner, created.ID, big.NewInt(70), big.NewInt(10), big.NewInt(100)); !errors.Is(err, ErrOfferArchived) {
		t.Fatalf("archived offer must reject edits, got %v", err)
	}
}

func TestUpdateOfferState(t *testing.T) {
	engine, _ := newTestEngine(t)
	owner := addr(1)

	created, err := engine.Create(owner, "LCX", "USD", TypeSell, big.NewInt(50), big.NewInt(10), big.NewInt(100))
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	paused, err := engine.UpdateState(owner, created.ID, StatePaused)
	if err != nil {
		t.Fatalf("pause offer: %v", err)
	}
	if paused.State != StatePaused {
		t.Fatalf("state not applied: %s", paused.State)
	}

	resumed, err := engine.UpdateState(owner, created.ID, StateActive)
	if err != nil {
		t.Fatalf("resume offer: %v", err)
	}
	if resumed.State != StateActive {
		t.Fatalf("state not applied: %s", resumed.State)
	}

	if _, err := engine.UpdateState(owner, created.ID, StateArchived); err != nil {
		t.Fatalf("archive offer: %v", err)
	}

	_, err = engine.UpdateState(owner, created.ID, StateActive)
	var changeErr *InvalidOfferStateChangeError
	if !errors.As(err, &changeErr) {
		t.Fatalf("archived is terminal, got %v", err)
	}
	if changeErr.From != StateArchived || changeErr.To != StateActive {
		t.Fatalf("unexpected transition in error: %+v", changeErr)
	}
}

func TestValidateTradeAmount(t *testing.T) {
	engine, _ := newTestEngine(t)
	owner := addr(1)

	created, err := engine.Create(owner, "LCX", "USD", TypeSell, big.NewInt(50), big.NewInt(10), big.NewInt(100))
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	if err := engine.ValidateTradeAmount(created, big.NewInt(10)); err != nil {
		t.Fatalf("min boundary must be accepted: %v", err)
	}
	if err := engine.ValidateTradeAmount(created, big.NewInt(100)); err != nil {
		t.Fatalf("max boundary must be accepted: %v", err)
	}

	err = engine.ValidateTradeAmount(created, big.NewInt(9))
	var amountErr *InvalidOfferAmountError
	if !errors.As(err, &amountErr) {
		t.Fatalf("below min must fail, got %v", err)
	}
	err = engine.ValidateTradeAmount(created, big.NewInt(101))
	if !errors.As(err, &amountErr) {
		t.Fatalf("above max must fail, got %v", err)
	}

	paused, err := engine.UpdateState(owner, created.ID, StatePaused)
	if err != nil {
		t.Fatalf("pause offer: %v", err)
	}
	if err := engine.ValidateTradeAmount(paused, big.NewInt(50)); !errors.Is(err, ErrOfferNotActive) {
		t.Fatalf("paused offer must reject trades, got %v", err)
	}
}

func TestOfferPauseGuard(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.SetPauses(stubPauses{paused: map[string]bool{"offer": true}})

	_, err := engine.Create(addr(1), "LCX", "USD", TypeSell, big.NewInt(50), big.NewInt(10), big.NewInt(100))
	if !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("paused module must reject writes, got %v", err)
	}
}

func TestGetAndListByOwner(t *testing.T) {
	engine, _ := newTestEngine(t)
	owner := addr(1)

	_, err := engine.Get(99)
	var notFound *OfferNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("unknown id must return not found, got %v", err)
	}

	if _, err := engine.Create(owner, "LCX", "USD", TypeSell, big.NewInt(50), big.NewInt(10), big.NewInt(100)); err != nil {
		t.Fatalf("create offer: %v", err)
	}
	if _, err := engine.Create(owner, "LCX", "EUR", TypeBuy, big.NewInt(45), big.NewInt(10), big.NewInt(100)); err != nil {
		t.Fatalf("create offer: %v", err)
	}
	if _, err := engine.Create(addr(2), "LCX", "USD", TypeSell, big.NewInt(55), big.NewInt(10), big.NewInt(100)); err != nil {
		t.Fatalf("create offer: %v", err)
	}

	listed, err := engine.ListByOwner(owner)
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(listed))
	}
}
