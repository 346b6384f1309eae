// Package state persists the venue's domain records and implements the state
// interfaces consumed by the native engines. Records are JSON documents in a
// key-value store; lifecycle history is never deleted, only index entries are
// maintained.
package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"localex/core/types"
	"localex/native/incentives"
	"localex/native/offer"
	"localex/native/trade"
	"localex/storage"
)

// ErrInsufficientBalance rejects transfers exceeding the sender's balance.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

// Manager mediates every engine's access to the underlying database. All
// mutations take the manager lock, so concurrent RPC invocations observe
// whole writes only.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) putJSON(key []byte, v interface{}) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) getJSON(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

// nextSeq increments and returns a big-endian uint64 counter.
func (m *Manager) nextSeq(key []byte) (uint64, error) {
	var current uint64
	raw, err := m.db.Get(key)
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
	case err != nil:
		return 0, err
	case len(raw) == 8:
		current = binary.BigEndian.Uint64(raw)
	default:
		return 0, fmt.Errorf("state: corrupt counter %s", key)
	}
	current++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], current)
	if err := m.db.Put(key, buf[:]); err != nil {
		return 0, err
	}
	return current, nil
}

// --- Offers ---

func (m *Manager) OfferPut(o *offer.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sanitized, err := offer.Sanitize(o)
	if err != nil {
		return err
	}
	if err := m.putJSON(offerKey(sanitized.ID), sanitized); err != nil {
		return err
	}
	return m.db.Put(offerOwnerKey(sanitized.Owner, sanitized.ID), []byte{1})
}

func (m *Manager) OfferGet(id uint64) (*offer.Offer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var o offer.Offer
	ok, err := m.getJSON(offerKey(id), &o)
	if err != nil || !ok {
		return nil, false
	}
	return &o, true
}

func (m *Manager) OfferNextID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextSeq([]byte(keyOfferSeq))
}

func (m *Manager) OffersByOwner(owner [20]byte) ([]*offer.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := offerOwnerPrefix(owner)
	var ids []uint64
	err := m.db.IteratePrefix(prefix, func(key, _ []byte) bool {
		var id uint64
		if _, scanErr := fmt.Sscanf(string(key[len(prefix):]), "%d", &id); scanErr == nil {
			ids = append(ids, id)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	out := make([]*offer.Offer, 0, len(ids))
	for _, id := range ids {
		var o offer.Offer
		ok, err := m.getJSON(offerKey(id), &o)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, &o)
		}
	}
	return out, nil
}

// --- Trades ---

func (m *Manager) TradePut(t *trade.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := t.Clone()
	if clone == nil {
		return fmt.Errorf("state: nil trade")
	}
	if err := m.putJSON(tradeKey(clone.ID), clone); err != nil {
		return err
	}
	if err := m.db.Put(tradePartyKey(clone.Buyer, clone.ID), []byte{1}); err != nil {
		return err
	}
	if err := m.db.Put(tradePartyKey(clone.Seller, clone.ID), []byte{1}); err != nil {
		return err
	}
	// Once a dispute assigns an arbitrator, the trade is theirs to query too.
	var zero [20]byte
	if clone.Arbitrator != zero {
		return m.db.Put(tradePartyKey(clone.Arbitrator, clone.ID), []byte{1})
	}
	return nil
}

func (m *Manager) TradeGet(id [32]byte) (*trade.Trade, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var t trade.Trade
	ok, err := m.getJSON(tradeKey(id), &t)
	if err != nil || !ok {
		return nil, false
	}
	return &t, true
}

func (m *Manager) TradeNextNonce() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextSeq([]byte(keyTradeSeq))
}

func (m *Manager) TradesByParticipant(addr [20]byte) ([]*trade.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := tradePartyPrefix(addr)
	var keys [][]byte
	err := m.db.IteratePrefix(prefix, func(key, _ []byte) bool {
		keys = append(keys, []byte(prefixTrade+string(key[len(prefix):])))
		return true
	})
	if err != nil {
		return nil, err
	}
	out := make([]*trade.Trade, 0, len(keys))
	for _, key := range keys {
		var t trade.Trade
		ok, err := m.getJSON(key, &t)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, &t)
		}
	}
	return out, nil
}

// --- Escrows and disputes ---

func (m *Manager) EscrowPut(e *trade.Escrow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := e.Clone()
	if clone == nil {
		return fmt.Errorf("state: nil escrow")
	}
	return m.putJSON(escrowKey(clone.TradeID), clone)
}

func (m *Manager) EscrowGet(id [32]byte) (*trade.Escrow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var e trade.Escrow
	ok, err := m.getJSON(escrowKey(id), &e)
	if err != nil || !ok {
		return nil, false
	}
	return &e, true
}

func (m *Manager) DisputePut(d *trade.Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := d.Clone()
	if clone == nil {
		return fmt.Errorf("state: nil dispute")
	}
	return m.putJSON(disputeKey(clone.TradeID), clone)
}

func (m *Manager) DisputeGet(id [32]byte) (*trade.Dispute, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var d trade.Dispute
	ok, err := m.getJSON(disputeKey(id), &d)
	if err != nil || !ok {
		return nil, false
	}
	return &d, true
}

// --- Arbitrator registry ---

func (m *Manager) ArbitratorSet(fiat string, addr [20]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Put(arbitratorKey(fiat), addr[:])
}

func (m *Manager) ArbitratorGet(fiat string) ([20]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var addr [20]byte
	raw, err := m.db.Get(arbitratorKey(fiat))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return addr, false, nil
	}
	if err != nil {
		return addr, false, err
	}
	if len(raw) != len(addr) {
		return addr, false, fmt.Errorf("state: corrupt arbitrator record for %s", fiat)
	}
	copy(addr[:], raw)
	return addr, true, nil
}

func (m *Manager) ArbitratorRemove(fiat string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Delete(arbitratorKey(fiat))
}

func (m *Manager) Arbitrators() (map[string][20]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][20]byte)
	err := m.db.IteratePrefix([]byte(prefixArbitrator), func(key, value []byte) bool {
		if len(value) != 20 {
			return true
		}
		var addr [20]byte
		copy(addr[:], value)
		out[string(key[len(prefixArbitrator):])] = addr
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- Accounts ---

func (m *Manager) account(addr [20]byte) (*types.Account, error) {
	account := types.NewAccount()
	if _, err := m.getJSON(accountKey(addr), account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccount returns a copy of the account, empty when unknown.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, err := m.account(addr)
	if err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// Balance returns the account's balance for a denom.
func (m *Manager) Balance(addr [20]byte, denom string) (*big.Int, error) {
	account, err := m.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance(denom), nil
}

// Credit mints balance onto an account. Used for genesis funding and tests;
// the engines themselves only move existing balance.
func (m *Manager) Credit(addr [20]byte, denom string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: credit amount must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	account, err := m.account(addr)
	if err != nil {
		return err
	}
	account.SetBalance(denom, new(big.Int).Add(account.Balance(denom), amount))
	return m.putJSON(accountKey(addr), account)
}

// BalanceTransfer atomically moves balance between two accounts. The debit is
// validated before either account is written. A transfer to self is a no-op
// once the balance check passes; it must never change the total supply.
func (m *Manager) BalanceTransfer(from, to [20]byte, denom string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: transfer amount must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sender, err := m.account(from)
	if err != nil {
		return err
	}
	balance := sender.Balance(denom)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: account %x has %s %s, needs %s", ErrInsufficientBalance, from, balance, denom, amount)
	}
	if from == to {
		return nil
	}
	recipient, err := m.account(to)
	if err != nil {
		return err
	}
	sender.SetBalance(denom, balance.Sub(balance, amount))
	recipient.SetBalance(denom, new(big.Int).Add(recipient.Balance(denom), amount))
	if err := m.putJSON(accountKey(from), sender); err != nil {
		return err
	}
	return m.putJSON(accountKey(to), recipient)
}

// --- Params ---

func (m *Manager) ParamStoreSet(name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Put(paramsKey(name), value)
}

func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := m.db.Get(paramsKey(name))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// --- Incentives ---

func (m *Manager) IncentivesPeriodPut(p *incentives.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := p.Clone()
	if clone == nil {
		return fmt.Errorf("state: nil period")
	}
	return m.putJSON(incentivePeriodKey(clone.Index), clone)
}

func (m *Manager) IncentivesPeriodGet(index uint64) (*incentives.Period, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var p incentives.Period
	ok, err := m.getJSON(incentivePeriodKey(index), &p)
	if err != nil || !ok {
		return nil, false
	}
	return &p, true
}
