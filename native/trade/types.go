package trade

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// TradeStatus represents the lifecycle phases of a fiat-for-crypto trade.
type TradeStatus uint8

const (
	StatusRequestCreated TradeStatus = iota
	StatusRequestAccepted
	StatusRequestCanceled
	StatusRequestExpired
	StatusEscrowFunded
	StatusFiatDeposited
	StatusEscrowReleased
	StatusEscrowRefunded
	StatusEscrowDisputed
	StatusSettledByArbitration
)

// String returns the canonical name used in events and RPC payloads.
func (s TradeStatus) String() string {
	switch s {
	case StatusRequestCreated:
		return "request_created"
	case StatusRequestAccepted:
		return "request_accepted"
	case StatusRequestCanceled:
		return "request_canceled"
	case StatusRequestExpired:
		return "request_expired"
	case StatusEscrowFunded:
		return "escrow_funded"
	case StatusFiatDeposited:
		return "fiat_deposited"
	case StatusEscrowReleased:
		return "escrow_released"
	case StatusEscrowRefunded:
		return "escrow_refunded"
	case StatusEscrowDisputed:
		return "escrow_disputed"
	case StatusSettledByArbitration:
		return "settled_by_arbitration"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Valid reports whether the status value is supported.
func (s TradeStatus) Valid() bool {
	return s <= StatusSettledByArbitration
}

// Terminal reports whether the status admits no further transitions.
func (s TradeStatus) Terminal() bool {
	switch s {
	case StatusRequestCanceled, StatusRequestExpired, StatusEscrowReleased,
		StatusEscrowRefunded, StatusSettledByArbitration:
		return true
	default:
		return false
	}
}

// statusTransitions is the explicit legality table for the trade state
// machine. Terminal states are terminal by omission.
var statusTransitions = map[TradeStatus][]TradeStatus{
	StatusRequestCreated:  {StatusRequestAccepted, StatusRequestCanceled, StatusRequestExpired},
	StatusRequestAccepted: {StatusEscrowFunded, StatusRequestCanceled, StatusRequestExpired},
	StatusEscrowFunded:    {StatusFiatDeposited, StatusEscrowDisputed, StatusEscrowRefunded},
	StatusFiatDeposited:   {StatusEscrowReleased, StatusEscrowDisputed},
	StatusEscrowDisputed:  {StatusSettledByArbitration},
}

// CanTransition reports whether the status change is permitted.
func CanTransition(from, to TradeStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Trade tracks one taker's acceptance of an offer through escrow funding,
// fiat attestation and settlement. Buyer and Seller are fixed at open time
// from the offer type; Arbitrator stays zero until a dispute assigns one.
type Trade struct {
	ID            [32]byte
	OfferID       uint64
	Buyer         [20]byte
	Seller        [20]byte
	Arbitrator    [20]byte
	Denom         string
	FiatCurrency  string
	Amount        *big.Int
	Status        TradeStatus
	CreatedAt     int64
	ExpiresAt     int64
	FundedAt      int64
	TimeToDispute int64
	FiatDeadline  int64
}

// Clone returns a deep copy of the trade so callers can mutate the result
// without affecting the stored instance.
func (t *Trade) Clone() *Trade {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Amount != nil {
		clone.Amount = new(big.Int).Set(t.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// Expired reports whether the trade's current deadline has lapsed: the open
// window before funding, the fiat window while funded. Trades with an
// attested fiat deposit never expire.
func (t *Trade) Expired(now int64) bool {
	if t == nil {
		return false
	}
	switch t.Status {
	case StatusRequestCreated, StatusRequestAccepted:
		return now > t.ExpiresAt
	case StatusEscrowFunded:
		return now > t.FiatDeadline
	default:
		return false
	}
}

// deadline returns the timestamp whose lapse makes the trade expired in its
// current status.
func (t *Trade) deadline() int64 {
	if t.Status == StatusEscrowFunded {
		return t.FiatDeadline
	}
	return t.ExpiresAt
}

// ComputeTradeID derives the deterministic trade identifier from the offer,
// the taker and a per-venue nonce.
func ComputeTradeID(offerID uint64, taker [20]byte, nonce uint64) [32]byte {
	buf := make([]byte, 0, 8+len(taker)+8)
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], offerID)
	buf = append(buf, scratch[:]...)
	buf = append(buf, taker[:]...)
	binary.BigEndian.PutUint64(scratch[:], nonce)
	buf = append(buf, scratch[:]...)
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256(buf))
	return id
}

// VaultAddress derives the per-denom custody account holding funded escrows.
func VaultAddress(denom string) [20]byte {
	hash := ethcrypto.Keccak256([]byte("localex/vault/" + strings.ToUpper(strings.TrimSpace(denom))))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

// Escrow records the custody of a funded trade. LockedAmount and FundedAmount
// are always equal once funded; the split exists so a partially validated
// funding attempt can never be mistaken for custody.
type Escrow struct {
	TradeID      [32]byte
	Denom        string
	LockedAmount *big.Int
	FundedAmount *big.Int
	Released     bool
	Recipient    [20]byte
	ReleasedAt   int64
}

// Clone returns a deep copy of the escrow record.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.LockedAmount != nil {
		clone.LockedAmount = new(big.Int).Set(e.LockedAmount)
	} else {
		clone.LockedAmount = big.NewInt(0)
	}
	if e.FundedAmount != nil {
		clone.FundedAmount = new(big.Int).Set(e.FundedAmount)
	} else {
		clone.FundedAmount = big.NewInt(0)
	}
	return &clone
}

// DisputeDecision is the arbitrator's ruling on a disputed trade.
type DisputeDecision uint8

const (
	DecisionUndecided DisputeDecision = iota
	DecisionFavorBuyer
	DecisionFavorSeller
)

func (d DisputeDecision) String() string {
	switch d {
	case DecisionUndecided:
		return "undecided"
	case DecisionFavorBuyer:
		return "favor_buyer"
	case DecisionFavorSeller:
		return "favor_seller"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// ParseDecision converts an RPC decision name into a DisputeDecision.
func ParseDecision(raw string) (DisputeDecision, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "favor_buyer", "buyer":
		return DecisionFavorBuyer, nil
	case "favor_seller", "seller":
		return DecisionFavorSeller, nil
	default:
		return DecisionUndecided, fmt.Errorf("trade: unknown decision %q", raw)
	}
}

// Dispute records an arbitration case for a trade. Terminal once decided.
type Dispute struct {
	TradeID    [32]byte
	Arbitrator [20]byte
	OpenedBy   [20]byte
	OpenedAt   int64
	Decision   DisputeDecision
	DecidedAt  int64
}

// Clone returns a copy of the dispute record.
func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}
