package offer

import (
	"fmt"
	"math/big"
	"strings"
)

// OfferState represents the lifecycle states of an advertised offer.
type OfferState uint8

const (
	StateActive OfferState = iota
	StatePaused
	StateArchived
)

// String returns the canonical lowercase name used in events and RPC payloads.
func (s OfferState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateArchived:
		return "archived"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Valid reports whether the state value is within the supported range.
func (s OfferState) Valid() bool {
	switch s {
	case StateActive, StatePaused, StateArchived:
		return true
	default:
		return false
	}
}

// ParseState converts an RPC state name into an OfferState.
func ParseState(raw string) (OfferState, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active":
		return StateActive, nil
	case "paused":
		return StatePaused, nil
	case "archived":
		return StateArchived, nil
	default:
		return 0, fmt.Errorf("offer: unknown state %q", raw)
	}
}

// OfferType encodes which side of the trade the maker takes.
type OfferType uint8

const (
	// TypeBuy means the maker buys crypto: maker is the trade's buyer.
	TypeBuy OfferType = iota
	// TypeSell means the maker sells crypto: maker is the trade's seller.
	TypeSell
)

func (t OfferType) String() string {
	switch t {
	case TypeBuy:
		return "buy"
	case TypeSell:
		return "sell"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

func (t OfferType) Valid() bool {
	return t == TypeBuy || t == TypeSell
}

// ParseType converts an RPC offer type name into an OfferType.
func ParseType(raw string) (OfferType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy":
		return TypeBuy, nil
	case "sell":
		return TypeSell, nil
	default:
		return 0, fmt.Errorf("offer: unknown offer type %q", raw)
	}
}

// stateTransitions is the explicit legality table for offer state changes.
// Archived is terminal by omission.
var stateTransitions = map[OfferState][]OfferState{
	StateActive: {StatePaused, StateArchived},
	StatePaused: {StateActive, StateArchived},
}

// CanTransition reports whether the state change is permitted.
func CanTransition(from, to OfferState) bool {
	for _, next := range stateTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Offer is an advertised intent to trade crypto for fiat within an amount
// range, at a fiat rate per crypto unit.
type Offer struct {
	ID           uint64
	Owner        [20]byte
	Denom        string
	FiatCurrency string
	Type         OfferType
	Rate         *big.Int
	MinAmount    *big.Int
	MaxAmount    *big.Int
	State        OfferState
	CreatedAt    int64
	UpdatedAt    int64
}

// Clone returns a deep copy of the offer so callers can safely mutate the copy
// without affecting the stored instance.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Rate = cloneBigInt(o.Rate)
	clone.MinAmount = cloneBigInt(o.MinAmount)
	clone.MaxAmount = cloneBigInt(o.MaxAmount)
	return &clone
}

// NormalizeDenom returns the canonical uppercase denom symbol.
func NormalizeDenom(denom string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(denom))
	if trimmed == "" {
		return "", fmt.Errorf("offer: denom must not be empty")
	}
	return trimmed, nil
}

// NormalizeFiat returns the canonical uppercase fiat currency code.
func NormalizeFiat(fiat string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(fiat))
	if trimmed == "" {
		return "", fmt.Errorf("offer: fiat currency must not be empty")
	}
	return trimmed, nil
}

// Sanitize validates and normalises the supplied offer, returning a cloned
// instance with canonical denom casing and non-nil amounts. The function does
// not mutate the original value.
func Sanitize(o *Offer) (*Offer, error) {
	if o == nil {
		return nil, fmt.Errorf("offer: nil offer")
	}
	clone := o.Clone()
	denom, err := NormalizeDenom(clone.Denom)
	if err != nil {
		return nil, err
	}
	clone.Denom = denom
	fiat, err := NormalizeFiat(clone.FiatCurrency)
	if err != nil {
		return nil, err
	}
	clone.FiatCurrency = fiat
	if !clone.State.Valid() {
		return nil, fmt.Errorf("offer: invalid state %d", clone.State)
	}
	if !clone.Type.Valid() {
		return nil, fmt.Errorf("offer: invalid type %d", clone.Type)
	}
	if clone.Rate.Sign() <= 0 {
		return nil, fmt.Errorf("offer: rate must be positive")
	}
	if clone.MinAmount.Sign() < 0 || clone.MaxAmount.Sign() < 0 {
		return nil, fmt.Errorf("offer: amounts must be non-negative")
	}
	return clone, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
