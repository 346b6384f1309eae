package rpc

import (
	"encoding/hex"
	"math/big"

	"localex/crypto"
	"localex/native/offer"
	"localex/native/trade"
	"localex/native/validation"
)

func parseAddr(field, raw string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return out, &validation.InvalidParameterError{Parameter: field, Message: err.Error()}
	}
	if addr.Prefix() != crypto.LCXPrefix {
		return out, &validation.InvalidParameterError{Parameter: field, Message: "address prefix must be lcx"}
	}
	return addr.Array(), nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, &validation.InvalidParameterError{Parameter: field, Message: "not a base-10 integer"}
	}
	return amount, nil
}

func parseTradeID(raw string) ([32]byte, error) {
	var out [32]byte
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != len(out) {
		return out, &validation.InvalidParameterError{Parameter: "tradeId", Message: "expected 32 hex-encoded bytes"}
	}
	copy(out[:], decoded)
	return out, nil
}

type offerResult struct {
	ID           uint64 `json:"id"`
	Owner        string `json:"owner"`
	Denom        string `json:"denom"`
	FiatCurrency string `json:"fiatCurrency"`
	Type         string `json:"type"`
	Rate         string `json:"rate"`
	MinAmount    string `json:"minAmount"`
	MaxAmount    string `json:"maxAmount"`
	State        string `json:"state"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
}

func newOfferResult(o *offer.Offer) offerResult {
	return offerResult{
		ID:           o.ID,
		Owner:        crypto.MustAddress(o.Owner).String(),
		Denom:        o.Denom,
		FiatCurrency: o.FiatCurrency,
		Type:         o.Type.String(),
		Rate:         o.Rate.String(),
		MinAmount:    o.MinAmount.String(),
		MaxAmount:    o.MaxAmount.String(),
		State:        o.State.String(),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

type tradeResult struct {
	ID            string `json:"id"`
	OfferID       uint64 `json:"offerId"`
	Buyer         string `json:"buyer"`
	Seller        string `json:"seller"`
	Arbitrator    string `json:"arbitrator,omitempty"`
	Denom         string `json:"denom"`
	FiatCurrency  string `json:"fiatCurrency"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"createdAt"`
	ExpiresAt     int64  `json:"expiresAt"`
	FundedAt      int64  `json:"fundedAt,omitempty"`
	TimeToDispute int64  `json:"timeToDispute,omitempty"`
	FiatDeadline  int64  `json:"fiatDeadline,omitempty"`
}

func newTradeResult(t *trade.Trade) tradeResult {
	result := tradeResult{
		ID:            hex.EncodeToString(t.ID[:]),
		OfferID:       t.OfferID,
		Buyer:         crypto.MustAddress(t.Buyer).String(),
		Seller:        crypto.MustAddress(t.Seller).String(),
		Denom:         t.Denom,
		FiatCurrency:  t.FiatCurrency,
		Amount:        t.Amount.String(),
		Status:        t.Status.String(),
		CreatedAt:     t.CreatedAt,
		ExpiresAt:     t.ExpiresAt,
		FundedAt:      t.FundedAt,
		TimeToDispute: t.TimeToDispute,
		FiatDeadline:  t.FiatDeadline,
	}
	var zero [20]byte
	if t.Arbitrator != zero {
		result.Arbitrator = crypto.MustAddress(t.Arbitrator).String()
	}
	return result
}
