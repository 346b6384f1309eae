package trade

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

var (
	errNilState  = errors.New("trade engine: state not configured")
	errNilOffers = errors.New("trade engine: offer engine not configured")
	errNilParams = errors.New("trade engine: params not configured")

	// ErrNoArbitrator is returned when a dispute is opened for a fiat
	// currency without a registered arbitrator.
	ErrNoArbitrator = errors.New("trade: no arbitrator registered for fiat currency")
)

// TradeNotFoundError reports a lookup for an unknown trade id.
type TradeNotFoundError struct {
	TradeID [32]byte
}

func (e *TradeNotFoundError) Error() string {
	return fmt.Sprintf("trade %s not found", hex.EncodeToString(e.TradeID[:]))
}

// InvalidSenderError reports a lifecycle call from an address that holds no
// capability for it.
type InvalidSenderError struct {
	Sender [20]byte
	Buyer  [20]byte
	Seller [20]byte
}

func (e *InvalidSenderError) Error() string {
	return fmt.Sprintf("invalid sender %s: expected buyer %s or seller %s",
		hex.EncodeToString(e.Sender[:]), hex.EncodeToString(e.Buyer[:]), hex.EncodeToString(e.Seller[:]))
}

// InvalidTradeStateError reports an operation attempted while the trade is
// not in the single status the operation requires.
type InvalidTradeStateError struct {
	Current  TradeStatus
	Expected TradeStatus
}

func (e *InvalidTradeStateError) Error() string {
	return fmt.Sprintf("invalid trade state %s, expected %s", e.Current, e.Expected)
}

// InvalidTradeStateChangeError reports a status transition missing from the
// legality table.
type InvalidTradeStateChangeError struct {
	From TradeStatus
	To   TradeStatus
}

func (e *InvalidTradeStateChangeError) Error() string {
	return fmt.Sprintf("invalid trade state change from %s to %s", e.From, e.To)
}

// FundEscrowError reports a funding attempt whose amount does not exactly
// match the trade amount. The attempt leaves no state behind.
type FundEscrowError struct {
	RequiredAmount *big.Int
	SentAmount     *big.Int
}

func (e *FundEscrowError) Error() string {
	return fmt.Sprintf("fund escrow requires exactly %s, sent %s", e.RequiredAmount, e.SentAmount)
}

// PrematureDisputeRequestError reports a dispute opened before the dispute
// window for the trade has started.
type PrematureDisputeRequestError struct {
	TimeToDispute int64
}

func (e *PrematureDisputeRequestError) Error() string {
	return fmt.Sprintf("dispute unavailable until %d", e.TimeToDispute)
}

// RefundErrorNotExpired reports a refund requested while the trade's current
// deadline has not lapsed.
type RefundErrorNotExpired struct {
	TradeID   [32]byte
	ExpiresAt int64
}

func (e *RefundErrorNotExpired) Error() string {
	return fmt.Sprintf("refund unavailable: trade %s does not expire until %d",
		hex.EncodeToString(e.TradeID[:]), e.ExpiresAt)
}

// TradeExpiredError rejects progress calls on a trade whose deadline has
// lapsed. Expired trades can only be refunded.
type TradeExpiredError struct {
	TradeID   [32]byte
	ExpiredAt int64
	CreatedAt int64
}

func (e *TradeExpiredError) Error() string {
	return fmt.Sprintf("trade %s expired at %d (created %d)",
		hex.EncodeToString(e.TradeID[:]), e.ExpiredAt, e.CreatedAt)
}
