package offer

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrOfferNotActive rejects trades against paused or archived offers.
var ErrOfferNotActive = errors.New("offer: offer is not active")

// ErrOfferArchived rejects edits to archived offers.
var ErrOfferArchived = errors.New("offer: offer is archived")

// OfferNotFoundError reports a lookup for an unknown offer id.
type OfferNotFoundError struct {
	OfferID uint64
}

func (e *OfferNotFoundError) Error() string {
	return fmt.Sprintf("offer %d not found", e.OfferID)
}

// OfferMaxAboveTradingLimitError reports an offer whose max amount exceeds the
// per-denom trading limit.
type OfferMaxAboveTradingLimitError struct {
	MaxAmount    *big.Int
	TradingLimit *big.Int
}

func (e *OfferMaxAboveTradingLimitError) Error() string {
	return fmt.Sprintf("offer max amount %s is above the trading limit %s", e.MaxAmount, e.TradingLimit)
}

// InvalidOfferStateChangeError reports a transition missing from the legality
// table.
type InvalidOfferStateChangeError struct {
	From OfferState
	To   OfferState
}

func (e *InvalidOfferStateChangeError) Error() string {
	return fmt.Sprintf("invalid offer state change from %s to %s", e.From, e.To)
}

// InvalidOfferAmountError reports a requested trade amount outside the offer's
// range.
type InvalidOfferAmountError struct {
	Amount    *big.Int
	MinAmount *big.Int
	MaxAmount *big.Int
}

func (e *InvalidOfferAmountError) Error() string {
	return fmt.Sprintf("amount %s is outside of offer amount range [%s, %s]", e.Amount, e.MinAmount, e.MaxAmount)
}
