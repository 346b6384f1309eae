package trade

import (
	"encoding/hex"
	"strconv"

	"localex/core/types"
)

const (
	EventTypeTradeOpened        = "trade.opened"
	EventTypeTradeAccepted      = "trade.accepted"
	EventTypeTradeFunded        = "trade.funded"
	EventTypeTradeFiatDeposited = "trade.fiat_deposited"
	EventTypeTradeReleased      = "trade.released"
	EventTypeTradeRefunded      = "trade.refunded"
	EventTypeTradeCanceled      = "trade.canceled"
	EventTypeTradeExpired       = "trade.expired"
	EventTypeTradeDisputed      = "trade.disputed"
	EventTypeTradeResolved      = "trade.resolved"
)

func NewOpenedEvent(t *Trade) *types.Event   { return newTradeEvent(EventTypeTradeOpened, t, nil) }
func NewAcceptedEvent(t *Trade) *types.Event { return newTradeEvent(EventTypeTradeAccepted, t, nil) }
func NewFundedEvent(t *Trade) *types.Event   { return newTradeEvent(EventTypeTradeFunded, t, nil) }

func NewFiatDepositedEvent(t *Trade) *types.Event {
	return newTradeEvent(EventTypeTradeFiatDeposited, t, nil)
}

// NewReleasedEvent records a settlement in the buyer's favour.
func NewReleasedEvent(t *Trade, recipient [20]byte) *types.Event {
	return newTradeEvent(EventTypeTradeReleased, t, map[string]string{
		"recipient": hex.EncodeToString(recipient[:]),
	})
}

// NewRefundedEvent records the escrow returning to the seller.
func NewRefundedEvent(t *Trade) *types.Event { return newTradeEvent(EventTypeTradeRefunded, t, nil) }

func NewCanceledEvent(t *Trade) *types.Event { return newTradeEvent(EventTypeTradeCanceled, t, nil) }
func NewExpiredEvent(t *Trade) *types.Event  { return newTradeEvent(EventTypeTradeExpired, t, nil) }

// NewDisputedEvent records the opening of an arbitration case.
func NewDisputedEvent(t *Trade, openedBy [20]byte) *types.Event {
	return newTradeEvent(EventTypeTradeDisputed, t, map[string]string{
		"openedBy":   hex.EncodeToString(openedBy[:]),
		"arbitrator": hex.EncodeToString(t.Arbitrator[:]),
	})
}

// NewResolvedEvent records the arbitrator's ruling.
func NewResolvedEvent(t *Trade, decision DisputeDecision, recipient [20]byte) *types.Event {
	return newTradeEvent(EventTypeTradeResolved, t, map[string]string{
		"decision":  decision.String(),
		"recipient": hex.EncodeToString(recipient[:]),
	})
}

func newTradeEvent(eventType string, t *Trade, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if t == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized := t.Clone()
	attrs["id"] = hex.EncodeToString(sanitized.ID[:])
	attrs["offerId"] = strconv.FormatUint(sanitized.OfferID, 10)
	attrs["buyer"] = hex.EncodeToString(sanitized.Buyer[:])
	attrs["seller"] = hex.EncodeToString(sanitized.Seller[:])
	attrs["denom"] = sanitized.Denom
	attrs["fiat"] = sanitized.FiatCurrency
	attrs["amount"] = sanitized.Amount.String()
	attrs["status"] = sanitized.Status.String()
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
