package offer

import (
	"encoding/hex"
	"strconv"

	"localex/core/types"
)

const (
	EventTypeOfferCreated      = "offer.created"
	EventTypeOfferUpdated      = "offer.updated"
	EventTypeOfferStateChanged = "offer.state_changed"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// offer.
func NewCreatedEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferCreated, o, nil) }

// NewUpdatedEvent returns the canonical event payload emitted when the owner
// edits the offer's terms.
func NewUpdatedEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferUpdated, o, nil) }

// NewStateChangedEvent returns the payload emitted on a state transition.
func NewStateChangedEvent(o *Offer, from OfferState) *types.Event {
	return newOfferEvent(EventTypeOfferStateChanged, o, map[string]string{"from": from.String()})
}

func newOfferEvent(eventType string, o *Offer, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := Sanitize(o)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["owner"] = hex.EncodeToString(sanitized.Owner[:])
	attrs["denom"] = sanitized.Denom
	attrs["fiat"] = sanitized.FiatCurrency
	attrs["type"] = sanitized.Type.String()
	attrs["rate"] = sanitized.Rate.String()
	attrs["minAmount"] = sanitized.MinAmount.String()
	attrs["maxAmount"] = sanitized.MaxAmount.String()
	attrs["state"] = sanitized.State.String()
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
