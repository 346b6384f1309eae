package state

import (
	"encoding/hex"
	"fmt"
)

// Key layout. Records are JSON values under typed prefixes; secondary indexes
// map an address to the primary keys it participates in. Fixed-width decimal
// ids keep prefix iteration in insertion order.
const (
	prefixOffer           = "offer/"
	prefixOfferOwner      = "offer-owner/"
	keyOfferSeq           = "offer-seq"
	prefixTrade           = "trade/"
	prefixTradeParty      = "trade-party/"
	keyTradeSeq           = "trade-seq"
	prefixEscrow          = "escrow/"
	prefixDispute         = "dispute/"
	prefixAccount         = "account/"
	prefixArbitrator      = "arb/"
	prefixParams          = "params/"
	prefixIncentivePeriod = "incentives/period/"
)

func offerKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOffer, id))
}

func offerOwnerKey(owner [20]byte, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", prefixOfferOwner, hex.EncodeToString(owner[:]), id))
}

func offerOwnerPrefix(owner [20]byte) []byte {
	return []byte(prefixOfferOwner + hex.EncodeToString(owner[:]) + "/")
}

func tradeKey(id [32]byte) []byte {
	return []byte(prefixTrade + hex.EncodeToString(id[:]))
}

func tradePartyKey(addr [20]byte, id [32]byte) []byte {
	return []byte(prefixTradeParty + hex.EncodeToString(addr[:]) + "/" + hex.EncodeToString(id[:]))
}

func tradePartyPrefix(addr [20]byte) []byte {
	return []byte(prefixTradeParty + hex.EncodeToString(addr[:]) + "/")
}

func escrowKey(id [32]byte) []byte {
	return []byte(prefixEscrow + hex.EncodeToString(id[:]))
}

func disputeKey(id [32]byte) []byte {
	return []byte(prefixDispute + hex.EncodeToString(id[:]))
}

func accountKey(addr [20]byte) []byte {
	return []byte(prefixAccount + hex.EncodeToString(addr[:]))
}

func arbitratorKey(fiat string) []byte {
	return []byte(prefixArbitrator + fiat)
}

func paramsKey(name string) []byte {
	return []byte(prefixParams + name)
}

func incentivePeriodKey(index uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixIncentivePeriod, index))
}
