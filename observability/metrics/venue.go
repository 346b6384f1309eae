package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type VenueMetrics struct {
	offersCreated  prometheus.Counter
	tradesOpened   prometheus.Counter
	tradesSettled  *prometheus.CounterVec
	tradesDisputed prometheus.Counter
	tradesExpired  prometheus.Counter
	escrowLocked   *prometheus.GaugeVec
	rewardsClaimed prometheus.Counter
}

var (
	venueOnce     sync.Once
	venueRegistry *VenueMetrics
)

func Venue() *VenueMetrics {
	venueOnce.Do(func() {
		venueRegistry = &VenueMetrics{
			offersCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "venue_offers_created_total",
				Help: "Count of offers registered on the venue.",
			}),
			tradesOpened: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "venue_trades_opened_total",
				Help: "Count of trade requests opened against offers.",
			}),
			tradesSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "venue_trades_settled_total",
				Help: "Count of trades reaching a terminal settlement by outcome.",
			}, []string{"outcome"}),
			tradesDisputed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "venue_trades_disputed_total",
				Help: "Count of trades escalated to arbitration.",
			}),
			tradesExpired: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "venue_trades_expired_total",
				Help: "Count of trades materialised as expired.",
			}),
			escrowLocked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "venue_escrow_locked",
				Help: "Crypto amount currently held in the custody vault per denom.",
			}, []string{"denom"}),
			rewardsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "venue_rewards_claimed_total",
				Help: "Count of incentive reward claims paid out.",
			}),
		}
		prometheus.MustRegister(
			venueRegistry.offersCreated,
			venueRegistry.tradesOpened,
			venueRegistry.tradesSettled,
			venueRegistry.tradesDisputed,
			venueRegistry.tradesExpired,
			venueRegistry.escrowLocked,
			venueRegistry.rewardsClaimed,
		)
	})
	return venueRegistry
}

func (m *VenueMetrics) ObserveOfferCreated() {
	if m == nil {
		return
	}
	m.offersCreated.Inc()
}

func (m *VenueMetrics) ObserveTradeOpened() {
	if m == nil {
		return
	}
	m.tradesOpened.Inc()
}

func (m *VenueMetrics) ObserveTradeSettled(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.tradesSettled.WithLabelValues(outcome).Inc()
}

func (m *VenueMetrics) ObserveTradeDisputed() {
	if m == nil {
		return
	}
	m.tradesDisputed.Inc()
}

func (m *VenueMetrics) ObserveTradeExpired() {
	if m == nil {
		return
	}
	m.tradesExpired.Inc()
}

func (m *VenueMetrics) SetEscrowLocked(denom string, amount float64) {
	if m == nil || denom == "" {
		return
	}
	m.escrowLocked.WithLabelValues(denom).Set(amount)
}

func (m *VenueMetrics) ObserveRewardClaimed() {
	if m == nil {
		return
	}
	m.rewardsClaimed.Inc()
}
