package usecase

import "github.com/prometheus/client_golang/prometheus"

var (
	convoyPasses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "p2pbot_convoy_passes_total",
		Help: "Convoy repricing passes executed",
	})
	convoyAdjustments = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "p2pbot_convoy_adjustments_total",
		Help: "Live ads whose price was adjusted",
	})
	intentionsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "p2pbot_intentions_completed_total",
		Help: "Intentions whose upstream ad disappeared",
	})
	adsPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "p2pbot_ads_placed_total",
		Help: "Ads successfully published upstream",
	})
	placeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "p2pbot_place_failures_total",
		Help: "Ad placements that marked the intention FAILED",
	})
	orderbookRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "p2pbot_orderbook_refreshes_total",
		Help: "Orderbook cache misses that triggered an upstream fetch",
	})
	offerNotifications = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "p2pbot_offer_notifications_total",
		Help: "New-offer notifications pushed to the mailbox",
	})
)

func init() {
	prometheus.MustRegister(
		convoyPasses,
		convoyAdjustments,
		intentionsCompleted,
		adsPlaced,
		placeFailures,
		orderbookRefreshes,
		offerNotifications,
	)
}
