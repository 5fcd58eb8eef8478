package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "commerce"

var (
	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_placed_total",
		Help:      "Orders successfully placed.",
	})

	OrderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_failures_total",
		Help:      "Order placements rejected, by reason.",
	}, []string{"reason"})

	InventoryRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inventory_rejections_total",
		Help:      "Inventory adjustments rejected because the result would go negative.",
	})

	PromotionEvaluations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "promotion_evaluations_total",
		Help:      "Promotion evaluations performed (validate, suggested, placement).",
	})

	PlacementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "order_placement_seconds",
		Help:      "Wall time of the whole order placement transaction.",
		Buckets:   prometheus.DefBuckets,
	})
)
