package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"giftlist/internal/db"
)

var (
	itemsDesc = prometheus.NewDesc(
		"giftlist_items",
		"Number of items by aggregate purchase state",
		[]string{"state"},
		nil,
	)

	SignIns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "giftlist_sign_ins_total",
		Help: "Sign-in attempts by outcome",
	}, []string{"outcome"})

	AnnotationFetchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "giftlist_annotation_fetch_failures_total",
		Help: "Per-item giver annotation reads that failed and fell back to defaults",
	})

	SubscriptionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "giftlist_subscription_errors_total",
		Help: "Live feed reload and listener errors by feed",
	}, []string{"feed"})

	WriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "giftlist_write_failures_total",
		Help: "Failed user-initiated writes by operation",
	}, []string{"op"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "giftlist_active_sessions",
		Help: "Signed-in sessions with live state",
	})

	LinkChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "giftlist_link_checks_total",
		Help: "Item link health checks by resulting status",
	}, []string{"status"})
)

// ItemCollector reads item purchase-state counts from the database on each scrape.
type ItemCollector struct {
	db  *db.DB
	log logrus.FieldLogger
}

// Describe sends the metric descriptor to the channel.
func (c *ItemCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- itemsDesc
}

// Collect emits the current counts as gauges.
func (c *ItemCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.db.CountItemsByPurchaseState(ctx)
	if err != nil {
		c.log.WithError(err).Error("Failed to collect item metrics")
		return
	}
	ch <- prometheus.MustNewConstMetric(itemsDesc, prometheus.GaugeValue, float64(counts.Open), "open")
	ch <- prometheus.MustNewConstMetric(itemsDesc, prometheus.GaugeValue, float64(counts.Purchased), "purchased")
}

var initOnce sync.Once

// Init registers all collectors. Must be called once at startup.
func Init(database *db.DB, log logrus.FieldLogger) {
	initOnce.Do(func() {
		prometheus.MustRegister(
			&ItemCollector{db: database, log: log},
			SignIns,
			AnnotationFetchFailures,
			SubscriptionErrors,
			WriteFailures,
			ActiveSessions,
			LinkChecks,
		)
	})
}
