package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application counters on a private registry. They are
// exported by writing a node-exporter textfile on shutdown.
type Metrics struct {
	registry *prometheus.Registry

	PurchasesTotal   prometheus.Counter
	PurchaseFailures *prometheus.CounterVec
	RevenueTotal     prometheus.Counter
	Cancellations    prometheus.Counter
	PersistFailures  *prometheus.CounterVec
	RecoveredTx      prometheus.Counter
	CatalogFlights   prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PurchasesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "flightdesk_purchases_total",
			Help: "The total number of completed ticket purchases",
		}),
		PurchaseFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flightdesk_purchase_failures_total",
			Help: "Ticket purchases that did not complete, by reason",
		}, []string{"reason"}),
		RevenueTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "flightdesk_revenue_total",
			Help: "Sum of ticket prices of completed purchases",
		}),
		Cancellations: factory.NewCounter(prometheus.CounterOpts{
			Name: "flightdesk_cancellations_total",
			Help: "The total number of cancelled tickets",
		}),
		PersistFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flightdesk_persist_failures_total",
			Help: "Durable writes that failed, by store",
		}, []string{"store"}),
		RecoveredTx: factory.NewCounter(prometheus.CounterOpts{
			Name: "flightdesk_journal_recovered_total",
			Help: "Interrupted purchases completed from the journal at startup",
		}),
		CatalogFlights: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flightdesk_catalog_flights",
			Help: "Number of flights in the catalog",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics to path in the prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
