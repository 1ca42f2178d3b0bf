package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the process's Prometheus collectors. Registered once at
// startup and passed to the Handler so every component can record against
// the same collector set, the pattern cordum's control-plane core uses for
// its own request/latency counters.
type Metrics struct {
	EventsIntercepted prometheus.Counter
	EventsDropped     prometheus.Counter
	RecordsAppended   prometheus.Counter
	BatchesClosed     prometheus.Counter
	FidelitySelected  *prometheus.CounterVec
	BundlesVerified   *prometheus.CounterVec
}

// NewMetrics constructs and registers the collector set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsIntercepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caas_events_intercepted_total",
			Help: "Total compliance events accepted by the interceptor.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caas_events_dropped_total",
			Help: "Events counted for completeness but dropped from the pull queue because it was full.",
		}),
		RecordsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caas_records_appended_total",
			Help: "Total audit records appended to the ledger.",
		}),
		BatchesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caas_merkle_batches_closed_total",
			Help: "Total Merkle batches closed.",
		}),
		FidelitySelected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caas_fidelity_selected_total",
			Help: "Count of records emitted per fidelity level.",
		}, []string{"fidelity"}),
		BundlesVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caas_bundles_verified_total",
			Help: "Count of proof bundle verifications by outcome.",
		}, []string{"valid"}),
	}
	reg.MustRegister(m.EventsIntercepted, m.EventsDropped, m.RecordsAppended, m.BatchesClosed, m.FidelitySelected, m.BundlesVerified)
	return m
}
