package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// ingestPayloads counts payloads by classified kind and recorded outcome.
	ingestPayloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_payloads_total",
			Help: "Webhook payloads processed, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// ingestItems counts per-item results (inserted, duplicate, updated,
	// missing, invalid, failed).
	ingestItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_items_total",
			Help: "Messages and status events applied, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(ingestPayloads, ingestItems)
}
