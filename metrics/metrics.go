// Package metrics holds the Prometheus collectors of the brochure pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "brochure"

var (
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_fetched_total",
		Help:      "Pages fetched, partitioned by result (ok or error).",
	}, []string{"result"})

	LinkSelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "link_selections_total",
		Help:      "Link selection responses, partitioned by parse outcome.",
	}, []string{"outcome"})

	SelectedLinks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "selected_links_total",
		Help:      "Links selected by the model across all runs.",
	})

	Generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generations_total",
		Help:      "Brochure generations, partitioned by result (done, error, canceled).",
	}, []string{"result"})

	Fragments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_fragments_total",
		Help:      "Streamed model deltas received while generating brochures.",
	})

	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_duration_seconds",
		Help:      "Wall time of a full brochure generation.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
	})
)

const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultDone     = "done"
	ResultCanceled = "canceled"
)
