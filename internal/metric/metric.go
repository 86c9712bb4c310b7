// Package metric holds the Prometheus collectors for the embedding, indexing
// and retrieval stages and the HTTP handler that exposes them.
//
// All observe methods are safe on a nil *Metrics, so components take an
// optional *Metrics and never check for it.
package metric

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"papersearch/internal/domain"
)

const namespace = "papersearch"

// Metrics contains the pipeline and query metrics.
type Metrics struct {
	EmbeddedTexts   prometheus.Counter
	EmbedBatches    prometheus.Counter
	EmbedDuration   prometheus.Histogram
	UpsertedEntries prometheus.Counter
	Queries         *prometheus.CounterVec
	QueryDuration   prometheus.Histogram
	CacheLookups    *prometheus.CounterVec
	Errors          *prometheus.CounterVec
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		EmbeddedTexts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "texts_total",
			Help:      "Total number of texts sent to the embedding backend",
		}),
		EmbedBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "batches_total",
			Help:      "Total number of backend embedding calls",
		}),
		EmbedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "batch_duration_seconds",
			Help:      "Duration of one backend embedding call",
			Buckets:   prometheus.DefBuckets,
		}),
		UpsertedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "upserted_entries_total",
			Help:      "Total number of entries written to the vector index",
		}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Retrieval requests by outcome (hits, empty, error)",
		}, []string{"status"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "End-to-end retrieval latency including query embedding",
			Buckets:   prometheus.DefBuckets,
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "cache_lookups_total",
			Help:      "Query cache lookups by result (hit, miss)",
		}, []string{"result"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by stage and kind",
		}, []string{"stage", "kind"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.EmbeddedTexts, m.EmbedBatches, m.EmbedDuration, m.UpsertedEntries,
		m.Queries, m.QueryDuration, m.CacheLookups, m.Errors,
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding a fresh Metrics plus Go runtime and
// process collectors.
func NewRegistry() (*prometheus.Registry, *Metrics, error) {
	reg := prometheus.NewRegistry()
	m := New()
	if err := m.Register(reg); err != nil {
		return nil, nil, err
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, m, nil
}

func (m *Metrics) ObserveEmbedBatch(texts int, d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Errors.WithLabelValues("embed", ErrorKind(err)).Inc()
		return
	}
	m.EmbedBatches.Inc()
	m.EmbeddedTexts.Add(float64(texts))
	m.EmbedDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveUpsert(entries int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Errors.WithLabelValues("upsert", ErrorKind(err)).Inc()
		return
	}
	m.UpsertedEntries.Add(float64(entries))
}

func (m *Metrics) ObserveQuery(hits int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.QueryDuration.Observe(d.Seconds())
	switch {
	case err != nil:
		m.Queries.WithLabelValues("error").Inc()
		m.Errors.WithLabelValues("retrieve", ErrorKind(err)).Inc()
	case hits == 0:
		m.Queries.WithLabelValues("empty").Inc()
	default:
		m.Queries.WithLabelValues("hits").Inc()
	}
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

// ErrorKind maps an error to a low-cardinality label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, domain.ErrEncoding):
		return "encoding"
	case errors.Is(err, domain.ErrMalformedChunk):
		return "malformed_chunk"
	case errors.Is(err, domain.ErrShapeMismatch):
		return "shape_mismatch"
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, domain.ErrInvalidK):
		return "invalid_k"
	default:
		return "other"
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Serve runs a /metrics endpoint on addr until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
