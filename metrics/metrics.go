/*
Package metrics exposes Prometheus collectors for the engine, the store and HTTP.

PURPOSE:
  A Metrics value owns its registry so several can coexist in tests. It plugs into the
  rest of the system at four points:

    Recorder          parcelas.Options.Recorder       operations by outcome
    CacheEvent        parcelas.Options.OnCacheEvent   cache hits / misses / invalidations
    InstrumentStore   wraps the table.Store           request latency per backend and op
    Middleware        chi middleware                  HTTP requests and latency

  SetExpiredContracts is fed by the renewal watcher.

SEE ALSO:
  - cmd/server/main.go: wiring
  - api/scheduler.go: expired contract gauge
*/
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/parcelas/table"
)

// Metrics holds the collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	operations    *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	cacheEvents   *prometheus.CounterVec
	expired       prometheus.Gauge
	requests      *prometheus.CounterVec
	reqDuration   *prometheus.HistogramVec
}

// New creates and registers every collector, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parcelas_operations_total",
				Help: "Write operations by outcome (ok, client_error, store_error)",
			},
			[]string{"operation", "outcome"},
		),
		storeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parcelas_store_request_duration_seconds",
				Help:    "Duration of store requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "op"},
		),
		cacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parcelas_cache_events_total",
				Help: "Read cache hits, misses and invalidations",
			},
			[]string{"table", "event"},
		),
		expired: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parcelas_expired_contracts",
			Help: "Active contracts past their end date at the last scan",
		}),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		reqDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
	m.registry.MustRegister(
		m.operations, m.storeDuration, m.cacheEvents, m.expired, m.requests, m.reqDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOperation implements parcelas.Recorder.
func (m *Metrics) ObserveOperation(op, outcome string) {
	m.operations.WithLabelValues(op, outcome).Inc()
}

// CacheEvent counts one cache event.
func (m *Metrics) CacheEvent(t table.Name, event string) {
	m.cacheEvents.WithLabelValues(string(t), event).Inc()
}

// SetExpiredContracts records the last expired-contract scan.
func (m *Metrics) SetExpiredContracts(n int) {
	m.expired.Set(float64(n))
}

// =============================================================================
// HTTP
// =============================================================================

// Middleware records request count and latency labelled by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		statusStr := strconv.Itoa(status)
		m.requests.WithLabelValues(r.Method, path, statusStr).Inc()
		m.reqDuration.WithLabelValues(r.Method, path, statusStr).Observe(time.Since(start).Seconds())
	})
}

// =============================================================================
// STORE
// =============================================================================

// InstrumentStore times every request s serves. Transaction support is preserved.
func (m *Metrics) InstrumentStore(s table.Store, backend string) table.Store {
	is := &instrumentedStore{next: s, backend: backend, hist: m.storeDuration}
	if txs, ok := s.(table.TxStore); ok {
		return &instrumentedTxStore{instrumentedStore: is, tx: txs}
	}
	return is
}

type instrumentedStore struct {
	next    table.Store
	backend string
	hist    *prometheus.HistogramVec
}

func (s *instrumentedStore) observe(op string, start time.Time) {
	s.hist.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
}

func (s *instrumentedStore) Select(ctx context.Context, t table.Name, offset, limit int) ([]table.Row, error) {
	defer s.observe("select", time.Now())
	return s.next.Select(ctx, t, offset, limit)
}

func (s *instrumentedStore) Insert(ctx context.Context, t table.Name, rows []table.Row) ([]table.Row, error) {
	defer s.observe("insert", time.Now())
	return s.next.Insert(ctx, t, rows)
}

func (s *instrumentedStore) Update(ctx context.Context, t table.Name, patch table.Row, filter table.Filter) ([]table.Row, error) {
	defer s.observe("update", time.Now())
	return s.next.Update(ctx, t, patch, filter)
}

func (s *instrumentedStore) Delete(ctx context.Context, t table.Name, filter table.Filter) ([]table.Row, error) {
	defer s.observe("delete", time.Now())
	return s.next.Delete(ctx, t, filter)
}

type instrumentedTxStore struct {
	*instrumentedStore
	tx table.TxStore
}

// WithTx times the whole transaction; statements inside it are timed individually.
func (s *instrumentedTxStore) WithTx(ctx context.Context, fn func(table.Store) error) error {
	defer s.observe("tx", time.Now())
	return s.tx.WithTx(ctx, func(inner table.Store) error {
		return fn(&instrumentedStore{next: inner, backend: s.backend, hist: s.hist})
	})
}
