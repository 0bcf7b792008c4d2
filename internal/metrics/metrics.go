// Package metrics exposes Prometheus collectors for the farm server.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcoot/villefarm/internal/events"
	"github.com/mcoot/villefarm/internal/model"
)

const namespace = "villefarm"

// Metrics owns a registry and the collectors registered on it
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	operations   *prometheus.CounterVec
	plantings    *prometheus.CounterVec
	harvests     *prometheus.CounterVec
	goldSpent    prometheus.Counter
	goldRewarded prometheus.Counter
	players      prometheus.Counter

	sweepRemoved *prometheus.CounterVec
}

var _ events.Publisher = (*Metrics)(nil)

// New creates a Metrics with its own registry, including process and Go runtime collectors
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "path"}),

		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "farm",
			Name:      "operations_total",
			Help:      "Farm operations by outcome.",
		}, []string{"operation", "outcome"}),
		plantings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "farm",
			Name:      "plantings_total",
			Help:      "Successful plantings by kind.",
		}, []string{"kind"}),
		harvests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "farm",
			Name:      "harvests_total",
			Help:      "Successful harvests by kind.",
		}, []string{"kind"}),
		goldSpent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "farm",
			Name:      "gold_spent_total",
			Help:      "Gold debited by plantings.",
		}),
		goldRewarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "farm",
			Name:      "gold_rewarded_total",
			Help:      "Gold credited by harvests.",
		}),
		players: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "farm",
			Name:      "players_initialized_total",
			Help:      "Players initialized.",
		}),

		sweepRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "removed_total",
			Help:      "Expired items removed by periodic sweeps.",
		}, []string{"target"}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.operations,
		m.plantings,
		m.harvests,
		m.goldSpent,
		m.goldRewarded,
		m.players,
		m.sweepRemoved,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler returns an HTTP handler exposing the registered metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveOperation counts a farm operation under its outcome
func (m *Metrics) ObserveOperation(operation string, err error) {
	m.operations.WithLabelValues(operation, Outcome(err)).Inc()
}

// ObserveSweep counts items removed by a sweep
func (m *Metrics) ObserveSweep(target string, removed int) {
	if removed > 0 {
		m.sweepRemoved.WithLabelValues(target).Add(float64(removed))
	}
}

// Publish updates the per-kind and gold counters from committed events
func (m *Metrics) Publish(_ context.Context, event model.Event) {
	switch p := event.Payload.(type) {
	case model.PlantedPayload:
		m.plantings.WithLabelValues(p.Kind.String()).Inc()
		m.goldSpent.Add(float64(p.Cost))
	case model.HarvestedPayload:
		m.harvests.WithLabelValues(p.Kind.String()).Inc()
		m.goldRewarded.Add(float64(p.Reward))
	case model.PlayerInitializedPayload:
		m.players.Inc()
	}
}

var outcomes = []struct {
	err   error
	label string
}{
	{model.ErrPlayerNotFound, "player_not_found"},
	{model.ErrAlreadyInitialized, "already_initialized"},
	{model.ErrWrongAuthority, "wrong_authority"},
	{model.ErrNotEnoughEnergy, "not_enough_energy"},
	{model.ErrInsufficientFunds, "insufficient_funds"},
	{model.ErrUnknownKind, "unknown_kind"},
	{model.ErrPlotOccupied, "plot_occupied"},
	{model.ErrNotMature, "not_mature"},
	{model.ErrNothingPlanted, "nothing_planted"},
}

// Outcome returns the label value recorded for an operation result
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomes {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "error"
}

// UnmatchedPath labels requests no route matched, so unknown URLs share one series
const UnmatchedPath = "unmatched"

const apiPrefix = "/api/v1"

// InstrumentRouter wraps router with HTTP metrics. Requests are labelled with
// the template of the route they matched, e.g. /farms/{owner}/plant.
func (m *Metrics) InstrumentRouter(router *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			router.ServeHTTP(w, r)
			return
		}

		path := routeLabel(router, r)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		router.ServeHTTP(rec, r)

		method := strings.ToUpper(r.Method)
		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(router *mux.Router, r *http.Request) string {
	var match mux.RouteMatch
	if !router.Match(r, &match) || match.MatchErr != nil || match.Route == nil {
		return UnmatchedPath
	}
	tmpl, err := match.Route.GetPathTemplate()
	if err != nil {
		return UnmatchedPath
	}
	if trimmed := strings.TrimPrefix(tmpl, apiPrefix); trimmed != "" {
		return trimmed
	}
	return tmpl
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush passes through so event streams keep working behind the recorder
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
