// Package metrics translates trace events into Prometheus series. The
// collector subscribes to the event bus and owns a private registry, so
// the exposition endpoint only ever shows deliberation metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/models"
)

// Collector aggregates deliberation metrics from trace events.
type Collector struct {
	registry *prometheus.Registry

	sessionsTotal   *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	sessionTokens   prometheus.Histogram
	activeSessions  prometheus.Gauge

	memberLatency *prometheus.HistogramVec
	memberTokens  *prometheus.CounterVec

	votesTotal      prometheus.Counter
	consensusTotal  *prometheus.CounterVec
	iterationsTotal prometheus.Counter

	correctionsTotal  prometheus.Counter
	backupsTotal      prometheus.Counter
	compressionsTotal prometheus.Counter
	errorsTotal       *prometheus.CounterVec
}

// NewCollector creates the collector with all series registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synod_sessions_total",
				Help: "Finished deliberation sessions by terminal status",
			},
			[]string{"status"},
		),
		sessionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "synod_session_duration_seconds",
				Help:    "Wall-clock duration of finished sessions",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		sessionTokens: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "synod_session_tokens",
				Help:    "Total tokens consumed by finished sessions",
				Buckets: []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
			},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "synod_active_sessions",
				Help: "Sessions currently deliberating",
			},
		),

		memberLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synod_member_latency_seconds",
				Help:    "Model call latency per model",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"model_id"},
		),
		memberTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synod_member_tokens_total",
				Help: "Tokens consumed by model calls per model",
			},
			[]string{"model_id"},
		),

		votesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "synod_votes_total",
				Help: "Parsed ballots across all voting rounds",
			},
		),
		consensusTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synod_consensus_total",
				Help: "Voting rounds by whether consensus was reached",
			},
			[]string{"reached"},
		),
		iterationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "synod_iterations_total",
				Help: "Deliberation loop passes started",
			},
		),

		correctionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "synod_corrections_total",
				Help: "Self-correction rounds triggered",
			},
		),
		backupsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "synod_backup_activations_total",
				Help: "Backup members activated",
			},
		),
		compressionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "synod_memory_compressions_total",
				Help: "Deliberation memory compression passes",
			},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synod_errors_total",
				Help: "Pipeline errors by classified kind",
			},
			[]string{"kind"},
		),
	}

	c.registry.MustRegister(
		c.sessionsTotal, c.sessionDuration, c.sessionTokens, c.activeSessions,
		c.memberLatency, c.memberTokens,
		c.votesTotal, c.consensusTotal, c.iterationsTotal,
		c.correctionsTotal, c.backupsTotal, c.compressionsTotal, c.errorsTotal,
	)
	return c
}

// Register subscribes the collector to every event on the bus.
func (c *Collector) Register(bus *events.Bus) {
	bus.Subscribe(c.Observe)
}

// Observe updates the series touched by one trace event. It never
// returns an error; the signature matches the bus handler contract.
func (c *Collector) Observe(event models.TraceEvent) error {
	switch event.Type {
	case models.EventSessionStart:
		c.activeSessions.Inc()

	case models.EventSessionEnd:
		c.activeSessions.Dec()
		c.sessionsTotal.WithLabelValues(stringData(event.Data, "status")).Inc()
		c.sessionDuration.Observe(float64(event.DurationMs) / 1000)
		c.sessionTokens.Observe(floatData(event.Data, "total_tokens"))

	case models.EventIterationStart:
		c.iterationsTotal.Inc()

	case models.EventMemberResponse:
		modelID := stringData(event.Data, "model_id")
		c.memberLatency.WithLabelValues(modelID).Observe(float64(event.DurationMs) / 1000)
		c.memberTokens.WithLabelValues(modelID).Add(floatData(event.Data, "tokens"))

	case models.EventVoteCast:
		c.votesTotal.Inc()

	case models.EventVotingComplete:
		reached := "false"
		if b, ok := event.Data["consensus_reached"].(bool); ok && b {
			reached = "true"
		}
		c.consensusTotal.WithLabelValues(reached).Inc()

	case models.EventCorrectionTriggered:
		c.correctionsTotal.Inc()

	case models.EventBackupActivated:
		c.backupsTotal.Inc()

	case models.EventMemoryCompressed:
		c.compressionsTotal.Inc()

	case models.EventError:
		c.errorsTotal.WithLabelValues(stringData(event.Data, "kind")).Inc()
	}
	return nil
}

// Handler returns the exposition endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func stringData(data map[string]any, key string) string {
	if s, ok := data[key].(string); ok {
		return s
	}
	return "unknown"
}

// floatData tolerates the int/float ambiguity of decoded event payloads.
func floatData(data map[string]any, key string) float64 {
	switch v := data[key].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	}
	return 0
}
