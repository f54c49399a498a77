// Package telemetry is the fire-and-forget event sink. Events become a
// structured log line and a counter increment; failures to record are
// ignored by design.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Sink записывает события телеметрии. Все методы неблокирующие и никогда
// не возвращают ошибок вызывающему коду.
type Sink struct {
	logger zerolog.Logger

	events              *prometheus.CounterVec
	SessionsStarted     prometheus.Counter
	SessionsResumed     prometheus.Counter
	ChaptersGenerated   prometheus.Counter
	GenerationFailures  prometheus.Counter
	EnrichmentFailures  prometheus.Counter
	PersistenceFailures prometheus.Counter
}

// NewSink registers the engine's metrics on the given registerer and
// returns the sink. Pass prometheus.DefaultRegisterer in main and a fresh
// registry in tests.
func NewSink(logger zerolog.Logger, reg prometheus.Registerer) *Sink {
	factory := promauto.With(reg)
	return &Sink{
		logger: logger.With().Str("component", "Telemetry").Logger(),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adventure_events_total",
			Help: "Total telemetry events, partitioned by event name.",
		}, []string{"event"}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "adventure_sessions_started_total",
			Help: "Total fresh adventure sessions started.",
		}),
		SessionsResumed: factory.NewCounter(prometheus.CounterOpts{
			Name: "adventure_sessions_resumed_total",
			Help: "Total adventure sessions resumed from persisted state.",
		}),
		ChaptersGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "adventure_chapters_generated_total",
			Help: "Total chapters generated and streamed.",
		}),
		GenerationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "adventure_generation_failures_total",
			Help: "Total per-chapter generation failures surfaced to clients.",
		}),
		EnrichmentFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "adventure_enrichment_failures_total",
			Help: "Total background enrichment tasks replaced by placeholders.",
		}),
		PersistenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "adventure_persistence_failures_total",
			Help: "Total failed state persistence attempts.",
		}),
	}
}

// LogEvent records a named event with optional fields.
func (s *Sink) LogEvent(name string, fields map[string]any) {
	if s == nil {
		return
	}
	s.events.WithLabelValues(name).Inc()
	evt := s.logger.Info().Str("event", name)
	for k, v := range fields {
		evt = evt.Interface(k, v)
	}
	evt.Msg("telemetry event")
}
