package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("zoning.resolve")

// Prometheus exports counters, gauges and span durations to a Prometheus
// registry and mirrors spans to OpenTelemetry. One instance is shared by
// all requests of a server.
type Prometheus struct {
	events   *prometheus.CounterVec
	gauges   *prometheus.GaugeVec
	duration *prometheus.HistogramVec
	gatherer prometheus.Gatherer
}

// NewPrometheus registers the zoning metrics with reg. When reg is nil a
// fresh registry is created.
func NewPrometheus(reg *prometheus.Registry) *Prometheus {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Prometheus{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zoning_events_total",
			Help: "Resolution events by name",
		}, []string{"event"}),
		gauges: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zoning_observation",
			Help: "Last observed value by gauge name",
		}, []string{"name"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zoning_span_duration_ms",
			Help:    "Span duration in milliseconds",
			Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
		}, []string{"span"}),
		gatherer: reg,
	}
}

func (p *Prometheus) Increment(counter string) {
	p.events.WithLabelValues(counter).Inc()
}

func (p *Prometheus) Observe(gauge string, value float64) {
	p.gauges.WithLabelValues(gauge).Set(value)
}

func (p *Prometheus) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := tracer.Start(ctx, name)
	return ctx, &promSpan{
		span:     span,
		start:    time.Now(),
		observer: p.duration.WithLabelValues(name),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

type promSpan struct {
	span     trace.Span
	start    time.Time
	observer prometheus.Observer
}

func (s *promSpan) End() {
	s.observer.Observe(float64(time.Since(s.start).Microseconds()) / 1000)
	s.span.End()
}
