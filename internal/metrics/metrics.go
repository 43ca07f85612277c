package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/omnik2mqtt/pkg/omnik"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "omnik"

// result label values
const (
	ResultOK         = "ok"
	ResultConnection = "connection"
	ResultProtocol   = "protocol"
	ResultParse      = "parse"
	ResultError      = "error"
)

// Metrics owns a private registry so tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry
	latency  *prometheus.HistogramVec
	fetches  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of requests to the inverter.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"fn"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Inverter fetches by source and result.",
		}, []string{"source", "result"}),
	}
	m.registry.MustRegister(
		m.latency,
		m.fetches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Instrument hooks the collectors into an omnik client.
func (m *Metrics) Instrument() *omnik.Instrument {
	return &omnik.Instrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			m.latency.WithLabelValues(fnName).Observe(readTime.Seconds())
		},
		RecordResult: func(source omnik.SourceType, err error) {
			m.fetches.WithLabelValues(string(source), Result(err)).Inc()
		},
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Result maps a fetch error to its result label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, omnik.ErrConnection):
		return ResultConnection
	case errors.Is(err, omnik.ErrProtocol):
		return ResultProtocol
	case errors.Is(err, omnik.ErrParse):
		return ResultParse
	default:
		return ResultError
	}
}
