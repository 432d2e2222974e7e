// Package metrics provides Prometheus metrics collection for typedwire.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/wireerr"
	"github.com/artpar/typedwire/ports"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "typedwire"

// Collector holds all Prometheus metrics for typedwire.
type Collector struct {
	// Codec metrics
	CodecOperations *prometheus.CounterVec
	CodecFailures   *prometheus.CounterVec
	CodecDuration   *prometheus.HistogramVec

	// Schema metrics
	SchemaTypes        prometheus.Gauge
	SchemaReloads      prometheus.Counter
	SchemaReloadErrors prometheus.Counter

	// Config metrics
	ConfigReloads    prometheus.Counter
	ConfigLastReload prometheus.Gauge
}

// New creates a collector registered with the default Prometheus registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	return NewWithNamespace(reg, DefaultNamespace)
}

// NewWithNamespace creates a collector whose metric names start with ns.
func NewWithNamespace(reg prometheus.Registerer, ns string) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		CodecOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "codec_operations_total",
				Help:      "Total number of pack and unpack operations",
			},
			[]string{"format", "op", "type"},
		),
		CodecFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "codec_failures_total",
				Help:      "Total number of failed pack and unpack operations by failure kind",
			},
			[]string{"format", "op", "kind"},
		),
		CodecDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "codec_duration_seconds",
				Help:      "Pack and unpack duration in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"format", "op"},
		),
		SchemaTypes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "schema_types",
				Help:      "Number of message types in the current registry",
			},
		),
		SchemaReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "schema_reloads_total",
				Help:      "Total number of successful schema reloads",
			},
		),
		SchemaReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "schema_reload_errors_total",
				Help:      "Total number of failed schema reloads",
			},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// ObserveCodec records one pack or unpack.
func (c *Collector) ObserveCodec(format, op string, t *message.Type, took time.Duration, err error) {
	c.CodecOperations.WithLabelValues(format, op, TypeLabel(t)).Inc()
	c.CodecDuration.WithLabelValues(format, op).Observe(took.Seconds())
	if err != nil {
		c.CodecFailures.WithLabelValues(format, op, wireerr.Kind(err)).Inc()
	}
}

var _ ports.CodecObserver = (*Collector)(nil)

// ObserveSchemaReload records the outcome of a schema reload.
func (c *Collector) ObserveSchemaReload(reg *message.Registry, err error) {
	if err != nil {
		c.SchemaReloadErrors.Inc()
		return
	}
	c.SchemaReloads.Inc()
	c.SchemaTypes.Set(float64(len(reg.Types())))
}

// ObserveConfigReload records a successful config reload.
func (c *Collector) ObserveConfigReload() {
	c.ConfigReloads.Inc()
	c.ConfigLastReload.SetToCurrentTime()
}

// TypeLabel returns the label value for a message type.
func TypeLabel(t *message.Type) string {
	if t == nil {
		return "unknown"
	}
	return t.TypeName()
}
