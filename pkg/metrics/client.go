package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics records cart operation outcomes and backend round trips.
type ClientMetrics struct {
	opSuccess      *prometheus.CounterVec
	opFailure      *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
	transfer       *prometheus.CounterVec
}

// NewClientMetrics registers the client metrics on the provided registerer.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	if reg == nil {
		return &ClientMetrics{}
	}
	opSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operation_success",
		Help: "Successful cart operations.",
	}, []string{"operation", "mode"})
	opFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operation_failure",
		Help: "Failed cart operations.",
	}, []string{"operation", "mode"})
	remoteDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backend_round_trip_seconds",
		Help:    "Duration of storefront backend calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	transfer := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guest_cart_transfer",
		Help: "Guest cart transfer attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(opSuccess, opFailure, remoteDuration, transfer)
	return &ClientMetrics{
		opSuccess:      opSuccess,
		opFailure:      opFailure,
		remoteDuration: remoteDuration,
		transfer:       transfer,
	}
}

// IncSuccess increments the success counter for the named operation.
func (c *ClientMetrics) IncSuccess(operation, mode string) {
	if c == nil || c.opSuccess == nil {
		return
	}
	c.opSuccess.WithLabelValues(normalizeLabel(operation), normalizeLabel(mode)).Inc()
}

// IncFailure increments the failure counter for the named operation.
func (c *ClientMetrics) IncFailure(operation, mode string) {
	if c == nil || c.opFailure == nil {
		return
	}
	c.opFailure.WithLabelValues(normalizeLabel(operation), normalizeLabel(mode)).Inc()
}

// ObserveRemote records the duration of one backend round trip.
func (c *ClientMetrics) ObserveRemote(operation string, duration time.Duration) {
	if c == nil || c.remoteDuration == nil {
		return
	}
	c.remoteDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncTransfer counts one guest cart transfer attempt.
func (c *ClientMetrics) IncTransfer(outcome string) {
	if c == nil || c.transfer == nil {
		return
	}
	c.transfer.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
