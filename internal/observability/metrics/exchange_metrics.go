package metrics

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels shared by all instruments.
type Config struct {
	ServiceName string
	Environment string
}

const (
	TransportOutcomeAccepted  = "accepted"
	TransportOutcomeTransient = "transient_error"
	TransportOutcomePermanent = "permanent_error"

	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// ExchangeMetrics captures delivery pipeline health signals.
type ExchangeMetrics struct {
	transmissions     *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	transportAttempts *prometheus.CounterVec
	dispatchDuration  *prometheus.HistogramVec
	dispatchErrors    *prometheus.CounterVec
}

var (
	exchangeMetricsOnce sync.Once
	exchangeMetrics     *ExchangeMetrics
)

// Exchange returns the singleton exchange metrics registry.
func Exchange() *ExchangeMetrics {
	return ExchangeWithConfig(Config{})
}

// ExchangeWithConfig returns the singleton exchange metrics registry using config labels.
func ExchangeWithConfig(cfg Config) *ExchangeMetrics {
	exchangeMetricsOnce.Do(func() {
		exchangeMetrics = newExchangeMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return exchangeMetrics
}

// ResetExchangeMetricsForTest resets the exchange metrics singleton for tests.
func ResetExchangeMetricsForTest() {
	exchangeMetricsOnce = sync.Once{}
	exchangeMetrics = nil
}

func newExchangeMetrics(registerer prometheus.Registerer, cfg Config) *ExchangeMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	constLabels := prometheus.Labels{
		"service": serviceLabel(cfg),
		"env":     environmentLabel(cfg),
	}

	transmissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "peppolway_exchange_transmissions_total",
		Help:        "Transmissions started by direction.",
		ConstLabels: constLabels,
	}, []string{"direction"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "peppolway_exchange_transitions_total",
		Help:        "Transmission state transitions by from and to state.",
		ConstLabels: constLabels,
	}, []string{"from", "to"})
	transportAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "peppolway_exchange_transport_attempts_total",
		Help:        "Access point send attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	dispatchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "peppolway_exchange_dispatch_duration_seconds",
		Help:        "Dispatch cycle latency to protect delivery freshness.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	}, []string{"worker"})
	dispatchErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "peppolway_exchange_dispatch_errors_total",
		Help:        "Dispatch cycle errors by worker.",
		ConstLabels: constLabels,
	}, []string{"worker"})

	transmissions = registerCounterVec(registerer, transmissions)
	transitions = registerCounterVec(registerer, transitions)
	transportAttempts = registerCounterVec(registerer, transportAttempts)
	dispatchDuration = registerHistogramVec(registerer, dispatchDuration)
	dispatchErrors = registerCounterVec(registerer, dispatchErrors)

	return &ExchangeMetrics{
		transmissions:     transmissions,
		transitions:       transitions,
		transportAttempts: transportAttempts,
		dispatchDuration:  dispatchDuration,
		dispatchErrors:    dispatchErrors,
	}
}

// IncTransmission counts a started transmission.
func (m *ExchangeMetrics) IncTransmission(direction string) {
	if m == nil {
		return
	}
	m.transmissions.WithLabelValues(strings.TrimSpace(direction)).Inc()
}

// IncTransition counts a state change.
func (m *ExchangeMetrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(strings.TrimSpace(from), strings.TrimSpace(to)).Inc()
}

// IncTransportAttempt counts an access point call by outcome.
func (m *ExchangeMetrics) IncTransportAttempt(outcome string) {
	if m == nil {
		return
	}
	m.transportAttempts.WithLabelValues(strings.TrimSpace(outcome)).Inc()
}

// ObserveDispatchDuration records one worker cycle.
func (m *ExchangeMetrics) ObserveDispatchDuration(worker string, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDuration.WithLabelValues(strings.TrimSpace(worker)).Observe(d.Seconds())
}

// IncDispatchError counts a failed worker cycle.
func (m *ExchangeMetrics) IncDispatchError(worker string) {
	if m == nil {
		return
	}
	m.dispatchErrors.WithLabelValues(strings.TrimSpace(worker)).Inc()
}

func errAs(err error, target any) bool {
	return errors.As(err, target)
}
