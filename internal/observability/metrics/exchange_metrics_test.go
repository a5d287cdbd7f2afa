package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, label := range metric.GetLabel() {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
}

func TestExchangeMetrics_CountersCarryLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newExchangeMetrics(reg, Config{ServiceName: "exchange", Environment: "test"})

	m.IncTransmission(DirectionOutbound)
	m.IncTransition("PENDING", "SENT")
	m.IncTransportAttempt(TransportOutcomeTransient)
	m.IncTransportAttempt(TransportOutcomeTransient)
	m.ObserveDispatchDuration("dispatch", 25*time.Millisecond)
	m.IncDispatchError("poll")

	family := findFamily(t, reg, "peppolway_exchange_transmissions_total")
	require.NotNil(t, family)
	require.Len(t, family.GetMetric(), 1)
	metric := family.GetMetric()[0]
	assert.Equal(t, float64(1), metric.GetCounter().GetValue())
	assert.Equal(t, DirectionOutbound, labelValue(metric, "direction"))
	assert.Equal(t, "exchange", labelValue(metric, "service"))
	assert.Equal(t, "test", labelValue(metric, "env"))

	family = findFamily(t, reg, "peppolway_exchange_transitions_total")
	require.NotNil(t, family)
	require.Len(t, family.GetMetric(), 1)
	metric = family.GetMetric()[0]
	assert.Equal(t, "PENDING", labelValue(metric, "from"))
	assert.Equal(t, "SENT", labelValue(metric, "to"))

	family = findFamily(t, reg, "peppolway_exchange_transport_attempts_total")
	require.NotNil(t, family)
	require.Len(t, family.GetMetric(), 1)
	assert.Equal(t, float64(2), family.GetMetric()[0].GetCounter().GetValue())

	family = findFamily(t, reg, "peppolway_exchange_dispatch_duration_seconds")
	require.NotNil(t, family)
	require.Len(t, family.GetMetric(), 1)
	assert.Equal(t, uint64(1), family.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestExchangeMetrics_DoubleRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := newExchangeMetrics(reg, Config{})
	second := newExchangeMetrics(reg, Config{})

	first.IncTransmission(DirectionInbound)
	second.IncTransmission(DirectionInbound)

	family := findFamily(t, reg, "peppolway_exchange_transmissions_total")
	require.NotNil(t, family)
	require.Len(t, family.GetMetric(), 1)
	assert.Equal(t, float64(2), family.GetMetric()[0].GetCounter().GetValue())
}

func TestExchangeMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *ExchangeMetrics
	m.IncTransmission(DirectionOutbound)
	m.IncTransition("PENDING", "SENT")
	m.IncTransportAttempt(TransportOutcomeAccepted)
	m.ObserveDispatchDuration("dispatch", time.Second)
	m.IncDispatchError("dispatch")
}
