package service

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/peppolway/internal/exchangestats/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(transmissionID int64, direction domain.Direction, from, to string, at time.Time) domain.TransmissionEvent {
	var fromStatus *string
	if from != "" {
		fromStatus = &from
	}
	return domain.TransmissionEvent{
		TransmissionID: snowflake.ID(transmissionID),
		Direction:      direction,
		FromStatus:     fromStatus,
		ToStatus:       to,
		OccurredAt:     at,
	}
}

// outboundLifecycle emits the event trail of one outbound transmission
// walking the given statuses in order.
func outboundLifecycle(transmissionID int64, start time.Time, statuses ...string) []domain.TransmissionEvent {
	events := make([]domain.TransmissionEvent, 0, len(statuses))
	from := ""
	for i, status := range statuses {
		events = append(events, event(transmissionID, domain.DirectionOutbound, from, status, start.Add(time.Duration(i)*time.Minute)))
		from = status
	}
	return events
}

func TestFold_EmptyLog(t *testing.T) {
	snapshot := fold(nil)

	assert.Equal(t, int64(0), snapshot.TotalSent)
	assert.Equal(t, int64(0), snapshot.TotalReceived)
	assert.Equal(t, 0, snapshot.SuccessRate)
	assert.Nil(t, snapshot.LastActivityAt)
}

func TestFold_SingleAcceptedTransmission(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	events := outboundLifecycle(1, start, statusPending, statusSent, statusDelivered, statusAccepted)

	snapshot := fold(events)

	assert.Equal(t, int64(1), snapshot.TotalSent)
	assert.Equal(t, int64(0), snapshot.PendingCount)
	assert.Equal(t, int64(0), snapshot.FailedCount)
	assert.Equal(t, 100, snapshot.SuccessRate)
	require.NotNil(t, snapshot.LastActivityAt)
	assert.Equal(t, start.Add(3*time.Minute), *snapshot.LastActivityAt)
}

func TestFold_SuccessRateNinety(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	var events []domain.TransmissionEvent
	for i := int64(1); i <= 9; i++ {
		events = append(events, outboundLifecycle(i, start, statusPending, statusSent, statusDelivered, statusAccepted)...)
	}
	events = append(events, outboundLifecycle(10, start, statusPending, statusError)...)

	snapshot := fold(events)

	assert.Equal(t, int64(9), snapshot.TotalSent)
	assert.Equal(t, int64(1), snapshot.FailedCount)
	assert.Equal(t, 90, snapshot.SuccessRate)
}

func TestFold_PendingAndReceived(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	events := outboundLifecycle(1, start, statusPending, statusSent)
	events = append(events, event(2, domain.DirectionInbound, "", statusReceived, start))
	events = append(events, event(2, domain.DirectionInbound, statusReceived, statusMLRIssued, start.Add(time.Second)))

	snapshot := fold(events)

	assert.Equal(t, int64(1), snapshot.TotalSent)
	assert.Equal(t, int64(1), snapshot.TotalReceived)
	assert.Equal(t, int64(1), snapshot.PendingCount)
	assert.Equal(t, int64(0), snapshot.FailedCount)
}

func TestFold_ReplayDeterministic(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	events := outboundLifecycle(1, start, statusPending, statusSent, statusDelivered, statusRejected)

	first := fold(events)
	second := fold(events)

	assert.Equal(t, first, second)
}

func TestSuccessRate_Rounding(t *testing.T) {
	cases := []struct {
		total  int64
		failed int64
		want   int
	}{
		{0, 0, 0},
		{1, 0, 100},
		{1, 1, 0},
		{10, 1, 90},
		{3, 1, 67},
		{3, 2, 33},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, successRate(tc.total, tc.failed), "total=%d failed=%d", tc.total, tc.failed)
	}
}

func TestFoldMonthly(t *testing.T) {
	events := outboundLifecycle(1, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), statusPending, statusSent, statusDelivered, statusAccepted)
	events = append(events, outboundLifecycle(2, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), statusPending, statusError)...)
	events = append(events, event(3, domain.DirectionInbound, "", statusReceived, time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)))

	months := foldMonthly(2026, events)
	require.Len(t, months, 12)

	january := months[0]
	assert.Equal(t, int64(1), january.Sent)
	assert.Equal(t, int64(1), january.Delivered)
	assert.Equal(t, int64(1), january.Accepted)

	march := months[2]
	assert.Equal(t, int64(1), march.Failed)
	assert.Equal(t, int64(1), march.Received)
	assert.Equal(t, int64(0), march.Sent)
}
