package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []Status{
	StatusPending, StatusSent, StatusDelivered, StatusAccepted,
	StatusRejected, StatusError, StatusReceived, StatusMLRIssued,
}

func TestCanTransition_LegalMoves(t *testing.T) {
	legal := map[Status][]Status{
		StatusPending:   {StatusSent, StatusError},
		StatusSent:      {StatusDelivered, StatusRejected, StatusError},
		StatusDelivered: {StatusAccepted, StatusRejected, StatusError},
		StatusReceived:  {StatusMLRIssued, StatusError},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, allowed := range legal[from] {
				if allowed == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoMoves(t *testing.T) {
	for _, from := range allStatuses {
		if !from.Terminal() {
			continue
		}
		for _, to := range allStatuses {
			assert.False(t, CanTransition(from, to), "%s is terminal but allows %s", from, to)
		}
	}
}

func TestEveryStatusReachable(t *testing.T) {
	reachable := map[Status]bool{StatusPending: true, StatusReceived: true}
	for changed := true; changed; {
		changed = false
		for _, from := range allStatuses {
			if !reachable[from] {
				continue
			}
			for _, to := range allStatuses {
				if CanTransition(from, to) && !reachable[to] {
					reachable[to] = true
					changed = true
				}
			}
		}
	}

	for _, status := range allStatuses {
		assert.True(t, reachable[status], "%s is unreachable from the entry states", status)
	}
}

func TestStatusValid(t *testing.T) {
	for _, status := range allStatuses {
		assert.True(t, status.Valid())
	}
	assert.False(t, Status("SHIPPED").Valid())
}
