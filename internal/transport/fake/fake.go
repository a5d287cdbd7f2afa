// Package fake is an in-memory access point for tests and local runs.
package fake

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/smallbiznis/peppolway/internal/environment"
	"github.com/smallbiznis/peppolway/internal/transport"
)

// AccessPoint is a scriptable in-memory transport. Outcomes queued with
// QueueSendError are consumed in order before sends start succeeding.
type AccessPoint struct {
	mu sync.Mutex

	sendErrs      []error
	statuses      map[string]transport.StatusResult
	sendCalls     []transport.SendRequest
	pollCalls     []string
	lastMessageID string
}

func New() *AccessPoint {
	return &AccessPoint{
		statuses: make(map[string]transport.StatusResult),
	}
}

// QueueSendError scripts the outcome of upcoming Send calls.
func (f *AccessPoint) QueueSendError(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErrs = append(f.sendErrs, errs...)
}

// SetStatus scripts the result of PollStatus for a provider message id.
func (f *AccessPoint) SetStatus(providerMessageID string, result transport.StatusResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[providerMessageID] = result
}

func (f *AccessPoint) Send(ctx context.Context, env environment.Environment, req transport.SendRequest) (transport.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return transport.SendResult{}, transport.Transient(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls = append(f.sendCalls, req)

	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return transport.SendResult{}, err
		}
	}

	messageID := uuid.NewString()
	f.statuses[messageID] = transport.StatusResult{Status: transport.StatusInTransit}
	f.lastMessageID = messageID
	return transport.SendResult{ProviderMessageID: messageID}, nil
}

func (f *AccessPoint) PollStatus(ctx context.Context, env environment.Environment, providerMessageID string) (transport.StatusResult, error) {
	if err := ctx.Err(); err != nil {
		return transport.StatusResult{}, transport.Transient(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCalls = append(f.pollCalls, providerMessageID)

	result, ok := f.statuses[providerMessageID]
	if !ok {
		return transport.StatusResult{}, transport.Permanent("unknown_message", "provider message id not found")
	}
	return result, nil
}

// SendCalls returns a copy of recorded send requests.
func (f *AccessPoint) SendCalls() []transport.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]transport.SendRequest, len(f.sendCalls))
	copy(calls, f.sendCalls)
	return calls
}

// LastMessageID returns the most recently issued provider message id.
func (f *AccessPoint) LastMessageID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastMessageID
}

// PollCalls returns a copy of recorded poll message ids.
func (f *AccessPoint) PollCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]string, len(f.pollCalls))
	copy(calls, f.pollCalls)
	return calls
}
