// Package transport abstracts the access point that performs actual
// network delivery. The coordinator only ever talks to this interface;
// AS4 signing and wire protocol belong to the adapter behind it.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/peppolway/internal/environment"
	"github.com/smallbiznis/peppolway/internal/identifier"
)

// SendRequest carries one rendered document to the access point.
type SendRequest struct {
	DocumentID         string
	DocumentType       string
	SenderIdentifier   identifier.Identifier
	ReceiverIdentifier identifier.Identifier
	Payload            []byte
}

// SendResult is the access point's acceptance of a send.
type SendResult struct {
	ProviderMessageID string
}

// DeliveryStatus is the provider-reported progress of an accepted message.
type DeliveryStatus string

const (
	StatusInTransit DeliveryStatus = "in_transit"
	StatusDelivered DeliveryStatus = "delivered"
	StatusAccepted  DeliveryStatus = "accepted"
	StatusRejected  DeliveryStatus = "rejected"
	StatusFailed    DeliveryStatus = "failed"
)

// StatusResult pairs a delivery status with provider-supplied detail.
type StatusResult struct {
	Status DeliveryStatus
	Detail string
}

// AccessPoint is the pluggable transport. Environment is explicit on
// every call; an adapter must never infer it from construction state.
type AccessPoint interface {
	Send(ctx context.Context, env environment.Environment, req SendRequest) (SendResult, error)
	PollStatus(ctx context.Context, env environment.Environment, providerMessageID string) (StatusResult, error)
}

// TransientError marks a failure worth retrying (timeout, 5xx-equivalent).
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient transport error: %v", e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// PermanentError marks a failure that must not be retried.
type PermanentError struct {
	Code   string
	Detail string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent transport error: %s: %s", e.Code, e.Detail)
}

// Transient wraps err as retryable.
func Transient(err error) error {
	return &TransientError{Cause: err}
}

// Permanent builds a terminal transport failure.
func Permanent(code, detail string) error {
	return &PermanentError{Code: code, Detail: detail}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsPermanent reports whether err is terminal.
func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}
