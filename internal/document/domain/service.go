package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/peppolway/internal/environment"
)

// ConvertRequest addresses one source record on the network.
// SchemeOverride selects which of the sender's identifiers addresses the
// document; empty means the participant's default (first) identifier.
type ConvertRequest struct {
	Environment           environment.Environment
	Record                SourceRecord
	SenderParticipantID   string
	ReceiverParticipantID string
	SchemeOverride        string
}

type Service interface {
	Convert(context.Context, ConvertRequest) (ExchangeDocument, error)
	GetByID(ctx context.Context, env environment.Environment, id string) (ExchangeDocument, error)
	Payload(ctx context.Context, env environment.Environment, id string) ([]byte, error)
}

var (
	ErrInvalidEnvironment = errors.New("invalid_environment")
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
	ErrNotConfigured      = errors.New("not_configured")
)

// ConversionError names the offending source record field. Fatal to the
// conversion; the source record is left untouched so the caller can fix
// and retry.
type ConversionError struct {
	Field  string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion_error: field %s: %s", e.Field, e.Reason)
}

func NewConversionError(field, reason string) *ConversionError {
	return &ConversionError{Field: field, Reason: reason}
}

// AsConversionError unwraps err into a ConversionError if it is one.
func AsConversionError(err error) *ConversionError {
	var convErr *ConversionError
	if errors.As(err, &convErr) {
		return convErr
	}
	return nil
}
