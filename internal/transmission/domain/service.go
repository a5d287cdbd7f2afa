package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/peppolway/internal/environment"
)

// Service coordinates document delivery. Enqueue and Cancel are the caller
// surface; DispatchDue and PollInFlight are driven by background workers
// and perform the actual transport I/O.
type Service interface {
	Enqueue(ctx context.Context, env environment.Environment, documentID string) (Transmission, error)
	Cancel(ctx context.Context, env environment.Environment, documentID string) (Transmission, error)
	RecordInbound(ctx context.Context, env environment.Environment, documentID string) (Transmission, error)
	GetByDocument(ctx context.Context, env environment.Environment, documentID string) (Transmission, error)

	DispatchDue(ctx context.Context, env environment.Environment, limit int) (int, error)
	PollInFlight(ctx context.Context, env environment.Environment, limit int) (int, error)
}

var (
	ErrInvalidEnvironment = errors.New("invalid_environment")
	ErrInvalidID          = errors.New("invalid_id")
	ErrDocumentNotFound   = errors.New("document_not_found")
	ErrNotFound           = errors.New("not_found")
	ErrAlreadyInFlight    = errors.New("already_in_flight")
	ErrTransitionConflict = errors.New("transition_conflict")
)
