package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/peppolway/internal/environment"
	"gorm.io/gorm"
)

// Recorder appends events inside the caller's transaction so a status
// change and its event commit or roll back together.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, event *TransmissionEvent) error
}

type MonthlyBreakdownRequest struct {
	Environment   environment.Environment
	ParticipantID string
	Year          int
}

type Service interface {
	Snapshot(ctx context.Context, env environment.Environment, participantID string) (Snapshot, error)
	MonthlyBreakdown(ctx context.Context, req MonthlyBreakdownRequest) ([]MonthlyStat, error)
}

var (
	ErrInvalidEnvironment = errors.New("invalid_environment")
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidYear        = errors.New("invalid_year")
)
