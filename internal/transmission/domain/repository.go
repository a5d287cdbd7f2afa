package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists transmissions. Status-changing updates are
// compare-and-set on the expected from-status; a false return means the
// row moved underneath the caller and nothing was written.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, transmission *Transmission) error
	FindByID(ctx context.Context, db *gorm.DB, env string, id snowflake.ID) (*Transmission, error)
	FindLatestByDocument(ctx context.Context, db *gorm.DB, env string, documentID snowflake.ID) (*Transmission, error)
	FindActiveByDocument(ctx context.Context, db *gorm.DB, env string, documentID snowflake.ID) (*Transmission, error)
	DueForDispatch(ctx context.Context, db *gorm.DB, env string, now time.Time, limit int) ([]Transmission, error)
	InFlight(ctx context.Context, db *gorm.DB, env string, limit int) ([]Transmission, error)

	MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, attempt int, providerMessageID string, now time.Time) (bool, error)
	MarkStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, reason *string, now time.Time) (bool, error)
	Reschedule(ctx context.Context, db *gorm.DB, id snowflake.ID, attempt int, nextAttemptAt time.Time, lastError string, now time.Time) (bool, error)
}
