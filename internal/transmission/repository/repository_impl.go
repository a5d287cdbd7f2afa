package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/peppolway/internal/transmission/domain"
	"gorm.io/gorm"
)

const selectColumns = `id, environment, document_id, participant_id, direction, status,
	provider_message_id, attempt, last_error, next_attempt_at, sent_at,
	last_status_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, transmission *domain.Transmission) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transmissions (id, environment, document_id, participant_id, direction, status,
			provider_message_id, attempt, last_error, next_attempt_at, sent_at,
			last_status_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		transmission.ID,
		transmission.Environment,
		transmission.DocumentID,
		transmission.ParticipantID,
		transmission.Direction,
		transmission.Status,
		transmission.ProviderMessageID,
		transmission.Attempt,
		transmission.LastError,
		transmission.NextAttemptAt,
		transmission.SentAt,
		transmission.LastStatusAt,
		transmission.CreatedAt,
		transmission.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, env string, id snowflake.ID) (*domain.Transmission, error) {
	var transmission domain.Transmission
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM transmissions WHERE environment = ? AND id = ?`,
		env,
		id,
	).Scan(&transmission).Error
	if err != nil {
		return nil, err
	}
	if transmission.ID == 0 {
		return nil, nil
	}
	return &transmission, nil
}

func (r *repo) FindLatestByDocument(ctx context.Context, db *gorm.DB, env string, documentID snowflake.ID) (*domain.Transmission, error) {
	var transmission domain.Transmission
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM transmissions
		 WHERE environment = ? AND document_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		env,
		documentID,
	).Scan(&transmission).Error
	if err != nil {
		return nil, err
	}
	if transmission.ID == 0 {
		return nil, nil
	}
	return &transmission, nil
}

func (r *repo) FindActiveByDocument(ctx context.Context, db *gorm.DB, env string, documentID snowflake.ID) (*domain.Transmission, error) {
	var transmission domain.Transmission
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM transmissions
		 WHERE environment = ? AND document_id = ?
		   AND status NOT IN ('ACCEPTED', 'REJECTED', 'ERROR', 'MLR_ISSUED')
		 LIMIT 1`,
		env,
		documentID,
	).Scan(&transmission).Error
	if err != nil {
		return nil, err
	}
	if transmission.ID == 0 {
		return nil, nil
	}
	return &transmission, nil
}

func (r *repo) DueForDispatch(ctx context.Context, db *gorm.DB, env string, now time.Time, limit int) ([]domain.Transmission, error) {
	var transmissions []domain.Transmission
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM transmissions
		 WHERE environment = ? AND status = 'PENDING'
		   AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		env,
		now,
		limit,
	).Scan(&transmissions).Error
	if err != nil {
		return nil, err
	}
	return transmissions, nil
}

func (r *repo) InFlight(ctx context.Context, db *gorm.DB, env string, limit int) ([]domain.Transmission, error) {
	var transmissions []domain.Transmission
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM transmissions
		 WHERE environment = ? AND status IN ('SENT', 'DELIVERED')
		   AND provider_message_id IS NOT NULL
		 ORDER BY last_status_at ASC, id ASC
		 LIMIT ?`,
		env,
		limit,
	).Scan(&transmissions).Error
	if err != nil {
		return nil, err
	}
	return transmissions, nil
}

func (r *repo) MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, attempt int, providerMessageID string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE transmissions
		 SET status = 'SENT', attempt = ?, provider_message_id = ?, last_error = NULL,
		     next_attempt_at = NULL, sent_at = ?, last_status_at = ?, updated_at = ?
		 WHERE id = ? AND status = 'PENDING'`,
		attempt,
		providerMessageID,
		now,
		now,
		now,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, reason *string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE transmissions
		 SET status = ?, last_error = ?, next_attempt_at = NULL, last_status_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		reason,
		now,
		now,
		id,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Reschedule(ctx context.Context, db *gorm.DB, id snowflake.ID, attempt int, nextAttemptAt time.Time, lastError string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE transmissions
		 SET attempt = ?, next_attempt_at = ?, last_error = ?, updated_at = ?
		 WHERE id = ? AND status = 'PENDING'`,
		attempt,
		nextAttemptAt,
		lastError,
		now,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
