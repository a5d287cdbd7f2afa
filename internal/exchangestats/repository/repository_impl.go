package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/peppolway/internal/exchangestats/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.TransmissionEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transmission_events (id, environment, document_id, transmission_id, participant_id, direction, from_status, to_status, reason, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Environment,
		event.DocumentID,
		event.TransmissionID,
		event.ParticipantID,
		event.Direction,
		event.FromStatus,
		event.ToStatus,
		event.Reason,
		event.OccurredAt,
	).Error
}

func (r *repo) ListByParticipant(ctx context.Context, db *gorm.DB, env string, participantID snowflake.ID) ([]domain.TransmissionEvent, error) {
	var events []domain.TransmissionEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, environment, document_id, transmission_id, participant_id, direction, from_status, to_status, reason, occurred_at
		 FROM transmission_events
		 WHERE environment = ? AND participant_id = ?
		 ORDER BY occurred_at ASC, id ASC`,
		env,
		participantID,
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func yearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func (r *repo) ListByParticipantYear(ctx context.Context, db *gorm.DB, env string, participantID snowflake.ID, year int) ([]domain.TransmissionEvent, error) {
	var events []domain.TransmissionEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, environment, document_id, transmission_id, participant_id, direction, from_status, to_status, reason, occurred_at
		 FROM transmission_events
		 WHERE environment = ? AND participant_id = ? AND occurred_at >= ? AND occurred_at < ?
		 ORDER BY occurred_at ASC, id ASC`,
		env,
		participantID,
		yearStart(year),
		yearStart(year+1),
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
