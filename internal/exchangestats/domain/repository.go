package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *TransmissionEvent) error
	ListByParticipant(ctx context.Context, db *gorm.DB, env string, participantID snowflake.ID) ([]TransmissionEvent, error)
	ListByParticipantYear(ctx context.Context, db *gorm.DB, env string, participantID snowflake.ID, year int) ([]TransmissionEvent, error)
}
