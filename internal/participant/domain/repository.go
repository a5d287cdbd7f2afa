package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListParticipantFilter struct {
	Role       *ParticipantRole
	ActiveOnly bool
}

// Repository persists participants. Every method is environment scoped;
// no query crosses the sandbox/production boundary.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, participant *Participant) error
	InsertIdentifier(ctx context.Context, db *gorm.DB, ident *ParticipantIdentifier) error
	FindByID(ctx context.Context, db *gorm.DB, env string, id snowflake.ID) (*Participant, error)
	List(ctx context.Context, db *gorm.DB, env string, filter ListParticipantFilter) ([]*Participant, error)
	FindActiveByIdentifier(ctx context.Context, db *gorm.DB, env, scheme, value string) (*Participant, error)
	UpdateRole(ctx context.Context, db *gorm.DB, env string, id snowflake.ID, role ParticipantRole) (bool, error)
	UpdateActive(ctx context.Context, db *gorm.DB, env string, id snowflake.ID, active bool) (bool, error)
	MaxIdentifierPosition(ctx context.Context, db *gorm.DB, participantID snowflake.ID) (int, error)
}
