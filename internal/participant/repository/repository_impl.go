package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/peppolway/internal/participant/domain"
	"github.com/smallbiznis/peppolway/pkg/db/option"
	pkgrepository "github.com/smallbiznis/peppolway/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, participant *domain.Participant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO participants (id, environment, legal_name, country_code, tax_id, role, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		participant.ID,
		participant.Environment,
		participant.LegalName,
		participant.CountryCode,
		participant.TaxID,
		participant.Role,
		participant.Active,
		participant.CreatedAt,
		participant.UpdatedAt,
	).Error
}

func (r *repo) InsertIdentifier(ctx context.Context, db *gorm.DB, ident *domain.ParticipantIdentifier) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO participant_identifiers (id, participant_id, environment, scheme, value, position, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ident.ID,
		ident.ParticipantID,
		ident.Environment,
		ident.Scheme,
		ident.Value,
		ident.Position,
		ident.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, env string, id snowflake.ID) (*domain.Participant, error) {
	var participant domain.Participant
	err := db.WithContext(ctx).Raw(
		`SELECT id, environment, legal_name, country_code, tax_id, role, active, created_at, updated_at
		 FROM participants WHERE environment = ? AND id = ?`,
		env,
		id,
	).Scan(&participant).Error
	if err != nil {
		return nil, err
	}
	if participant.ID == 0 {
		return nil, nil
	}
	if err := r.loadIdentifiers(ctx, db, &participant); err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, env string, filter domain.ListParticipantFilter) ([]*domain.Participant, error) {
	store := pkgrepository.ProvideStore[domain.Participant](db)

	query := &domain.Participant{Environment: env}
	if filter.Role != nil {
		query.Role = *filter.Role
	}
	opts := []option.QueryOption{option.WithOrder("created_at desc, id desc")}
	if filter.ActiveOnly {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "active", Operator: option.EQ, Value: true}))
	}

	participants, err := store.Find(ctx, query, opts...)
	if err != nil {
		return nil, err
	}
	for _, participant := range participants {
		if err := r.loadIdentifiers(ctx, db, participant); err != nil {
			return nil, err
		}
	}
	return participants, nil
}

func (r *repo) FindActiveByIdentifier(ctx context.Context, db *gorm.DB, env, scheme, value string) (*domain.Participant, error) {
	var participant domain.Participant
	err := db.WithContext(ctx).Raw(
		`SELECT p.id, p.environment, p.legal_name, p.country_code, p.tax_id, p.role, p.active, p.created_at, p.updated_at
		 FROM participants p
		 JOIN participant_identifiers pi ON pi.participant_id = p.id
		 WHERE pi.environment = ? AND pi.scheme = ? AND pi.value = ? AND p.environment = ? AND p.active = ?
		 LIMIT 1`,
		env,
		scheme,
		value,
		env,
		true,
	).Scan(&participant).Error
	if err != nil {
		return nil, err
	}
	if participant.ID == 0 {
		return nil, nil
	}
	if err := r.loadIdentifiers(ctx, db, &participant); err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *repo) UpdateRole(ctx context.Context, db *gorm.DB, env string, id snowflake.ID, role domain.ParticipantRole) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE participants SET role = ?, updated_at = ? WHERE environment = ? AND id = ?`,
		role,
		time.Now().UTC(),
		env,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) UpdateActive(ctx context.Context, db *gorm.DB, env string, id snowflake.ID, active bool) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE participants SET active = ?, updated_at = ? WHERE environment = ? AND id = ?`,
		active,
		time.Now().UTC(),
		env,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MaxIdentifierPosition(ctx context.Context, db *gorm.DB, participantID snowflake.ID) (int, error) {
	var max int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(position), 0) FROM participant_identifiers WHERE participant_id = ?`,
		participantID,
	).Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (r *repo) loadIdentifiers(ctx context.Context, db *gorm.DB, participant *domain.Participant) error {
	return db.WithContext(ctx).Raw(
		`SELECT id, participant_id, environment, scheme, value, position, created_at
		 FROM participant_identifiers
		 WHERE participant_id = ?
		 ORDER BY position ASC`,
		participant.ID,
	).Scan(&participant.Identifiers).Error
}
