package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/peppolway/internal/environment"
	"github.com/smallbiznis/peppolway/internal/identifier"
	"github.com/smallbiznis/peppolway/internal/participant/domain"
	pkgdb "github.com/smallbiznis/peppolway/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("participant.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// Register creates a participant with its identifiers in one transaction.
// Any invalid identifier fails the whole registration; no partial state.
func (s *Service) Register(ctx context.Context, req domain.RegisterParticipantRequest) (domain.Participant, error) {
	if !req.Environment.Valid() {
		return domain.Participant{}, domain.ErrInvalidEnvironment
	}
	legalName := strings.TrimSpace(req.LegalName)
	if legalName == "" {
		return domain.Participant{}, domain.ErrInvalidLegalName
	}
	country := strings.ToUpper(strings.TrimSpace(req.CountryCode))
	if len(country) != 2 {
		return domain.Participant{}, domain.ErrInvalidCountry
	}
	if !req.Role.Valid() {
		return domain.Participant{}, domain.ErrInvalidRole
	}
	for _, ident := range req.Identifiers {
		if err := identifier.Validate(ident); err != nil {
			return domain.Participant{}, err
		}
	}
	// A participant that can take part in exchanges needs at least one
	// network address before any document may reference it.
	if len(req.Identifiers) == 0 && (req.Role.CanSend() || req.Role.CanReceive()) {
		return domain.Participant{}, domain.ErrRoleConflict
	}

	now := time.Now().UTC()
	participant := domain.Participant{
		ID:          s.genID.Generate(),
		Environment: req.Environment.String(),
		LegalName:   legalName,
		CountryCode: country,
		TaxID:       req.TaxID,
		Role:        req.Role,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &participant); err != nil {
			return err
		}
		for i, ident := range req.Identifiers {
			row := domain.ParticipantIdentifier{
				ID:            s.genID.Generate(),
				ParticipantID: participant.ID,
				Environment:   participant.Environment,
				Scheme:        ident.Scheme,
				Value:         ident.Value,
				Position:      i + 1,
				CreatedAt:     now,
			}
			if err := s.repo.InsertIdentifier(ctx, tx, &row); err != nil {
				if pkgdb.IsDuplicateKeyErr(err) {
					return domain.ErrIdentifierTaken
				}
				return err
			}
			participant.Identifiers = append(participant.Identifiers, row)
		}
		return nil
	})
	if err != nil {
		return domain.Participant{}, err
	}

	s.log.Info("participant registered",
		zap.String("participant_id", participant.ID.String()),
		zap.String("environment", participant.Environment),
		zap.String("role", string(participant.Role)),
		zap.Int("identifiers", len(participant.Identifiers)),
	)
	return participant, nil
}

func (s *Service) GetByID(ctx context.Context, env environment.Environment, id string) (domain.Participant, error) {
	if !env.Valid() {
		return domain.Participant{}, domain.ErrInvalidEnvironment
	}
	participantID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return domain.Participant{}, domain.ErrInvalidID
	}

	participant, err := s.repo.FindByID(ctx, s.db, env.String(), participantID)
	if err != nil {
		return domain.Participant{}, err
	}
	if participant == nil {
		return domain.Participant{}, domain.ErrNotFound
	}
	return *participant, nil
}

func (s *Service) List(ctx context.Context, req domain.ListParticipantRequest) (domain.ListParticipantResponse, error) {
	if !req.Environment.Valid() {
		return domain.ListParticipantResponse{}, domain.ErrInvalidEnvironment
	}

	items, err := s.repo.List(ctx, s.db, req.Environment.String(), domain.ListParticipantFilter{
		Role:       req.Role,
		ActiveOnly: req.ActiveOnly,
	})
	if err != nil {
		return domain.ListParticipantResponse{}, err
	}

	participants := make([]domain.Participant, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		participants = append(participants, *item)
	}
	return domain.ListParticipantResponse{Participants: participants}, nil
}

func (s *Service) SetRole(ctx context.Context, env environment.Environment, id string, role domain.ParticipantRole) error {
	if !env.Valid() {
		return domain.ErrInvalidEnvironment
	}
	if !role.Valid() {
		return domain.ErrInvalidRole
	}
	participantID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return domain.ErrInvalidID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		participant, err := s.repo.FindByID(ctx, tx, env.String(), participantID)
		if err != nil {
			return err
		}
		if participant == nil {
			return domain.ErrNotFound
		}
		if (role.CanReceive() || role.CanSend()) && len(participant.Identifiers) == 0 {
			return domain.ErrRoleConflict
		}

		updated, err := s.repo.UpdateRole(ctx, tx, env.String(), participantID, role)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (s *Service) AddIdentifier(ctx context.Context, env environment.Environment, id string, ident identifier.Identifier) error {
	if !env.Valid() {
		return domain.ErrInvalidEnvironment
	}
	if err := identifier.Validate(ident); err != nil {
		return err
	}
	participantID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return domain.ErrInvalidID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		participant, err := s.repo.FindByID(ctx, tx, env.String(), participantID)
		if err != nil {
			return err
		}
		if participant == nil {
			return domain.ErrNotFound
		}

		position, err := s.repo.MaxIdentifierPosition(ctx, tx, participantID)
		if err != nil {
			return err
		}

		row := domain.ParticipantIdentifier{
			ID:            s.genID.Generate(),
			ParticipantID: participantID,
			Environment:   env.String(),
			Scheme:        ident.Scheme,
			Value:         ident.Value,
			Position:      position + 1,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.repo.InsertIdentifier(ctx, tx, &row); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrIdentifierTaken
			}
			return err
		}
		return nil
	})
}

// Deactivate is idempotent; repeated calls on an already inactive
// participant succeed without effect.
func (s *Service) Deactivate(ctx context.Context, env environment.Environment, id string) error {
	if !env.Valid() {
		return domain.ErrInvalidEnvironment
	}
	participantID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return domain.ErrInvalidID
	}

	updated, err := s.repo.UpdateActive(ctx, s.db, env.String(), participantID, false)
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) FindByIdentifier(ctx context.Context, env environment.Environment, scheme, value string) (*domain.Participant, error) {
	if !env.Valid() {
		return nil, domain.ErrInvalidEnvironment
	}
	if err := identifier.Validate(identifier.Identifier{Scheme: scheme, Value: value}); err != nil {
		return nil, err
	}
	return s.repo.FindActiveByIdentifier(ctx, s.db, env.String(), scheme, value)
}
