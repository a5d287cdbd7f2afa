package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/peppolway/internal/environment"
	"github.com/smallbiznis/peppolway/internal/identifier"
)

type RegisterParticipantRequest struct {
	Environment environment.Environment
	LegalName   string
	CountryCode string
	TaxID       *string
	Role        ParticipantRole
	Identifiers []identifier.Identifier
}

type ListParticipantRequest struct {
	Environment environment.Environment
	Role        *ParticipantRole
	ActiveOnly  bool
}

type ListParticipantResponse struct {
	Participants []Participant `json:"participants"`
}

type Service interface {
	Register(context.Context, RegisterParticipantRequest) (Participant, error)
	GetByID(ctx context.Context, env environment.Environment, id string) (Participant, error)
	List(context.Context, ListParticipantRequest) (ListParticipantResponse, error)
	SetRole(ctx context.Context, env environment.Environment, id string, role ParticipantRole) error
	AddIdentifier(ctx context.Context, env environment.Environment, id string, ident identifier.Identifier) error
	Deactivate(ctx context.Context, env environment.Environment, id string) error
	FindByIdentifier(ctx context.Context, env environment.Environment, scheme, value string) (*Participant, error)
}

var (
	ErrInvalidEnvironment = errors.New("invalid_environment")
	ErrInvalidLegalName   = errors.New("invalid_legal_name")
	ErrInvalidCountry     = errors.New("invalid_country")
	ErrInvalidRole        = errors.New("invalid_role")
	ErrInvalidID          = errors.New("invalid_id")
	ErrRoleConflict       = errors.New("role_conflict")
	ErrIdentifierTaken    = errors.New("identifier_taken")
	ErrNotFound           = errors.New("not_found")
)
