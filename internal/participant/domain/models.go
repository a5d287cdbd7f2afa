// Package domain contains persistence models for network participants.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/peppolway/internal/identifier"
)

// ParticipantRole constrains how a participant may take part in exchanges.
type ParticipantRole string

const (
	RoleSender   ParticipantRole = "SENDER"
	RoleReceiver ParticipantRole = "RECEIVER"
	RoleBoth     ParticipantRole = "BOTH"
)

func (r ParticipantRole) Valid() bool {
	switch r {
	case RoleSender, RoleReceiver, RoleBoth:
		return true
	default:
		return false
	}
}

func (r ParticipantRole) CanSend() bool {
	return r == RoleSender || r == RoleBoth
}

func (r ParticipantRole) CanReceive() bool {
	return r == RoleReceiver || r == RoleBoth
}

// Participant represents a business entity on the exchange network.
// Identifiers are ordered; the first one is the default network address.
type Participant struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	Environment string          `gorm:"type:text;not null;index" json:"environment"`
	LegalName   string          `gorm:"type:text;not null" json:"legal_name"`
	CountryCode string          `gorm:"type:text;not null" json:"country_code"`
	TaxID       *string         `gorm:"type:text" json:"tax_id,omitempty"`
	Role        ParticipantRole `gorm:"type:text;not null" json:"role"`
	Active      bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Identifiers []ParticipantIdentifier `gorm:"foreignKey:ParticipantID" json:"identifiers"`
}

// TableName sets the database table name.
func (Participant) TableName() string { return "participants" }

// ParticipantIdentifier is one scheme-qualified address held by a participant.
type ParticipantIdentifier struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	ParticipantID snowflake.ID `gorm:"not null;index" json:"participant_id"`
	Environment   string       `gorm:"type:text;not null;uniqueIndex:ux_identifier_env_scheme_value" json:"environment"`
	Scheme        string       `gorm:"type:text;not null;uniqueIndex:ux_identifier_env_scheme_value" json:"scheme"`
	Value         string       `gorm:"type:text;not null;uniqueIndex:ux_identifier_env_scheme_value" json:"value"`
	Position      int          `gorm:"not null" json:"position"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ParticipantIdentifier) TableName() string { return "participant_identifiers" }

// DefaultIdentifier returns the first identifier by position. Scheme
// precedence between coexisting schemes (e.g. 0208 vs 9925) is the
// caller's choice; registration order is the only default.
func (p Participant) DefaultIdentifier() (identifier.Identifier, bool) {
	if len(p.Identifiers) == 0 {
		return identifier.Identifier{}, false
	}
	first := p.Identifiers[0]
	return identifier.Identifier{Scheme: first.Scheme, Value: first.Value}, true
}

// IdentifierFor returns the participant's identifier under the given scheme.
func (p Participant) IdentifierFor(scheme string) (identifier.Identifier, bool) {
	for _, id := range p.Identifiers {
		if id.Scheme == scheme {
			return identifier.Identifier{Scheme: id.Scheme, Value: id.Value}, true
		}
	}
	return identifier.Identifier{}, false
}
