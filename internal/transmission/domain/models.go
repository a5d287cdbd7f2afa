// Package domain contains the transmission lifecycle model. A transmission
// is one delivery attempt sequence for one exchange document.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status is the lifecycle position of a transmission.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusError     Status = "ERROR"
	StatusReceived  Status = "RECEIVED"
	StatusMLRIssued Status = "MLR_ISSUED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusDelivered, StatusAccepted,
		StatusRejected, StatusError, StatusReceived, StatusMLRIssued:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusError, StatusMLRIssued:
		return true
	}
	return false
}

// CanTransition is the exhaustive legal-move table. There are no backward
// transitions; cancellation is modelled as a move to ERROR from any
// non-terminal state.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusSent || to == StatusError
	case StatusSent:
		return to == StatusDelivered || to == StatusRejected || to == StatusError
	case StatusDelivered:
		return to == StatusAccepted || to == StatusRejected || to == StatusError
	case StatusReceived:
		return to == StatusMLRIssued || to == StatusError
	default:
		return false
	}
}

// Direction tells whether a transmission leaves or enters this access point.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// Transmission is one document's delivery record. At most one non-terminal
// transmission may exist per document; the database enforces this with a
// partial unique index on document_id.
type Transmission struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	Environment       string       `gorm:"type:text;not null;index" json:"environment"`
	DocumentID        snowflake.ID `gorm:"not null;index" json:"document_id"`
	ParticipantID     snowflake.ID `gorm:"not null;index" json:"participant_id"`
	Direction         Direction    `gorm:"type:text;not null" json:"direction"`
	Status            Status       `gorm:"type:text;not null;index" json:"status"`
	ProviderMessageID *string      `gorm:"type:text" json:"provider_message_id,omitempty"`
	Attempt           int          `gorm:"not null;default:0" json:"attempt"`
	LastError         *string      `gorm:"type:text" json:"last_error,omitempty"`
	NextAttemptAt     *time.Time   `json:"next_attempt_at,omitempty"`
	SentAt            *time.Time   `json:"sent_at,omitempty"`
	LastStatusAt      time.Time    `gorm:"not null" json:"last_status_at"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Transmission) TableName() string { return "transmissions" }
