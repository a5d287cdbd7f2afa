// Package domain contains the append-only transmission event log and the
// statistics views derived from it.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Direction tells which side of the exchange a transmission belongs to.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// TransmissionEvent is one recorded status change. Events are append-only;
// every statistic is a fold over them, never a stored counter.
type TransmissionEvent struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	Environment    string        `gorm:"type:text;not null;index:ix_event_env_participant" json:"environment"`
	DocumentID     snowflake.ID  `gorm:"not null;index" json:"document_id"`
	TransmissionID snowflake.ID  `gorm:"not null;index" json:"transmission_id"`
	ParticipantID  snowflake.ID  `gorm:"not null;index:ix_event_env_participant" json:"participant_id"`
	Direction      Direction     `gorm:"type:text;not null" json:"direction"`
	FromStatus     *string       `gorm:"type:text" json:"from_status,omitempty"`
	ToStatus       string        `gorm:"type:text;not null" json:"to_status"`
	Reason         *string       `gorm:"type:text" json:"reason,omitempty"`
	OccurredAt     time.Time     `gorm:"not null;index" json:"occurred_at"`
}

// TableName sets the database table name.
func (TransmissionEvent) TableName() string { return "transmission_events" }

// Snapshot is the current exchange position of one participant.
type Snapshot struct {
	TotalSent      int64      `json:"total_sent"`
	TotalReceived  int64      `json:"total_received"`
	PendingCount   int64      `json:"pending_count"`
	FailedCount    int64      `json:"failed_count"`
	SuccessRate    int        `json:"success_rate"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

// MonthlyStat aggregates one calendar month of exchange activity.
type MonthlyStat struct {
	Year      int   `json:"year"`
	Month     int   `json:"month"`
	Sent      int64 `json:"sent"`
	Received  int64 `json:"received"`
	Delivered int64 `json:"delivered"`
	Accepted  int64 `json:"accepted"`
	Rejected  int64 `json:"rejected"`
	Failed    int64 `json:"failed"`
}
