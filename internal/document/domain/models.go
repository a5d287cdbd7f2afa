// Package domain contains models for standardized exchange documents.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// DocumentType distinguishes the two exchangeable business documents.
type DocumentType string

const (
	TypeInvoice    DocumentType = "INVOICE"
	TypeCreditNote DocumentType = "CREDIT_NOTE"
)

func (t DocumentType) Valid() bool {
	return t == TypeInvoice || t == TypeCreditNote
}

// SourceRecord is the business invoice or credit note produced by the
// invoicing collaborator. Read-only input; this subsystem never mutates it.
type SourceRecord struct {
	ID           string       `json:"id"`
	DocumentType DocumentType `json:"document_type"`
	Currency     string       `json:"currency"`
	IssueDate    time.Time    `json:"issue_date"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	Note         string       `json:"note,omitempty"`
	Lines        []SourceLine `json:"lines"`
	TaxTotal     int64        `json:"tax_total"`
	TotalAmount  int64        `json:"total_amount"`
}

// SourceLine is one billed line. Amounts are integer minor units.
type SourceLine struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
	Amount      int64  `json:"amount"`
}

// ExchangeDocument is the immutable standardized rendition of one source
// record. Generated once; regeneration returns the stored document.
type ExchangeDocument struct {
	ID                    snowflake.ID   `gorm:"primaryKey" json:"id"`
	Environment           string         `gorm:"type:text;not null;uniqueIndex:ux_document_env_source" json:"environment"`
	DocumentType          DocumentType   `gorm:"type:text;not null" json:"document_type"`
	SourceRecordRef       string         `gorm:"type:text;not null;uniqueIndex:ux_document_env_source" json:"source_record_ref"`
	SenderParticipantID   snowflake.ID   `gorm:"not null;index" json:"sender_participant_id"`
	ReceiverParticipantID snowflake.ID   `gorm:"not null;index" json:"receiver_participant_id"`
	Currency              string         `gorm:"type:text;not null" json:"currency"`
	TotalAmount           int64          `gorm:"not null" json:"total_amount"`
	Payload               []byte         `gorm:"type:bytes;not null" json:"-"`
	SourceSnapshot        datatypes.JSON `gorm:"not null" json:"-"`
	CreatedAt             time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ExchangeDocument) TableName() string { return "exchange_documents" }
