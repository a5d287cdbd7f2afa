package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	documentdomain "github.com/smallbiznis/peppolway/internal/document/domain"
	"github.com/smallbiznis/peppolway/internal/document/ubl"
	"github.com/smallbiznis/peppolway/internal/environment"
	"github.com/smallbiznis/peppolway/internal/identifier"
	participantdomain "github.com/smallbiznis/peppolway/internal/participant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type ServiceParam struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	ParticipantSvc participantdomain.Service
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	participantSvc participantdomain.Service
}

func NewService(p ServiceParam) documentdomain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("document.service"),
		genID:          p.GenID,
		participantSvc: p.ParticipantSvc,
	}
}

// Convert maps a source record into its standardized payload. The
// operation is idempotent per (environment, source record): converting
// the same record again returns the stored document unchanged.
func (s *Service) Convert(ctx context.Context, req documentdomain.ConvertRequest) (documentdomain.ExchangeDocument, error) {
	if !req.Environment.Valid() {
		return documentdomain.ExchangeDocument{}, documentdomain.ErrInvalidEnvironment
	}

	sender, senderIdent, err := s.resolveParty(ctx, req.Environment, req.SenderParticipantID, req.SchemeOverride, partySender)
	if err != nil {
		return documentdomain.ExchangeDocument{}, err
	}
	receiver, receiverIdent, err := s.resolveParty(ctx, req.Environment, req.ReceiverParticipantID, "", partyReceiver)
	if err != nil {
		return documentdomain.ExchangeDocument{}, err
	}

	if err := validateRecord(req.Record); err != nil {
		return documentdomain.ExchangeDocument{}, err
	}

	payload, err := ubl.Render(ubl.Input{
		Record:             req.Record,
		SenderName:         sender.LegalName,
		SenderIdentifier:   senderIdent,
		ReceiverName:       receiver.LegalName,
		ReceiverIdentifier: receiverIdent,
	})
	if err != nil {
		return documentdomain.ExchangeDocument{}, err
	}

	// The validated input is persisted alongside the rendition so a
	// stored document can always be traced back to what produced it.
	snapshot, err := json.Marshal(req.Record)
	if err != nil {
		return documentdomain.ExchangeDocument{}, err
	}

	now := time.Now().UTC()
	doc := documentdomain.ExchangeDocument{
		ID:                    s.genID.Generate(),
		Environment:           req.Environment.String(),
		DocumentType:          req.Record.DocumentType,
		SourceRecordRef:       strings.TrimSpace(req.Record.ID),
		SenderParticipantID:   sender.ID,
		ReceiverParticipantID: receiver.ID,
		Currency:              req.Record.Currency,
		TotalAmount:           req.Record.TotalAmount,
		Payload:               payload,
		SourceSnapshot:        snapshot,
		CreatedAt:             now,
	}

	var result documentdomain.ExchangeDocument
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.insertDocument(ctx, tx, doc)
		if err != nil {
			return err
		}
		if inserted {
			result = doc
			return nil
		}
		// Another conversion already produced this document; return it
		// rather than regenerating a divergent payload.
		existing, err := s.findBySourceRef(ctx, tx, doc.Environment, doc.SourceRecordRef)
		if err != nil {
			return err
		}
		if existing == nil {
			return documentdomain.ErrNotFound
		}
		result = *existing
		return nil
	})
	if err != nil {
		return documentdomain.ExchangeDocument{}, err
	}

	s.log.Info("document converted",
		zap.String("document_id", result.ID.String()),
		zap.String("environment", result.Environment),
		zap.String("source_record_ref", result.SourceRecordRef),
		zap.String("document_type", string(result.DocumentType)),
	)
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, env environment.Environment, id string) (documentdomain.ExchangeDocument, error) {
	if !env.Valid() {
		return documentdomain.ExchangeDocument{}, documentdomain.ErrInvalidEnvironment
	}
	documentID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return documentdomain.ExchangeDocument{}, documentdomain.ErrInvalidID
	}

	doc, err := s.findByID(ctx, s.db, env.String(), documentID)
	if err != nil {
		return documentdomain.ExchangeDocument{}, err
	}
	if doc == nil {
		return documentdomain.ExchangeDocument{}, documentdomain.ErrNotFound
	}
	return *doc, nil
}

func (s *Service) Payload(ctx context.Context, env environment.Environment, id string) ([]byte, error) {
	doc, err := s.GetByID(ctx, env, id)
	if err != nil {
		return nil, err
	}
	return doc.Payload, nil
}

type partyKind string

const (
	partySender   partyKind = "sender"
	partyReceiver partyKind = "receiver"
)

func (s *Service) resolveParty(ctx context.Context, env environment.Environment, id, schemeOverride string, kind partyKind) (participantdomain.Participant, identifier.Identifier, error) {
	participant, err := s.participantSvc.GetByID(ctx, env, id)
	if err != nil {
		if errors.Is(err, participantdomain.ErrNotFound) || errors.Is(err, participantdomain.ErrInvalidID) {
			return participantdomain.Participant{}, identifier.Identifier{}, documentdomain.ErrNotConfigured
		}
		return participantdomain.Participant{}, identifier.Identifier{}, err
	}
	if !participant.Active {
		return participantdomain.Participant{}, identifier.Identifier{}, documentdomain.ErrNotConfigured
	}
	if kind == partySender && !participant.Role.CanSend() {
		return participantdomain.Participant{}, identifier.Identifier{}, documentdomain.ErrNotConfigured
	}
	if kind == partyReceiver && !participant.Role.CanReceive() {
		return participantdomain.Participant{}, identifier.Identifier{}, documentdomain.ErrNotConfigured
	}

	if schemeOverride != "" {
		ident, ok := participant.IdentifierFor(schemeOverride)
		if !ok {
			return participantdomain.Participant{}, identifier.Identifier{}, documentdomain.ErrNotConfigured
		}
		return participant, ident, nil
	}
	ident, ok := participant.DefaultIdentifier()
	if !ok {
		return participantdomain.Participant{}, identifier.Identifier{}, documentdomain.ErrNotConfigured
	}
	return participant, ident, nil
}

// validateRecord checks schema-level constraints. Nothing is coerced:
// a record that fails any rule is rejected naming the offending field.
func validateRecord(record documentdomain.SourceRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return documentdomain.NewConversionError("id", "source record id is required")
	}
	if !record.DocumentType.Valid() {
		return documentdomain.NewConversionError("document_type", "must be INVOICE or CREDIT_NOTE")
	}
	if !currencyPattern.MatchString(record.Currency) {
		return documentdomain.NewConversionError("currency", "must be a 3-letter ISO code")
	}
	if record.IssueDate.IsZero() {
		return documentdomain.NewConversionError("issue_date", "issue date is required")
	}
	if len(record.Lines) == 0 {
		return documentdomain.NewConversionError("lines", "at least one line is required")
	}
	if record.TaxTotal < 0 {
		return documentdomain.NewConversionError("tax_total", "must not be negative")
	}

	var lineSum int64
	for i, line := range record.Lines {
		if strings.TrimSpace(line.Description) == "" {
			return documentdomain.NewConversionError(lineField(i, "description"), "description is required")
		}
		if line.Quantity <= 0 {
			return documentdomain.NewConversionError(lineField(i, "quantity"), "must be positive")
		}
		if line.Amount != line.Quantity*line.UnitAmount {
			return documentdomain.NewConversionError(lineField(i, "amount"), "amount must equal quantity * unit_amount")
		}
		lineSum += line.Amount
	}
	if record.TotalAmount != lineSum+record.TaxTotal {
		return documentdomain.NewConversionError("total_amount", "total must equal sum of lines plus tax")
	}
	return nil
}

func lineField(index int, field string) string {
	return fmt.Sprintf("lines[%d].%s", index, field)
}

func (s *Service) insertDocument(ctx context.Context, tx *gorm.DB, doc documentdomain.ExchangeDocument) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`INSERT INTO exchange_documents (
			id, environment, document_type, source_record_ref,
			sender_participant_id, receiver_participant_id,
			currency, total_amount, payload, source_snapshot, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (environment, source_record_ref) DO NOTHING`,
		doc.ID,
		doc.Environment,
		doc.DocumentType,
		doc.SourceRecordRef,
		doc.SenderParticipantID,
		doc.ReceiverParticipantID,
		doc.Currency,
		doc.TotalAmount,
		doc.Payload,
		doc.SourceSnapshot,
		doc.CreatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Service) findBySourceRef(ctx context.Context, tx *gorm.DB, env, sourceRef string) (*documentdomain.ExchangeDocument, error) {
	var doc documentdomain.ExchangeDocument
	err := tx.WithContext(ctx).Raw(
		`SELECT id, environment, document_type, source_record_ref,
		        sender_participant_id, receiver_participant_id,
		        currency, total_amount, payload, source_snapshot, created_at
		 FROM exchange_documents
		 WHERE environment = ? AND source_record_ref = ?`,
		env,
		sourceRef,
	).Scan(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == 0 {
		return nil, nil
	}
	return &doc, nil
}

func (s *Service) findByID(ctx context.Context, db *gorm.DB, env string, id snowflake.ID) (*documentdomain.ExchangeDocument, error) {
	var doc documentdomain.ExchangeDocument
	err := db.WithContext(ctx).Raw(
		`SELECT id, environment, document_type, source_record_ref,
		        sender_participant_id, receiver_participant_id,
		        currency, total_amount, payload, source_snapshot, created_at
		 FROM exchange_documents
		 WHERE environment = ? AND id = ?`,
		env,
		id,
	).Scan(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == 0 {
		return nil, nil
	}
	return &doc, nil
}
