package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	documentdomain "github.com/smallbiznis/peppolway/internal/document/domain"
	"github.com/smallbiznis/peppolway/internal/environment"
	"github.com/smallbiznis/peppolway/internal/identifier"
	participantdomain "github.com/smallbiznis/peppolway/internal/participant/domain"
	participantrepository "github.com/smallbiznis/peppolway/internal/participant/repository"
	participantservice "github.com/smallbiznis/peppolway/internal/participant/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc      documentdomain.Service
	sender   participantdomain.Participant
	receiver participantdomain.Participant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&participantdomain.Participant{},
		&participantdomain.ParticipantIdentifier{},
		&documentdomain.ExchangeDocument{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	participantSvc := participantservice.NewService(participantservice.ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  participantrepository.Provide(),
	})

	ctx := context.Background()
	sender, err := participantSvc.Register(ctx, participantdomain.RegisterParticipantRequest{
		Environment: environment.Sandbox,
		LegalName:   "Acme BV",
		CountryCode: "BE",
		Role:        participantdomain.RoleBoth,
		Identifiers: []identifier.Identifier{{Scheme: "0208", Value: "123456789"}},
	})
	require.NoError(t, err)

	receiver, err := participantSvc.Register(ctx, participantdomain.RegisterParticipantRequest{
		Environment: environment.Sandbox,
		LegalName:   "Globex NV",
		CountryCode: "NL",
		Role:        participantdomain.RoleReceiver,
		Identifiers: []identifier.Identifier{{Scheme: "9925", Value: "987654321"}},
	})
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:             db,
		Log:            log,
		GenID:          node,
		ParticipantSvc: participantSvc,
	})

	return &fixture{svc: svc, sender: sender, receiver: receiver}
}

func validRecord() documentdomain.SourceRecord {
	return documentdomain.SourceRecord{
		ID:           "INV-1001",
		DocumentType: documentdomain.TypeInvoice,
		Currency:     "EUR",
		IssueDate:    time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Lines: []documentdomain.SourceLine{
			{Description: "Widget", Quantity: 3, UnitAmount: 250, Amount: 750},
			{Description: "Gadget", Quantity: 1, UnitAmount: 100, Amount: 100},
		},
		TaxTotal:    150,
		TotalAmount: 1000,
	}
}

func (f *fixture) convert(ctx context.Context, record documentdomain.SourceRecord) (documentdomain.ExchangeDocument, error) {
	return f.svc.Convert(ctx, documentdomain.ConvertRequest{
		Environment:           environment.Sandbox,
		Record:                record,
		SenderParticipantID:   f.sender.ID.String(),
		ReceiverParticipantID: f.receiver.ID.String(),
	})
}

func TestConvert_RendersPayload(t *testing.T) {
	f := newFixture(t)

	doc, err := f.convert(context.Background(), validRecord())
	require.NoError(t, err)

	assert.Equal(t, documentdomain.TypeInvoice, doc.DocumentType)
	assert.Equal(t, "INV-1001", doc.SourceRecordRef)
	assert.Equal(t, f.sender.ID, doc.SenderParticipantID)
	assert.Equal(t, f.receiver.ID, doc.ReceiverParticipantID)
	assert.Contains(t, string(doc.Payload), `schemeID="0208"`)
	assert.Contains(t, string(doc.Payload), `schemeID="9925"`)

	var snapshot documentdomain.SourceRecord
	require.NoError(t, json.Unmarshal(doc.SourceSnapshot, &snapshot))
	assert.Equal(t, "INV-1001", snapshot.ID)
	assert.Equal(t, int64(1000), snapshot.TotalAmount)
}

func TestConvert_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.convert(ctx, validRecord())
	require.NoError(t, err)

	second, err := f.convert(ctx, validRecord())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Payload, second.Payload)
}

func TestConvert_ValidationErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*documentdomain.SourceRecord)
		field  string
	}{
		{
			name:   "bad currency",
			mutate: func(r *documentdomain.SourceRecord) { r.Currency = "eur" },
			field:  "currency",
		},
		{
			name:   "no lines",
			mutate: func(r *documentdomain.SourceRecord) { r.Lines = nil },
			field:  "lines",
		},
		{
			name: "line amount mismatch",
			mutate: func(r *documentdomain.SourceRecord) {
				r.Lines[0].Amount = 751
				r.TotalAmount = 1001
			},
			field: "lines[0].amount",
		},
		{
			name:   "total mismatch",
			mutate: func(r *documentdomain.SourceRecord) { r.TotalAmount = 999 },
			field:  "total_amount",
		},
		{
			name:   "negative tax",
			mutate: func(r *documentdomain.SourceRecord) { r.TaxTotal = -1 },
			field:  "tax_total",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record := validRecord()
			tc.mutate(&record)

			_, err := f.convert(ctx, record)
			convErr := documentdomain.AsConversionError(err)
			require.NotNil(t, convErr, "expected conversion error, got %v", err)
			assert.Equal(t, tc.field, convErr.Field)
		})
	}
}

func TestConvert_SenderCannotReceiveRole(t *testing.T) {
	f := newFixture(t)

	// Swap the parties: the RECEIVER-only participant cannot send.
	_, err := f.svc.Convert(context.Background(), documentdomain.ConvertRequest{
		Environment:           environment.Sandbox,
		Record:                validRecord(),
		SenderParticipantID:   f.receiver.ID.String(),
		ReceiverParticipantID: f.sender.ID.String(),
	})
	assert.ErrorIs(t, err, documentdomain.ErrNotConfigured)
}

func TestConvert_SchemeOverride(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Convert(context.Background(), documentdomain.ConvertRequest{
		Environment:           environment.Sandbox,
		Record:                validRecord(),
		SenderParticipantID:   f.sender.ID.String(),
		ReceiverParticipantID: f.receiver.ID.String(),
		SchemeOverride:        "9999",
	})
	// Sender holds no identifier under the requested scheme.
	assert.ErrorIs(t, err, documentdomain.ErrNotConfigured)
}
