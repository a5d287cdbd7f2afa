package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/peppolway/internal/clock"
	"github.com/smallbiznis/peppolway/internal/config"
	documentdomain "github.com/smallbiznis/peppolway/internal/document/domain"
	documentservice "github.com/smallbiznis/peppolway/internal/document/service"
	"github.com/smallbiznis/peppolway/internal/environment"
	statsdomain "github.com/smallbiznis/peppolway/internal/exchangestats/domain"
	statsrepository "github.com/smallbiznis/peppolway/internal/exchangestats/repository"
	statsservice "github.com/smallbiznis/peppolway/internal/exchangestats/service"
	participantdomain "github.com/smallbiznis/peppolway/internal/participant/domain"
	participantrepository "github.com/smallbiznis/peppolway/internal/participant/repository"
	participantservice "github.com/smallbiznis/peppolway/internal/participant/service"
	"github.com/smallbiznis/peppolway/internal/identifier"
	"github.com/smallbiznis/peppolway/internal/transmission/domain"
	"github.com/smallbiznis/peppolway/internal/transmission/repository"
	"github.com/smallbiznis/peppolway/internal/transport"
	"github.com/smallbiznis/peppolway/internal/transport/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc      domain.Service
	statsSvc statsdomain.Service
	ap       *fake.AccessPoint
	clock    *clock.FakeClock
	sender   participantdomain.Participant
	receiver participantdomain.Participant
	doc      documentdomain.ExchangeDocument
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&participantdomain.Participant{},
		&participantdomain.ParticipantIdentifier{},
		&documentdomain.ExchangeDocument{},
		&domain.Transmission{},
		&statsdomain.TransmissionEvent{},
	))
	// One in-flight transmission per document, enforced the same way as in
	// the postgres schema.
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_transmissions_active_document
		 ON transmissions (environment, document_id)
		 WHERE status NOT IN ('ACCEPTED', 'REJECTED', 'ERROR', 'MLR_ISSUED')`,
	).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	fakeClock := clock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))

	participantSvc := participantservice.NewService(participantservice.ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  participantrepository.Provide(),
	})
	documentSvc := documentservice.NewService(documentservice.ServiceParam{
		DB:             db,
		Log:            log,
		GenID:          node,
		ParticipantSvc: participantSvc,
	})

	statsParam := statsservice.ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  statsrepository.Provide(),
	}
	statsSvc := statsservice.NewService(statsParam)
	recorder := statsservice.NewRecorder(statsParam)

	ap := fake.New()
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fakeClock,
		Config: config.Config{
			Exchange: config.ExchangeConfig{
				MaxAttempts:    3,
				BackoffInitial: time.Second,
				BackoffMax:     time.Minute,
			},
		},
		Repo:           repository.Provide(),
		Recorder:       recorder,
		DocumentSvc:    documentSvc,
		ParticipantSvc: participantSvc,
		Transport:      ap,
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
		Role:        participantdomain.RoleBoth,
		Identifiers: []identifier.Identifier{{Scheme: "9925", Value: "987654321"}},
	})
	require.NoError(t, err)

	doc, err := documentSvc.Convert(ctx, documentdomain.ConvertRequest{
		Environment:           environment.Sandbox,
		SenderParticipantID:   sender.ID.String(),
		ReceiverParticipantID: receiver.ID.String(),
		Record: documentdomain.SourceRecord{
			ID:           "INV-1001",
			DocumentType: documentdomain.TypeInvoice,
			Currency:     "EUR",
			IssueDate:    time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
			Lines: []documentdomain.SourceLine{
				{Description: "Widget", Quantity: 2, UnitAmount: 500, Amount: 1000},
			},
			TaxTotal:    210,
			TotalAmount: 1210,
		},
	})
	require.NoError(t, err)

	return &fixture{
		svc:      svc,
		statsSvc: statsSvc,
		ap:       ap,
		clock:    fakeClock,
		sender:   sender,
		receiver: receiver,
		doc:      doc,
	}
}

func TestEnqueue_SecondEnqueueRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Enqueue(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, first.Status)
	assert.Equal(t, domain.DirectionOutbound, first.Direction)

	_, err = f.svc.Enqueue(ctx, environment.Sandbox, f.doc.ID.String())
	assert.ErrorIs(t, err, domain.ErrAlreadyInFlight)
}

func TestEnqueue_UnknownDocument(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Enqueue(context.Background(), environment.Sandbox, "424242424242")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDispatch_EndToEndAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Enqueue(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)

	processed, err := f.svc.DispatchDue(ctx, environment.Sandbox, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	sent, err := f.svc.GetByDocument(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, sent.Status)
	assert.Equal(t, 1, sent.Attempt)
	require.NotNil(t, sent.ProviderMessageID)
	require.NotNil(t, sent.SentAt)

	// The rendered payload travelled to the access point as-is.
	calls := f.ap.SendCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, f.doc.Payload, calls[0].Payload)
	assert.Equal(t, "0208", calls[0].SenderIdentifier.Scheme)

	f.ap.SetStatus(*sent.ProviderMessageID, transport.StatusResult{Status: transport.StatusDelivered})
	_, err = f.svc.PollInFlight(ctx, environment.Sandbox, 10)
	require.NoError(t, err)

	delivered, err := f.svc.GetByDocument(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, delivered.Status)

	f.ap.SetStatus(*sent.ProviderMessageID, transport.StatusResult{Status: transport.StatusAccepted})
	_, err = f.svc.PollInFlight(ctx, environment.Sandbox, 10)
	require.NoError(t, err)

	accepted, err := f.svc.GetByDocument(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, accepted.Status)

	snapshot, err := f.statsSvc.Snapshot(ctx, environment.Sandbox, f.sender.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snapshot.TotalSent)
	assert.Equal(t, int64(0), snapshot.PendingCount)
	assert.Equal(t, int64(0), snapshot.FailedCount)
	assert.Equal(t, 100, snapshot.SuccessRate)
	require.NotNil(t, snapshot.LastActivityAt)
}

func TestDispatch_TransientRetriesThenSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ap.QueueSendError(
		transport.Transient(errors.New("connection reset")),
		transport.Transient(errors.New("gateway timeout")),
	)

	_, err := f.svc.Enqueue(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)

	_, err = f.svc.DispatchDue(ctx, environment.Sandbox, 10)
	require.NoError(t, err)

	pending, err := f.svc.GetByDocument(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, pending.Status)
	assert.Equal(t, 1, pending.Attempt)
	require.NotNil(t, pending.NextAttemptAt)
	assert.True(t, pending.NextAttemptAt.After(f.clock.Now()))

	// Not due yet: the backoff window gates the next attempt.
	processed, err := f.svc.DispatchDue(ctx, environment.Sandbox, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)

	f.clock.Advance(time.Hour)
	_, err = f.svc.DispatchDue(ctx, environment.Sandbox, 10)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.svc.DispatchDue(ctx, environment.Sandbox, 10)
	require.NoError(t, err)

	sent, err := f.svc.GetByDocument(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, sent.Status)
	assert.Equal(t, 3, sent.Attempt)
}

func TestDispatch_PermanentErrorFailsImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ap.QueueSendError(transport.Permanent("invalid_receiver", "receiver unknown on the network"))

	_, err := f.svc.Enqueue(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)
	_, err = f.svc.DispatchDue(ctx, environment.Sandbox, 10)
	require.NoError(t, err)

	failed, err := f.svc.GetByDocument(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, failed.Status)
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "invalid_receiver")

	snapshot, err := f.statsSvc.Snapshot(ctx, environment.Sandbox, f.sender.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snapshot.FailedCount)
	assert.Equal(t, 0, snapshot.SuccessRate)
}

func TestDispatch_RetriesExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ap.QueueSendError(
		transport.Transient(errors.New("timeout")),
		transport.Transient(errors.New("timeout")),
		transport.Transient(errors.New("timeout")),
	)

	_, err := f.svc.Enqueue(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = f.svc.DispatchDue(ctx, environment.Sandbox, 10)
		require.NoError(t, err)
		f.clock.Advance(time.Hour)
	}

	failed, err := f.svc.GetByDocument(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, failed.Status)
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "retries_exhausted")
}

func TestCancel_ThenReEnqueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Enqueue(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, cancelled.Status)
	require.NotNil(t, cancelled.LastError)
	assert.Equal(t, "cancelled", *cancelled.LastError)

	// Cancelling again is a no-op on the terminal row.
	again, err := f.svc.Cancel(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, cancelled.ID, again.ID)
	assert.Equal(t, domain.StatusError, again.Status)

	// The terminal transmission no longer blocks a fresh attempt.
	fresh, err := f.svc.Enqueue(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)
	assert.NotEqual(t, cancelled.ID, fresh.ID)
	assert.Equal(t, domain.StatusPending, fresh.Status)
}

func TestCancel_UnknownDocument(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Cancel(context.Background(), environment.Sandbox, "424242424242")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordInbound_AcknowledgesImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inbound, err := f.svc.RecordInbound(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMLRIssued, inbound.Status)
	assert.Equal(t, domain.DirectionInbound, inbound.Direction)
	assert.Equal(t, f.receiver.ID, inbound.ParticipantID)

	// Recording the same document again returns the stored transmission.
	again, err := f.svc.RecordInbound(ctx, environment.Sandbox, f.doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, inbound.ID, again.ID)

	snapshot, err := f.statsSvc.Snapshot(ctx, environment.Sandbox, f.receiver.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snapshot.TotalReceived)
	assert.Equal(t, int64(0), snapshot.PendingCount)
}
