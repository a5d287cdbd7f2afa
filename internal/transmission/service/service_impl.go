package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v4"
	"github.com/smallbiznis/peppolway/internal/clock"
	"github.com/smallbiznis/peppolway/internal/config"
	documentdomain "github.com/smallbiznis/peppolway/internal/document/domain"
	"github.com/smallbiznis/peppolway/internal/environment"
	statsdomain "github.com/smallbiznis/peppolway/internal/exchangestats/domain"
	"github.com/smallbiznis/peppolway/internal/observability/metrics"
	participantdomain "github.com/smallbiznis/peppolway/internal/participant/domain"
	"github.com/smallbiznis/peppolway/internal/transmission/domain"
	"github.com/smallbiznis/peppolway/internal/transport"
	pkgdb "github.com/smallbiznis/peppolway/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reasonCancelled = "cancelled"

type ServiceParam struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Config         config.Config
	Repo           domain.Repository
	Recorder       statsdomain.Recorder
	DocumentSvc    documentdomain.Service
	ParticipantSvc participantdomain.Service
	Transport      transport.AccessPoint
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	cfg            config.ExchangeConfig
	repo           domain.Repository
	recorder       statsdomain.Recorder
	documentSvc    documentdomain.Service
	participantSvc participantdomain.Service
	transport      transport.AccessPoint
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("transmission.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		cfg:            p.Config.Exchange,
		repo:           p.Repo,
		recorder:       p.Recorder,
		documentSvc:    p.DocumentSvc,
		participantSvc: p.ParticipantSvc,
		transport:      p.Transport,
	}
}

// Enqueue creates the PENDING transmission for a document and returns
// immediately; the dispatch worker performs the transport call. A second
// enqueue while a non-terminal transmission exists is rejected.
func (s *Service) Enqueue(ctx context.Context, env environment.Environment, documentID string) (domain.Transmission, error) {
	if !env.Valid() {
		return domain.Transmission{}, domain.ErrInvalidEnvironment
	}
	doc, err := s.loadDocument(ctx, env, documentID)
	if err != nil {
		return domain.Transmission{}, err
	}

	var created domain.Transmission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := s.repo.FindActiveByDocument(ctx, tx, env.String(), doc.ID)
		if err != nil {
			return err
		}
		if active != nil {
			return domain.ErrAlreadyInFlight
		}

		now := s.clock.Now()
		transmission := domain.Transmission{
			ID:            s.genID.Generate(),
			Environment:   env.String(),
			DocumentID:    doc.ID,
			ParticipantID: doc.SenderParticipantID,
			Direction:     domain.DirectionOutbound,
			Status:        domain.StatusPending,
			LastStatusAt:  now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.Insert(ctx, tx, &transmission); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyInFlight
			}
			return err
		}
		if err := s.recordEvent(ctx, tx, &transmission, nil, domain.StatusPending, nil, now); err != nil {
			return err
		}
		created = transmission
		return nil
	})
	if err != nil {
		return domain.Transmission{}, err
	}

	metrics.Exchange().IncTransmission(metrics.DirectionOutbound)
	metrics.Exchange().IncTransition("none", string(domain.StatusPending))
	s.log.Info("transmission enqueued",
		zap.String("transmission_id", created.ID.String()),
		zap.String("document_id", created.DocumentID.String()),
		zap.String("environment", created.Environment),
	)
	return created, nil
}

// Cancel moves a non-terminal transmission to ERROR. Cancelling an already
// terminal transmission is a no-op that returns the stored row.
func (s *Service) Cancel(ctx context.Context, env environment.Environment, documentID string) (domain.Transmission, error) {
	if !env.Valid() {
		return domain.Transmission{}, domain.ErrInvalidEnvironment
	}
	docID, err := parseID(documentID)
	if err != nil {
		return domain.Transmission{}, err
	}

	var result domain.Transmission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := s.repo.FindActiveByDocument(ctx, tx, env.String(), docID)
		if err != nil {
			return err
		}
		if active == nil {
			latest, err := s.repo.FindLatestByDocument(ctx, tx, env.String(), docID)
			if err != nil {
				return err
			}
			if latest == nil {
				return domain.ErrNotFound
			}
			result = *latest
			return nil
		}

		now := s.clock.Now()
		reason := reasonCancelled
		updated, err := s.transition(ctx, tx, active, domain.StatusError, &reason, now)
		if err != nil {
			return err
		}
		result = *updated
		return nil
	})
	if err != nil {
		return domain.Transmission{}, err
	}
	return result, nil
}

// RecordInbound registers a received document and immediately acknowledges
// it, leaving the transmission at MLR_ISSUED. Recording the same document
// twice returns the stored transmission.
func (s *Service) RecordInbound(ctx context.Context, env environment.Environment, documentID string) (domain.Transmission, error) {
	if !env.Valid() {
		return domain.Transmission{}, domain.ErrInvalidEnvironment
	}
	doc, err := s.loadDocument(ctx, env, documentID)
	if err != nil {
		return domain.Transmission{}, err
	}

	var result domain.Transmission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		latest, err := s.repo.FindLatestByDocument(ctx, tx, env.String(), doc.ID)
		if err != nil {
			return err
		}
		if latest != nil && latest.Direction == domain.DirectionInbound {
			result = *latest
			return nil
		}

		now := s.clock.Now()
		transmission := domain.Transmission{
			ID:            s.genID.Generate(),
			Environment:   env.String(),
			DocumentID:    doc.ID,
			ParticipantID: doc.ReceiverParticipantID,
			Direction:     domain.DirectionInbound,
			Status:        domain.StatusReceived,
			LastStatusAt:  now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.Insert(ctx, tx, &transmission); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyInFlight
			}
			return err
		}
		if err := s.recordEvent(ctx, tx, &transmission, nil, domain.StatusReceived, nil, now); err != nil {
			return err
		}

		updated, err := s.transition(ctx, tx, &transmission, domain.StatusMLRIssued, nil, now)
		if err != nil {
			return err
		}
		result = *updated
		return nil
	})
	if err != nil {
		return domain.Transmission{}, err
	}

	metrics.Exchange().IncTransmission(metrics.DirectionInbound)
	s.log.Info("inbound document recorded",
		zap.String("transmission_id", result.ID.String()),
		zap.String("document_id", result.DocumentID.String()),
		zap.String("environment", result.Environment),
	)
	return result, nil
}

func (s *Service) GetByDocument(ctx context.Context, env environment.Environment, documentID string) (domain.Transmission, error) {
	if !env.Valid() {
		return domain.Transmission{}, domain.ErrInvalidEnvironment
	}
	docID, err := parseID(documentID)
	if err != nil {
		return domain.Transmission{}, err
	}
	transmission, err := s.repo.FindLatestByDocument(ctx, s.db, env.String(), docID)
	if err != nil {
		return domain.Transmission{}, err
	}
	if transmission == nil {
		return domain.Transmission{}, domain.ErrNotFound
	}
	return *transmission, nil
}

// DispatchDue sends every due PENDING transmission once. Failures on one
// row never block the rest of the batch.
func (s *Service) DispatchDue(ctx context.Context, env environment.Environment, limit int) (int, error) {
	if !env.Valid() {
		return 0, domain.ErrInvalidEnvironment
	}
	due, err := s.repo.DueForDispatch(ctx, s.db, env.String(), s.clock.Now(), limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if err := s.dispatchOne(ctx, env, &due[i]); err != nil {
			s.log.Warn("dispatch failed",
				zap.String("transmission_id", due[i].ID.String()),
				zap.String("environment", env.String()),
				zap.Error(err),
			)
			continue
		}
		processed++
	}
	return processed, nil
}

// PollInFlight refreshes provider status for SENT and DELIVERED rows.
func (s *Service) PollInFlight(ctx context.Context, env environment.Environment, limit int) (int, error) {
	if !env.Valid() {
		return 0, domain.ErrInvalidEnvironment
	}
	inFlight, err := s.repo.InFlight(ctx, s.db, env.String(), limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range inFlight {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if err := s.pollOne(ctx, env, &inFlight[i]); err != nil {
			s.log.Warn("status poll failed",
				zap.String("transmission_id", inFlight[i].ID.String()),
				zap.String("environment", env.String()),
				zap.Error(err),
			)
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *Service) dispatchOne(ctx context.Context, env environment.Environment, transmission *domain.Transmission) error {
	req, err := s.buildSendRequest(ctx, env, transmission)
	if err != nil {
		// Pre-flight failures cannot heal on retry.
		return s.fail(ctx, transmission, err.Error())
	}

	attempt := transmission.Attempt + 1
	result, err := s.transport.Send(ctx, env, req)
	switch {
	case err == nil:
		metrics.Exchange().IncTransportAttempt(metrics.TransportOutcomeAccepted)
		return s.markSent(ctx, transmission, attempt, result.ProviderMessageID)
	case transport.IsPermanent(err):
		metrics.Exchange().IncTransportAttempt(metrics.TransportOutcomePermanent)
		return s.fail(ctx, transmission, err.Error())
	case attempt >= s.cfg.MaxAttempts:
		metrics.Exchange().IncTransportAttempt(metrics.TransportOutcomeTransient)
		return s.fail(ctx, transmission, fmt.Sprintf("retries_exhausted after %d attempts: %v", attempt, err))
	default:
		metrics.Exchange().IncTransportAttempt(metrics.TransportOutcomeTransient)
		return s.reschedule(ctx, transmission, attempt, err.Error())
	}
}

func (s *Service) pollOne(ctx context.Context, env environment.Environment, transmission *domain.Transmission) error {
	if transmission.ProviderMessageID == nil {
		return nil
	}
	status, err := s.transport.PollStatus(ctx, env, *transmission.ProviderMessageID)
	if err != nil {
		if transport.IsPermanent(err) {
			return s.fail(ctx, transmission, err.Error())
		}
		return err
	}

	var reason *string
	if detail := strings.TrimSpace(status.Detail); detail != "" {
		reason = &detail
	}

	switch status.Status {
	case transport.StatusInTransit:
		return nil
	case transport.StatusDelivered:
		if transmission.Status != domain.StatusSent {
			return nil
		}
		return s.transitionTx(ctx, transmission, domain.StatusDelivered, nil)
	case transport.StatusAccepted:
		return s.advanceToAccepted(ctx, transmission)
	case transport.StatusRejected:
		return s.transitionTx(ctx, transmission, domain.StatusRejected, reason)
	case transport.StatusFailed:
		detail := "delivery_failed"
		if reason != nil {
			detail = *reason
		}
		return s.fail(ctx, transmission, detail)
	default:
		return nil
	}
}

// advanceToAccepted walks SENT through DELIVERED when the provider reports
// acceptance before a delivery poll observed the intermediate state.
func (s *Service) advanceToAccepted(ctx context.Context, transmission *domain.Transmission) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		current := transmission
		if current.Status == domain.StatusSent {
			updated, err := s.transition(ctx, tx, current, domain.StatusDelivered, nil, now)
			if err != nil {
				return err
			}
			current = updated
		}
		if current.Status != domain.StatusDelivered {
			return nil
		}
		_, err := s.transition(ctx, tx, current, domain.StatusAccepted, nil, now)
		return err
	})
}

func (s *Service) markSent(ctx context.Context, transmission *domain.Transmission, attempt int, providerMessageID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		ok, err := s.repo.MarkSent(ctx, tx, transmission.ID, attempt, providerMessageID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrTransitionConflict
		}
		from := transmission.Status
		transmission.Status = domain.StatusSent
		transmission.Attempt = attempt
		transmission.ProviderMessageID = &providerMessageID
		transmission.SentAt = &now
		if err := s.recordEvent(ctx, tx, transmission, &from, domain.StatusSent, nil, now); err != nil {
			return err
		}
		metrics.Exchange().IncTransition(string(from), string(domain.StatusSent))
		return nil
	})
}

func (s *Service) fail(ctx context.Context, transmission *domain.Transmission, reason string) error {
	return s.transitionTx(ctx, transmission, domain.StatusError, &reason)
}

func (s *Service) reschedule(ctx context.Context, transmission *domain.Transmission, attempt int, lastError string) error {
	now := s.clock.Now()
	next := now.Add(s.backoffDelay(attempt))
	ok, err := s.repo.Reschedule(ctx, s.db, transmission.ID, attempt, next, lastError, now)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrTransitionConflict
	}
	transmission.Attempt = attempt
	transmission.NextAttemptAt = &next
	return nil
}

func (s *Service) transitionTx(ctx context.Context, transmission *domain.Transmission, to domain.Status, reason *string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.transition(ctx, tx, transmission, to, reason, s.clock.Now())
		return err
	})
}

// transition applies one legal status move with its event in the caller's
// transaction. The update is compare-and-set on the current status, so a
// concurrent mover loses cleanly instead of double-writing.
func (s *Service) transition(ctx context.Context, tx *gorm.DB, transmission *domain.Transmission, to domain.Status, reason *string, now time.Time) (*domain.Transmission, error) {
	from := transmission.Status
	if !domain.CanTransition(from, to) {
		return nil, domain.ErrTransitionConflict
	}
	ok, err := s.repo.MarkStatus(ctx, tx, transmission.ID, from, to, reason, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrTransitionConflict
	}

	updated := *transmission
	updated.Status = to
	updated.LastError = reason
	updated.LastStatusAt = now
	updated.UpdatedAt = now
	if err := s.recordEvent(ctx, tx, &updated, &from, to, reason, now); err != nil {
		return nil, err
	}
	metrics.Exchange().IncTransition(string(from), string(to))
	return &updated, nil
}

func (s *Service) recordEvent(ctx context.Context, tx *gorm.DB, transmission *domain.Transmission, from *domain.Status, to domain.Status, reason *string, now time.Time) error {
	var fromStatus *string
	if from != nil {
		value := string(*from)
		fromStatus = &value
	}
	return s.recorder.Record(ctx, tx, &statsdomain.TransmissionEvent{
		Environment:    transmission.Environment,
		DocumentID:     transmission.DocumentID,
		TransmissionID: transmission.ID,
		ParticipantID:  transmission.ParticipantID,
		Direction:      statsdomain.Direction(transmission.Direction),
		FromStatus:     fromStatus,
		ToStatus:       string(to),
		Reason:         reason,
		OccurredAt:     now,
	})
}

func (s *Service) buildSendRequest(ctx context.Context, env environment.Environment, transmission *domain.Transmission) (transport.SendRequest, error) {
	doc, err := s.documentSvc.GetByID(ctx, env, transmission.DocumentID.String())
	if err != nil {
		return transport.SendRequest{}, fmt.Errorf("document unavailable: %w", err)
	}

	sender, err := s.participantSvc.GetByID(ctx, env, doc.SenderParticipantID.String())
	if err != nil {
		return transport.SendRequest{}, fmt.Errorf("sender unavailable: %w", err)
	}
	if !sender.Active || !sender.Role.CanSend() {
		return transport.SendRequest{}, errors.New("sender_not_configured")
	}
	senderIdent, ok := sender.DefaultIdentifier()
	if !ok {
		return transport.SendRequest{}, errors.New("sender_not_configured")
	}

	receiver, err := s.participantSvc.GetByID(ctx, env, doc.ReceiverParticipantID.String())
	if err != nil {
		return transport.SendRequest{}, fmt.Errorf("receiver unavailable: %w", err)
	}
	if !receiver.Active || !receiver.Role.CanReceive() {
		return transport.SendRequest{}, errors.New("receiver_not_configured")
	}
	receiverIdent, ok := receiver.DefaultIdentifier()
	if !ok {
		return transport.SendRequest{}, errors.New("receiver_not_configured")
	}

	return transport.SendRequest{
		DocumentID:         doc.ID.String(),
		DocumentType:       string(doc.DocumentType),
		SenderIdentifier:   senderIdent,
		ReceiverIdentifier: receiverIdent,
		Payload:            doc.Payload,
	}, nil
}

// backoffDelay grows exponentially with jitter so retry storms spread out.
func (s *Service) backoffDelay(attempt int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.BackoffInitial
	bo.MaxInterval = s.cfg.BackoffMax
	bo.MaxElapsedTime = 0
	bo.Reset()

	delay := bo.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = bo.NextBackOff()
	}
	return delay
}

func (s *Service) loadDocument(ctx context.Context, env environment.Environment, documentID string) (documentdomain.ExchangeDocument, error) {
	doc, err := s.documentSvc.GetByID(ctx, env, documentID)
	if err != nil {
		switch {
		case errors.Is(err, documentdomain.ErrNotFound):
			return documentdomain.ExchangeDocument{}, domain.ErrDocumentNotFound
		case errors.Is(err, documentdomain.ErrInvalidID):
			return documentdomain.ExchangeDocument{}, domain.ErrInvalidID
		}
		return documentdomain.ExchangeDocument{}, err
	}
	return doc, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
