package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/peppolway/internal/environment"
	"github.com/smallbiznis/peppolway/internal/exchangestats/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Status names mirrored from the coordinator. Kept as strings here so the
// event log stays readable without importing the coordinator package.
const (
	statusPending   = "PENDING"
	statusSent      = "SENT"
	statusDelivered = "DELIVERED"
	statusAccepted  = "ACCEPTED"
	statusRejected  = "REJECTED"
	statusError     = "ERROR"
	statusReceived  = "RECEIVED"
	statusMLRIssued = "MLR_ISSUED"
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
		log:   p.Log.Named("exchangestats.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// NewRecorder returns the event appender used inside coordinator
// transactions.
func NewRecorder(p ServiceParam) domain.Recorder {
	return &recorder{genID: p.GenID, repo: p.Repo}
}

type recorder struct {
	genID *snowflake.Node
	repo  domain.Repository
}

func (r *recorder) Record(ctx context.Context, tx *gorm.DB, event *domain.TransmissionEvent) error {
	if event.ID == 0 {
		event.ID = r.genID.Generate()
	}
	return r.repo.Insert(ctx, tx, event)
}

// Snapshot folds the participant's event log into its current position.
// Counters are never stored; replaying the same events always yields the
// same snapshot.
func (s *Service) Snapshot(ctx context.Context, env environment.Environment, participantID string) (domain.Snapshot, error) {
	if !env.Valid() {
		return domain.Snapshot{}, domain.ErrInvalidEnvironment
	}
	id, err := snowflake.ParseString(strings.TrimSpace(participantID))
	if err != nil {
		return domain.Snapshot{}, domain.ErrInvalidID
	}

	events, err := s.repo.ListByParticipant(ctx, s.db, env.String(), id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return fold(events), nil
}

func (s *Service) MonthlyBreakdown(ctx context.Context, req domain.MonthlyBreakdownRequest) ([]domain.MonthlyStat, error) {
	if !req.Environment.Valid() {
		return nil, domain.ErrInvalidEnvironment
	}
	id, err := snowflake.ParseString(strings.TrimSpace(req.ParticipantID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	if req.Year < 2000 || req.Year > 2200 {
		return nil, domain.ErrInvalidYear
	}

	events, err := s.repo.ListByParticipantYear(ctx, s.db, req.Environment.String(), id, req.Year)
	if err != nil {
		return nil, err
	}
	return foldMonthly(req.Year, events), nil
}

type transmissionTrack struct {
	direction domain.Direction
	last      string
}

func fold(events []domain.TransmissionEvent) domain.Snapshot {
	var snapshot domain.Snapshot
	tracks := make(map[snowflake.ID]*transmissionTrack)

	for i := range events {
		event := events[i]
		track, ok := tracks[event.TransmissionID]
		if !ok {
			track = &transmissionTrack{direction: event.Direction}
			tracks[event.TransmissionID] = track
		}
		track.last = event.ToStatus

		switch event.ToStatus {
		case statusSent:
			snapshot.TotalSent++
		case statusReceived:
			snapshot.TotalReceived++
		}

		occurred := event.OccurredAt
		if snapshot.LastActivityAt == nil || occurred.After(*snapshot.LastActivityAt) {
			snapshot.LastActivityAt = &occurred
		}
	}

	var outboundTotal int64
	for _, track := range tracks {
		switch track.last {
		case statusError:
			snapshot.FailedCount++
		case statusPending, statusSent, statusDelivered:
			snapshot.PendingCount++
		}
		if track.direction == domain.DirectionOutbound {
			outboundTotal++
		}
	}

	snapshot.SuccessRate = successRate(outboundTotal, snapshot.FailedCount)
	return snapshot
}

func foldMonthly(year int, events []domain.TransmissionEvent) []domain.MonthlyStat {
	months := make([]domain.MonthlyStat, 12)
	for i := range months {
		months[i].Year = year
		months[i].Month = i + 1
	}

	for _, event := range events {
		occurred := event.OccurredAt.UTC()
		if occurred.Year() != year {
			continue
		}
		stat := &months[int(occurred.Month())-1]
		switch event.ToStatus {
		case statusSent:
			stat.Sent++
		case statusReceived:
			stat.Received++
		case statusDelivered:
			stat.Delivered++
		case statusAccepted:
			stat.Accepted++
		case statusRejected:
			stat.Rejected++
		case statusError:
			stat.Failed++
		}
	}
	return months
}

// successRate is the rounded percentage of transmissions that did not
// fail. Zero activity reports zero, not a division error.
func successRate(total, failed int64) int {
	if total <= 0 {
		return 0
	}
	succeeded := total - failed
	if succeeded < 0 {
		succeeded = 0
	}
	return int((succeeded*100 + total/2) / total)
}
