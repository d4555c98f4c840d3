package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tablemate/tablemate/internal/activity"
	"github.com/tablemate/tablemate/internal/metrics"
	"github.com/tablemate/tablemate/internal/model"
	"github.com/tablemate/tablemate/internal/repository"
	"github.com/tablemate/tablemate/internal/validation"
)

// ParticipationService coordinates event capacity: joins, membership
// listings and counter reconciliation.
type ParticipationService struct {
	eventViewer
	ledger    ParticipationStore
	events    EventStore
	users     UserStore
	publisher ActivityPublisher
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// ParticipationServiceDeps groups the collaborators of ParticipationService.
type ParticipationServiceDeps struct {
	Ledger    ParticipationStore
	Events    EventStore
	Users     UserStore
	Titles    MealTitles
	Publisher ActivityPublisher
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// NewParticipationService creates a new ParticipationService.
func NewParticipationService(deps ParticipationServiceDeps) *ParticipationService {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	if deps.Publisher == nil {
		deps.Publisher = noopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &ParticipationService{
		eventViewer: eventViewer{titles: deps.Titles},
		ledger:      deps.Ledger,
		events:      deps.Events,
		users:       deps.Users,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		logger:      deps.Logger.With("component", "service.participation"),
	}
}

// JoinEventRequest asks for ParticipantID to be added to EventID.
type JoinEventRequest struct {
	EventID       string `json:"event_id" validate:"required,notblank"`
	ParticipantID string `json:"-" validate:"required,notblank"`
}

// JoinResult is returned by a successful join.
type JoinResult struct {
	EventID string     `json:"event_id"`
	Event   *EventView `json:"event"`
}

// Join adds the participant to the event. Checks run in this order:
// participant exists, event visible, not the host, not already joined,
// a seat is left. Everything after the participant lookup happens in one
// critical section on the event row, so the counter can never pass the
// capacity and always matches the ledger.
func (s *ParticipationService) Join(ctx context.Context, req JoinEventRequest) (*JoinResult, error) {
	start := time.Now()
	outcome := metrics.JoinFailed
	defer func() {
		s.metrics.IncJoin(outcome)
		s.metrics.ObserveJoinDuration(time.Since(start))
	}()

	if err := validation.Struct(ctx, req); err != nil {
		return nil, invalid(err)
	}

	if _, err := s.users.GetUserByID(ctx, req.ParticipantID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			outcome = metrics.JoinNotFound
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	entry := &model.Participation{
		ID:            generateULID(),
		EventID:       req.EventID,
		ParticipantID: req.ParticipantID,
		JoinedAt:      now(),
	}

	event, err := s.ledger.JoinEvent(ctx, entry, joinRule(req.ParticipantID))
	if err != nil {
		err = classifyJoinError(err)
		outcome = joinOutcome(err)
		if outcome == metrics.JoinConflict {
			s.logger.Warn("join aborted", "event_id", req.EventID, "error", err)
		}
		return nil, err
	}

	outcome = metrics.JoinJoined
	a := activity.New(activity.KindEventJoined, event.ID, req.ParticipantID)
	a.Seats = event.CurrentParticipants
	s.publisher.PublishAsync(a)

	return &JoinResult{EventID: event.ID, Event: s.view(ctx, event)}, nil
}

// joinRule evaluates the join preconditions against the locked event row.
func joinRule(participantID string) model.JoinRule {
	return func(e *model.Event, alreadyJoined bool) error {
		switch {
		case e.IsDeleted:
			return ErrEventNotFound
		case e.IsHostedBy(participantID):
			return ErrSelfJoinForbidden
		case alreadyJoined:
			return ErrAlreadyJoined
		case e.IsFull():
			return ErrEventFull
		}
		return nil
	}
}

func classifyJoinError(err error) error {
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		return ErrEventNotFound
	case errors.Is(err, repository.ErrParticipationExists):
		// The unique index caught a duplicate the row lock did not.
		return ErrAlreadyJoined
	case errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrSelfJoinForbidden),
		errors.Is(err, ErrAlreadyJoined),
		errors.Is(err, ErrEventFull),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrJoinConflict, err)
	}
}

func joinOutcome(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return metrics.JoinNotFound
	case errors.Is(err, ErrSelfJoinForbidden):
		return metrics.JoinSelf
	case errors.Is(err, ErrAlreadyJoined):
		return metrics.JoinAlreadyJoined
	case errors.Is(err, ErrEventFull):
		return metrics.JoinFull
	case errors.Is(err, ErrJoinConflict):
		return metrics.JoinConflict
	default:
		return metrics.JoinFailed
	}
}

// Participant is a ledger row with the participant's public profile.
type Participant struct {
	*model.Participation
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// ListParticipants returns the members of a visible event in join order.
func (s *ParticipationService) ListParticipants(ctx context.Context, eventID string) ([]*Participant, error) {
	if _, err := s.events.GetEventByID(ctx, eventID, false); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	rows, err := s.ledger.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}

	out := make([]*Participant, 0, len(rows))
	for _, row := range rows {
		p := &Participant{Participation: row}
		user, err := s.users.GetUserByID(ctx, row.ParticipantID)
		switch {
		case err == nil:
			p.Name = user.Name
			p.AvatarURL = user.AvatarURL
		case errors.Is(err, repository.ErrUserNotFound):
		default:
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// HostedEvents returns the visible events hosted by userID.
func (s *ParticipationService) HostedEvents(ctx context.Context, userID string) ([]*EventView, error) {
	events, err := s.events.ListEvents(ctx, model.EventFilter{HostID: userID})
	if err != nil {
		return nil, err
	}
	return s.views(ctx, events), nil
}

// JoinedEvents returns the visible events userID has joined, most
// recently joined first.
func (s *ParticipationService) JoinedEvents(ctx context.Context, userID string) ([]*EventView, error) {
	events, err := s.ledger.ListJoinedEvents(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, events), nil
}

// ReconcileResult describes one event's counter check.
type ReconcileResult struct {
	model.CounterDrift
	Repaired bool `json:"repaired"`
}

// Reconcile compares an event's counter with its ledger and, when fix is
// set and they disagree, rewrites the counter from the ledger.
func (s *ParticipationService) Reconcile(ctx context.Context, eventID string, fix bool) (*ReconcileResult, error) {
	drift, err := s.ledger.CounterDrift(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	result := &ReconcileResult{CounterDrift: *drift}
	if !drift.Drifted() || !fix {
		return result, nil
	}

	return s.repair(ctx, eventID)
}

// ReconcileReport summarizes a pass over every event.
type ReconcileReport struct {
	Drifted  []ReconcileResult `json:"drifted"`
	Repaired int               `json:"repaired"`
}

// ReconcileAll checks every event and optionally repairs the drifted ones.
func (s *ParticipationService) ReconcileAll(ctx context.Context, fix bool) (*ReconcileReport, error) {
	drifts, err := s.ledger.ListCounterDrift(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.SetCounterDrift(len(drifts))

	report := &ReconcileReport{Drifted: make([]ReconcileResult, 0, len(drifts))}
	for _, d := range drifts {
		if !fix {
			report.Drifted = append(report.Drifted, ReconcileResult{CounterDrift: d})
			continue
		}

		result, err := s.repair(ctx, d.EventID)
		if err != nil {
			return report, fmt.Errorf("repair event %s: %w", d.EventID, err)
		}
		report.Drifted = append(report.Drifted, *result)
		if result.Repaired {
			report.Repaired++
		}
	}

	if len(drifts) > 0 {
		s.logger.Warn("participant counters drifted from ledger",
			"events", len(drifts),
			"repaired", report.Repaired,
		)
	}
	return report, nil
}

func (s *ParticipationService) repair(ctx context.Context, eventID string) (*ReconcileResult, error) {
	before, err := s.ledger.RepairCounter(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	s.logger.Info("participant counter repaired",
		"event_id", eventID,
		"counter", before.Counter,
		"ledger_count", before.LedgerCount,
	)
	return &ReconcileResult{CounterDrift: *before, Repaired: before.Drifted()}, nil
}
