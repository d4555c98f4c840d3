package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tablemate/tablemate/internal/activity"
	"github.com/tablemate/tablemate/internal/media"
	"github.com/tablemate/tablemate/internal/metrics"
	"github.com/tablemate/tablemate/internal/model"
	"github.com/tablemate/tablemate/internal/repository"
	"github.com/tablemate/tablemate/internal/validation"
)

// MealTitles resolves the display name of a meal. Missing or deleted
// meals resolve to "".
type MealTitles interface {
	TitleOf(ctx context.Context, mealID string) string
}

// EventView is an event as shown to callers, with its meal name resolved.
type EventView struct {
	*model.Event
	MealName       string `json:"meal_name"`
	RemainingSeats int    `json:"remaining_seats"`
}

type eventViewer struct {
	titles MealTitles
}

func (v eventViewer) view(ctx context.Context, e *model.Event) *EventView {
	if v.titles == nil {
		return &EventView{Event: e, RemainingSeats: e.RemainingSeats()}
	}
	return &EventView{Event: e, MealName: v.titles.TitleOf(ctx, e.MealID), RemainingSeats: e.RemainingSeats()}
}

func (v eventViewer) views(ctx context.Context, events []*model.Event) []*EventView {
	out := make([]*EventView, 0, len(events))
	names := make(map[string]string)
	for _, e := range events {
		name, ok := names[e.MealID]
		if !ok && v.titles != nil {
			name = v.titles.TitleOf(ctx, e.MealID)
			names[e.MealID] = name
		}
		out = append(out, &EventView{Event: e, MealName: name, RemainingSeats: e.RemainingSeats()})
	}
	return out
}

// EventService handles the event registry.
type EventService struct {
	eventViewer
	events    EventStore
	meals     MealStore
	users     UserStore
	uploader  Uploader
	publisher ActivityPublisher
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// EventServiceDeps groups the collaborators of EventService.
type EventServiceDeps struct {
	Events    EventStore
	Meals     MealStore
	Users     UserStore
	Titles    MealTitles
	Uploader  Uploader
	Publisher ActivityPublisher
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// NewEventService creates a new EventService.
func NewEventService(deps EventServiceDeps) *EventService {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	if deps.Publisher == nil {
		deps.Publisher = noopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &EventService{
		eventViewer: eventViewer{titles: deps.Titles},
		events:      deps.Events,
		meals:       deps.Meals,
		users:       deps.Users,
		uploader:    deps.Uploader,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		logger:      deps.Logger.With("component", "service.event"),
	}
}

// CreateEventInput defines input for hosting an event.
type CreateEventInput struct {
	MealID          string    `json:"meal_id" validate:"required,notblank"`
	Title           string    `json:"title" validate:"required,notblank,max=200"`
	Description     string    `json:"description" validate:"max=5000"`
	MaxParticipants int       `json:"max_participants" validate:"gt=0"`
	Location        string    `json:"location" validate:"required,notblank,max=300"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	Price           *float64  `json:"price" validate:"omitnil,gte=0"`
}

// Create registers a new event hosted by hostID. The counter starts at 0.
func (s *EventService) Create(ctx context.Context, hostID string, input CreateEventInput, image *media.Upload) (*EventView, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Location = strings.TrimSpace(input.Location)
	if err := validation.Struct(ctx, input); err != nil {
		return nil, invalid(err)
	}

	if _, err := s.users.GetUserByID(ctx, hostID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if _, err := s.meals.GetMealByID(ctx, input.MealID, false); err != nil {
		if errors.Is(err, repository.ErrMealNotFound) {
			return nil, ErrMealNotFound
		}
		return nil, err
	}

	imageURL, err := upload(ctx, s.uploader, "events", image)
	if err != nil {
		return nil, err
	}

	ts := now()
	event := &model.Event{
		ID:                  generateULID(),
		HostID:              hostID,
		MealID:              input.MealID,
		Title:               input.Title,
		Description:         input.Description,
		MaxParticipants:     input.MaxParticipants,
		CurrentParticipants: 0,
		Location:            input.Location,
		ScheduledAt:         input.ScheduledAt.UTC(),
		ImageURL:            imageURL,
		Price:               input.Price,
		CreatedAt:           ts,
		UpdatedAt:           ts,
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.metrics.IncEventCreated()
	s.publisher.PublishAsync(activity.New(activity.KindEventCreated, event.ID, hostID))

	return s.view(ctx, event), nil
}

// Get returns a visible event.
func (s *EventService) Get(ctx context.Context, id string) (*EventView, error) {
	event, err := s.events.GetEventByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return s.view(ctx, event), nil
}

// List returns visible events, newest first.
func (s *EventService) List(ctx context.Context, filter model.EventFilter) ([]*EventView, error) {
	events, err := s.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, events), nil
}

// UpdateEventInput defines a partial event update.
type UpdateEventInput struct {
	Title           *string    `json:"title" validate:"omitnil,notblank,max=200"`
	Description     *string    `json:"description" validate:"omitnil,max=5000"`
	MaxParticipants *int       `json:"max_participants" validate:"omitnil,gt=0"`
	Location        *string    `json:"location" validate:"omitnil,notblank,max=300"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	Price           *float64   `json:"price" validate:"omitnil,gte=0"`
}

// Update applies a partial update. Only the host may edit, a deleted event
// reports ErrAlreadyDeleted, and capacity cannot drop below the number of
// participants already joined. The check and the write run under the event
// row lock.
func (s *EventService) Update(ctx context.Context, id, callerID string, input UpdateEventInput, image *media.Upload) (*EventView, error) {
	if err := validation.Struct(ctx, input); err != nil {
		return nil, invalid(err)
	}

	// Authorize before storing an image nobody will reference.
	if image != nil {
		if err := s.authorizeHost(ctx, id, callerID); err != nil {
			return nil, err
		}
	}
	imageURL, err := upload(ctx, s.uploader, "events", image)
	if err != nil {
		return nil, err
	}

	var scheduled *time.Time
	if input.ScheduledAt != nil {
		t := input.ScheduledAt.UTC()
		scheduled = &t
	}
	patch := model.EventPatch{
		Title:           trimmed(input.Title),
		Description:     input.Description,
		MaxParticipants: input.MaxParticipants,
		Location:        trimmed(input.Location),
		ScheduledAt:     scheduled,
		Price:           input.Price,
		ImageURL:        imageURL,
	}
	if patch.IsEmpty() {
		event, err := s.loadForHost(ctx, id, callerID)
		if err != nil {
			return nil, err
		}
		return s.view(ctx, event), nil
	}

	event, err := s.events.UpdateEvent(ctx, id, func(e *model.Event) error {
		if err := checkEditable(e, callerID); err != nil {
			return err
		}
		if patch.MaxParticipants != nil && *patch.MaxParticipants < e.CurrentParticipants {
			return fmt.Errorf("%w: %d participants already joined", ErrCapacityConflict, e.CurrentParticipants)
		}
		patch.Apply(e)
		e.UpdatedAt = now()
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	s.metrics.IncEventUpdated()
	a := activity.New(activity.KindEventUpdated, event.ID, callerID)
	a.Seats = event.CurrentParticipants
	s.publisher.PublishAsync(a)

	return s.view(ctx, event), nil
}

// SoftDelete hides an event. Its ledger rows are kept.
func (s *EventService) SoftDelete(ctx context.Context, id, callerID string) error {
	event, err := s.events.GetEventByID(ctx, id, true)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return err
	}
	if !event.IsHostedBy(callerID) {
		return ErrNotEventHost
	}
	if event.IsDeleted {
		return ErrAlreadyDeleted
	}

	if err := s.events.SoftDeleteEvent(ctx, id); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return ErrAlreadyDeleted
		}
		return fmt.Errorf("delete event: %w", err)
	}

	s.metrics.IncEventDeleted()
	s.logger.Info("event deleted", "event_id", id, "participants", event.CurrentParticipants)
	s.publisher.PublishAsync(activity.New(activity.KindEventDeleted, id, callerID))
	return nil
}

func (s *EventService) authorizeHost(ctx context.Context, id, callerID string) error {
	_, err := s.loadForHost(ctx, id, callerID)
	return err
}

// loadForHost fetches an event regardless of deletion so a deleted event
// can be told apart from a missing one.
func (s *EventService) loadForHost(ctx context.Context, id, callerID string) (*model.Event, error) {
	event, err := s.events.GetEventByID(ctx, id, true)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if err := checkEditable(event, callerID); err != nil {
		return nil, err
	}
	return event, nil
}

func checkEditable(e *model.Event, callerID string) error {
	if !e.IsHostedBy(callerID) {
		return ErrNotEventHost
	}
	if e.IsDeleted {
		return ErrAlreadyDeleted
	}
	return nil
}
