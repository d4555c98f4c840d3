// Package service provides business logic for the application.
package service

import (
	"context"

	"github.com/tablemate/tablemate/internal/model"
)

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id string, patch model.ProfilePatch) (*model.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]*model.User, error)
}

// MealStore persists meal records.
type MealStore interface {
	CreateMeal(ctx context.Context, meal *model.Meal) error
	GetMealByID(ctx context.Context, id string, includeDeleted bool) (*model.Meal, error)
	ListMealsByOwner(ctx context.Context, ownerID string) ([]*model.Meal, error)
	UpdateMeal(ctx context.Context, meal *model.Meal) error
	SoftDeleteMeal(ctx context.Context, id string) error
}

// EventStore persists event records.
type EventStore interface {
	CreateEvent(ctx context.Context, event *model.Event) error
	GetEventByID(ctx context.Context, id string, includeDeleted bool) (*model.Event, error)
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)
	// UpdateEvent loads the event row under an exclusive lock (deleted rows
	// included), lets mutate change it, and writes it back. Returning an
	// error from mutate aborts without writing.
	UpdateEvent(ctx context.Context, id string, mutate func(*model.Event) error) (*model.Event, error)
	SoftDeleteEvent(ctx context.Context, id string) error
}

// ParticipationStore owns the participation ledger and the event counter
// derived from it.
type ParticipationStore interface {
	// JoinEvent locks the event row, evaluates rule against it and the
	// existing ledger, then inserts entry and increments the counter. All of
	// it commits or none of it does.
	JoinEvent(ctx context.Context, entry *model.Participation, rule model.JoinRule) (*model.Event, error)
	ListParticipants(ctx context.Context, eventID string) ([]*model.Participation, error)
	ListJoinedEvents(ctx context.Context, userID string) ([]*model.Event, error)
	// CounterDrift compares one event's counter with its ledger size.
	CounterDrift(ctx context.Context, eventID string) (*model.CounterDrift, error)
	// ListCounterDrift returns every event whose counter disagrees with
	// its ledger, deleted events included.
	ListCounterDrift(ctx context.Context) ([]model.CounterDrift, error)
	// RepairCounter sets the counter to the ledger size under the event
	// row lock and returns the values it found before the repair.
	RepairCounter(ctx context.Context, eventID string) (*model.CounterDrift, error)
}
