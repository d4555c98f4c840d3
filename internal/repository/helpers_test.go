package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tablemate/tablemate/internal/model"
	"github.com/tablemate/tablemate/internal/testutil"
)

var (
	errTestSelfJoin = errors.New("self join")
	errTestJoined   = errors.New("already joined")
	errTestFull     = errors.New("full")
)

// testRule mirrors the service's join preconditions.
func testRule(participantID string) model.JoinRule {
	return func(e *model.Event, alreadyJoined bool) error {
		switch {
		case e.IsDeleted:
			return ErrEventNotFound
		case e.IsHostedBy(participantID):
			return errTestSelfJoin
		case alreadyJoined:
			return errTestJoined
		case e.IsFull():
			return errTestFull
		}
		return nil
	}
}

// joinStore is the subset both stores share for these tests.
type joinStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	CreateMeal(ctx context.Context, meal *model.Meal) error
	CreateEvent(ctx context.Context, event *model.Event) error
	GetEventByID(ctx context.Context, id string, includeDeleted bool) (*model.Event, error)
	JoinEvent(ctx context.Context, entry *model.Participation, rule model.JoinRule) (*model.Event, error)
	CounterDrift(ctx context.Context, eventID string) (*model.CounterDrift, error)
}

type seeded struct {
	host  *model.User
	meal  *model.Meal
	event *model.Event
}

func seedEvent(t *testing.T, ctx context.Context, s joinStore, maxParticipants int) seeded {
	t.Helper()

	host := testutil.NewTestUser(t, "Host")
	if err := s.CreateUser(ctx, host); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	meal := testutil.NewTestMeal(t, host.ID)
	if err := s.CreateMeal(ctx, meal); err != nil {
		t.Fatalf("CreateMeal: %v", err)
	}
	event := testutil.NewTestEvent(t, host.ID, meal.ID, maxParticipants)
	if err := s.CreateEvent(ctx, event); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	return seeded{host: host, meal: meal, event: event}
}

func newGuest(t *testing.T, ctx context.Context, s joinStore, name string) *model.User {
	t.Helper()
	u := testutil.NewTestUser(t, name)
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func entryFor(eventID, userID string) *model.Participation {
	return &model.Participation{
		ID:            testutil.UniqueID("part"),
		EventID:       eventID,
		ParticipantID: userID,
		JoinedAt:      time.Now().UTC(),
	}
}
