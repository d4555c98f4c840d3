package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tablemate/tablemate/internal/model"
)

// MemoryStore is an in-process store with the same semantics as
// Repository. A single mutex plays the role of the event row lock.
// Used with STORAGE_DRIVER=memory and in tests.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]*model.User
	emails       map[string]string
	meals        map[string]*model.Meal
	events       map[string]*model.Event
	participants map[string][]*model.Participation // by event id
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]*model.User),
		emails:       make(map[string]string),
		meals:        make(map[string]*model.Meal),
		events:       make(map[string]*model.Event),
		participants: make(map[string][]*model.Participation),
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// ---- users ----

// CreateUser stores a copy of user.
func (s *MemoryStore) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[user.Email]; ok {
		return ErrEmailExists
	}
	u := *user
	s.users[u.ID] = &u
	s.emails[u.Email] = u.ID
	return nil
}

// GetUserByID returns a copy of the user.
func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

// GetUserByEmail returns a copy of the user.
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *s.users[id]
	return &out, nil
}

// UpdateUserProfile applies patch.
func (s *MemoryStore) UpdateUserProfile(ctx context.Context, id string, patch model.ProfilePatch) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	patch.Apply(u)
	out := *u
	return &out, nil
}

// SearchUsers matches query case-insensitively against name, email and
// university.
func (s *MemoryStore) SearchUsers(ctx context.Context, query string, limit int) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	matches := make([]*model.User, 0)
	for _, u := range s.users {
		uni := ""
		if u.University != nil {
			uni = *u.University
		}
		if strings.Contains(strings.ToLower(u.Name), q) ||
			strings.Contains(strings.ToLower(u.Email), q) ||
			strings.Contains(strings.ToLower(uni), q) {
			out := *u
			matches = append(matches, &out)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// ---- meals ----

// CreateMeal stores a copy of meal.
func (s *MemoryStore) CreateMeal(ctx context.Context, meal *model.Meal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meal.IsDeleted = false
	m := *meal
	s.meals[m.ID] = &m
	return nil
}

// GetMealByID returns a copy of the meal.
func (s *MemoryStore) GetMealByID(ctx context.Context, id string, includeDeleted bool) (*model.Meal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.meals[id]
	if !ok || (m.IsDeleted && !includeDeleted) {
		return nil, ErrMealNotFound
	}
	out := *m
	return &out, nil
}

// ListMealsByOwner returns visible meals, newest first.
func (s *MemoryStore) ListMealsByOwner(ctx context.Context, ownerID string) ([]*model.Meal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meals := make([]*model.Meal, 0)
	for _, m := range s.meals {
		if m.OwnerID == ownerID && !m.IsDeleted {
			out := *m
			meals = append(meals, &out)
		}
	}
	sort.Slice(meals, func(i, j int) bool {
		if !meals[i].CreatedAt.Equal(meals[j].CreatedAt) {
			return meals[i].CreatedAt.After(meals[j].CreatedAt)
		}
		return meals[i].ID > meals[j].ID
	})
	return meals, nil
}

// UpdateMeal replaces the mutable fields of a visible meal.
func (s *MemoryStore) UpdateMeal(ctx context.Context, meal *model.Meal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meals[meal.ID]
	if !ok || m.IsDeleted {
		return ErrMealNotFound
	}
	m.Title = meal.Title
	m.Description = meal.Description
	m.Ingredients = meal.Ingredients
	m.ImageURL = meal.ImageURL
	m.UpdatedAt = meal.UpdatedAt
	return nil
}

// SoftDeleteMeal flags a visible meal as deleted.
func (s *MemoryStore) SoftDeleteMeal(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meals[id]
	if !ok || m.IsDeleted {
		return ErrMealNotFound
	}
	m.IsDeleted = true
	return nil
}

// ---- events ----

// CreateEvent stores a copy of event with an empty counter.
func (s *MemoryStore) CreateEvent(ctx context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.CurrentParticipants = 0
	event.IsDeleted = false
	e := *event
	s.events[e.ID] = &e
	return nil
}

// GetEventByID returns a copy of the event.
func (s *MemoryStore) GetEventByID(ctx context.Context, id string, includeDeleted bool) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok || (e.IsDeleted && !includeDeleted) {
		return nil, ErrEventNotFound
	}
	out := *e
	return &out, nil
}

// ListEvents returns visible events, newest first.
func (s *MemoryStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*model.Event, 0)
	for _, e := range s.events {
		if e.IsDeleted || (filter.HostID != "" && e.HostID != filter.HostID) {
			continue
		}
		out := *e
		events = append(events, &out)
	}
	sortEventsNewestFirst(events)
	return events, nil
}

// UpdateEvent runs mutate on a copy under the store lock and commits it
// only when mutate succeeds.
func (s *MemoryStore) UpdateEvent(ctx context.Context, id string, mutate func(*model.Event) error) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}

	draft := *e
	if err := mutate(&draft); err != nil {
		return nil, err
	}
	// The counter is owned by the ledger.
	draft.CurrentParticipants = e.CurrentParticipants
	*e = draft

	out := *e
	return &out, nil
}

// SoftDeleteEvent flags a visible event as deleted.
func (s *MemoryStore) SoftDeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok || e.IsDeleted {
		return ErrEventNotFound
	}
	e.IsDeleted = true
	return nil
}

// ---- participation ----

// JoinEvent evaluates rule and appends entry under the store lock.
func (s *MemoryStore) JoinEvent(ctx context.Context, entry *model.Participation, rule model.JoinRule) (*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[entry.EventID]
	if !ok {
		return nil, ErrEventNotFound
	}

	exists := false
	for _, p := range s.participants[entry.EventID] {
		if p.ParticipantID == entry.ParticipantID {
			exists = true
			break
		}
	}

	snapshot := *e
	if err := rule(&snapshot, exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrParticipationExists
	}

	p := *entry
	s.participants[entry.EventID] = append(s.participants[entry.EventID], &p)
	e.CurrentParticipants++

	out := *e
	return &out, nil
}

// ListParticipants returns ledger rows in join order.
func (s *MemoryStore) ListParticipants(ctx context.Context, eventID string) ([]*model.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.participants[eventID]
	out := make([]*model.Participation, 0, len(rows))
	for _, p := range rows {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// ListJoinedEvents returns visible events userID joined, most recently
// joined first.
func (s *MemoryStore) ListJoinedEvents(ctx context.Context, userID string) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type joined struct {
		event *model.Event
		entry *model.Participation
	}
	var found []joined
	for eventID, rows := range s.participants {
		e, ok := s.events[eventID]
		if !ok || e.IsDeleted {
			continue
		}
		for _, p := range rows {
			if p.ParticipantID == userID {
				out := *e
				found = append(found, joined{event: &out, entry: p})
			}
		}
	}

	sort.Slice(found, func(i, j int) bool {
		a, b := found[i].entry, found[j].entry
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.After(b.JoinedAt)
		}
		return a.ID > b.ID
	})

	events := make([]*model.Event, 0, len(found))
	for _, f := range found {
		events = append(events, f.event)
	}
	return events, nil
}

// CounterDrift compares one event's counter with its ledger size.
func (s *MemoryStore) CounterDrift(ctx context.Context, eventID string) (*model.CounterDrift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &model.CounterDrift{
		EventID:     eventID,
		Counter:     e.CurrentParticipants,
		LedgerCount: len(s.participants[eventID]),
	}, nil
}

// ListCounterDrift returns events whose counter disagrees with the ledger.
func (s *MemoryStore) ListCounterDrift(ctx context.Context) ([]model.CounterDrift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	drifts := make([]model.CounterDrift, 0)
	for id, e := range s.events {
		d := model.CounterDrift{EventID: id, Counter: e.CurrentParticipants, LedgerCount: len(s.participants[id])}
		if d.Drifted() {
			drifts = append(drifts, d)
		}
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].EventID < drifts[j].EventID })
	return drifts, nil
}

// RepairCounter sets the counter to the ledger size.
func (s *MemoryStore) RepairCounter(ctx context.Context, eventID string) (*model.CounterDrift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	before := model.CounterDrift{EventID: eventID, Counter: e.CurrentParticipants, LedgerCount: len(s.participants[eventID])}
	e.CurrentParticipants = before.LedgerCount
	return &before, nil
}

// SetCounterForTest overwrites an event's counter without touching the
// ledger. It exists to simulate drift.
func (s *MemoryStore) SetCounterForTest(eventID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[eventID]; ok {
		e.CurrentParticipants = n
	}
}

func sortEventsNewestFirst(events []*model.Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.After(events[j].CreatedAt)
		}
		return events[i].ID > events[j].ID
	})
}
