package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tablemate/tablemate/internal/activity"
	"github.com/tablemate/tablemate/internal/cache"
	"github.com/tablemate/tablemate/internal/media"
	"github.com/tablemate/tablemate/internal/metrics"
	"github.com/tablemate/tablemate/internal/model"
	"github.com/tablemate/tablemate/internal/repository"
)

// plainHasher keeps tests fast; argon2 is covered in internal/auth.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Verify(password, encoded string) (bool, error) {
	return encoded == "plain:"+password, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []activity.Activity
}

func (p *recordingPublisher) PublishAsync(a activity.Activity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, a)
}

func (p *recordingPublisher) kinds() []activity.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]activity.Kind, 0, len(p.sent))
	for _, a := range p.sent {
		out = append(out, a.Kind)
	}
	return out
}

func (p *recordingPublisher) last() activity.Activity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent[len(p.sent)-1]
}

type fakeUploader struct{ calls int }

func (u *fakeUploader) Upload(_ context.Context, prefix string, up media.Upload) (string, error) {
	if _, err := media.Validate(up); err != nil {
		return "", err
	}
	u.calls++
	return fmt.Sprintf("http://media.test/%s/%d.png", prefix, u.calls), nil
}

// mapTitleCache is an in-memory MealTitleCache.
type mapTitleCache struct {
	mu      sync.Mutex
	titles  map[string]string
	missing map[string]bool
}

func newMapTitleCache() *mapTitleCache {
	return &mapTitleCache{titles: map[string]string{}, missing: map[string]bool{}}
}

func (c *mapTitleCache) GetMealTitle(_ context.Context, id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.titles[id]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return t, nil
}

func (c *mapTitleCache) SetMealTitle(_ context.Context, id, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles[id] = title
	delete(c.missing, id)
	return nil
}

func (c *mapTitleCache) DeleteMealTitle(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.titles, id)
	delete(c.missing, id)
	return nil
}

func (c *mapTitleCache) IsMealTitleMissing(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.missing[id], nil
}

func (c *mapTitleCache) SetMealTitleMissing(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.missing[id] = true
	return nil
}

type fixture struct {
	store     *repository.MemoryStore
	recorder  *metrics.InMemoryRecorder
	publisher *recordingPublisher
	uploader  *fakeUploader
	titles    *mapTitleCache

	users  *UserService
	meals  *MealService
	events *EventService
	joins  *ParticipationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		store:     repository.NewMemoryStore(),
		recorder:  metrics.NewInMemory(),
		publisher: &recordingPublisher{},
		uploader:  &fakeUploader{},
		titles:    newMapTitleCache(),
	}

	users, err := NewUserService(f.store, plainHasher{}, f.uploader, f.recorder)
	require.NoError(t, err)
	f.users = users
	f.meals = NewMealService(f.store, f.store, f.titles, f.uploader, f.recorder, logger)
	f.events = NewEventService(EventServiceDeps{
		Events:    f.store,
		Meals:     f.store,
		Users:     f.store,
		Titles:    f.meals,
		Uploader:  f.uploader,
		Publisher: f.publisher,
		Metrics:   f.recorder,
		Logger:    logger,
	})
	f.joins = NewParticipationService(ParticipationServiceDeps{
		Ledger:    f.store,
		Events:    f.store,
		Users:     f.store,
		Titles:    f.meals,
		Publisher: f.publisher,
		Metrics:   f.recorder,
		Logger:    logger,
	})
	return f
}

func (f *fixture) user(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), RegisterInput{
		Name:     name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) meal(t *testing.T, ownerID, title string) *model.Meal {
	t.Helper()
	m, err := f.meals.Create(context.Background(), ownerID, CreateMealInput{Title: title}, nil)
	require.NoError(t, err)
	return m
}

func (f *fixture) event(t *testing.T, hostID string, maxParticipants int) *EventView {
	t.Helper()
	m := f.meal(t, hostID, "Dumplings")
	e, err := f.events.Create(context.Background(), hostID, CreateEventInput{
		MealID:          m.ID,
		Title:           "Dumpling night",
		MaxParticipants: maxParticipants,
		Location:        "Kitchen A",
		ScheduledAt:     time.Now().Add(48 * time.Hour),
	}, nil)
	require.NoError(t, err)
	return e
}

func (f *fixture) join(eventID, participantID string) error {
	_, err := f.joins.Join(context.Background(), JoinEventRequest{EventID: eventID, ParticipantID: participantID})
	return err
}

// pngBytes is a minimal PNG header, enough for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
