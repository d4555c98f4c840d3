// Package testutil holds helpers shared by unit and integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tablemate/tablemate/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 7312024

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// schemaMigrations lists migration names in apply order.
var schemaMigrations = []string{
	"000001_users",
	"000002_meals",
	"000003_events",
	"000004_event_participants",
}

// ResetSchema drops every table (down files, newest first) and recreates
// them (up files, oldest first).
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	for i := len(schemaMigrations) - 1; i >= 0; i-- {
		if err := applyFile(ctx, pool, root, schemaMigrations[i]+".down.sql"); err != nil {
			return err
		}
	}
	for _, name := range schemaMigrations {
		if err := applyFile(ctx, pool, root, name+".up.sql"); err != nil {
			return err
		}
	}
	return nil
}

func applyFile(ctx context.Context, pool *pgxpool.Pool, root, file string) error {
	sql, err := os.ReadFile(filepath.Join(root, "migrations", file))
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply %s: %w", file, err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

var seq atomic.Uint64

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), seq.Add(1))
}

// UniqueEmail generates a unique email address for tests.
func UniqueEmail(prefix string) string {
	return UniqueID(prefix) + "@example.test"
}

// NewTestUser creates a user with sensible defaults.
func NewTestUser(t testing.TB, name string) *model.User {
	t.Helper()
	return &model.User{
		ID:             UniqueID("user"),
		Name:           name,
		Email:          UniqueEmail(name),
		CredentialHash: "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		CreatedAt:      time.Now().UTC(),
	}
}

// NewTestMeal creates a meal owned by ownerID.
func NewTestMeal(t testing.TB, ownerID string) *model.Meal {
	t.Helper()
	now := time.Now().UTC()
	return &model.Meal{
		ID:          UniqueID("meal"),
		OwnerID:     ownerID,
		Title:       "Mapo tofu",
		Description: "Silken tofu, doubanjiang, Sichuan pepper",
		Ingredients: "tofu, pork, doubanjiang",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewTestEvent creates an event hosted by hostID around mealID.
func NewTestEvent(t testing.TB, hostID, mealID string, maxParticipants int) *model.Event {
	t.Helper()
	now := time.Now().UTC()
	return &model.Event{
		ID:              UniqueID("event"),
		HostID:          hostID,
		MealID:          mealID,
		Title:           "Cook together",
		Description:     "Bring an apron",
		MaxParticipants: maxParticipants,
		Location:        "Dorm kitchen 3F",
		ScheduledAt:     now.Add(72 * time.Hour).Truncate(time.Second),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
