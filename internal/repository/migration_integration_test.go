//go:build integration

package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tablemate/tablemate/internal/testutil"
)

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	for _, table := range []string{"users", "meals", "events", "event_participants"} {
		t.Run(table, func(t *testing.T) {
			exists, err := tableExists(ctx, pool, table)
			if err != nil {
				t.Fatalf("tableExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Table %q should exist after migrations", table)
			}
		})
	}
}

func TestIntegrationMigration_EventsTableSchema(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	expectedColumns := []string{
		"id",
		"host_id",
		"meal_id",
		"title",
		"description",
		"max_participants",
		"current_participants",
		"location",
		"scheduled_at",
		"image_url",
		"price",
		"is_deleted",
		"created_at",
		"updated_at",
	}

	for _, col := range expectedColumns {
		t.Run(col, func(t *testing.T) {
			exists, err := columnExists(ctx, pool, "events", col)
			if err != nil {
				t.Fatalf("columnExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Column %q should exist in events table", col)
			}
		})
	}
}

func TestIntegrationMigration_EventConstraints(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	host := testutil.UniqueID("user")
	meal := testutil.UniqueID("meal")
	if _, err := pool.Exec(ctx, `
		INSERT INTO users (id, name, email, credential_hash) VALUES ($1, 'Host', $2, 'x')
	`, host, testutil.UniqueEmail("host")); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO meals (id, owner_id, title) VALUES ($1, $2, 'Soup')
	`, meal, host); err != nil {
		t.Fatalf("insert meal: %v", err)
	}

	insert := func(maxParticipants, current int) error {
		_, err := pool.Exec(ctx, `
			INSERT INTO events (id, host_id, meal_id, title, max_participants, current_participants, location, scheduled_at)
			VALUES ($1, $2, $3, 'Soup night', $4, $5, 'Kitchen', NOW())
		`, testutil.UniqueID("event"), host, meal, maxParticipants, current)
		return err
	}

	if err := insert(0, 0); err == nil {
		t.Error("Expected check constraint violation for max_participants = 0")
	}
	if err := insert(2, 3); err == nil {
		t.Error("Expected check constraint violation for current_participants > max_participants")
	}
	if err := insert(2, -1); err == nil {
		t.Error("Expected check constraint violation for negative current_participants")
	}
	if err := insert(2, 2); err != nil {
		t.Errorf("full event should be accepted: %v", err)
	}
}

func TestIntegrationMigration_ParticipantUniqueness(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	exists, err := constraintExists(ctx, pool, "event_participants", "event_participants_unique")
	if err != nil {
		t.Fatalf("constraintExists failed: %v", err)
	}
	if !exists {
		t.Error("event_participants_unique should exist")
	}
}

func TestIntegrationMigration_RollbackParticipants(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	root, err := testutil.ProjectRoot()
	if err != nil {
		t.Fatalf("ProjectRoot failed: %v", err)
	}

	downSQL, err := os.ReadFile(filepath.Join(root, "migrations", "000004_event_participants.down.sql"))
	if err != nil {
		t.Fatalf("read down migration: %v", err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		t.Fatalf("apply down migration: %v", err)
	}

	exists, err := tableExists(ctx, pool, "event_participants")
	if err != nil {
		t.Fatalf("tableExists failed: %v", err)
	}
	if exists {
		t.Error("event_participants table should not exist after rollback")
	}

	upSQL, err := os.ReadFile(filepath.Join(root, "migrations", "000004_event_participants.up.sql"))
	if err != nil {
		t.Fatalf("read up migration: %v", err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		t.Fatalf("reapply up migration: %v", err)
	}
}

func TestIntegrationMigration_Idempotency(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	root, err := testutil.ProjectRoot()
	if err != nil {
		t.Fatalf("ProjectRoot failed: %v", err)
	}

	// Every up file uses IF NOT EXISTS.
	for _, name := range []string{"000001_users", "000002_meals", "000003_events", "000004_event_participants"} {
		upSQL, err := os.ReadFile(filepath.Join(root, "migrations", name+".up.sql"))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
			t.Fatalf("second apply of %s should not fail: %v", name, err)
		}
	}
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`, tableName).Scan(&exists)
	return exists, err
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.columns
			WHERE table_schema = 'public'
			AND table_name = $1
			AND column_name = $2
		)
	`, tableName, columnName).Scan(&exists)
	return exists, err
}

func constraintExists(ctx context.Context, pool *pgxpool.Pool, tableName, name string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.table_constraints
			WHERE table_schema = 'public'
			AND table_name = $1
			AND constraint_name = $2
		)
	`, tableName, name).Scan(&exists)
	return exists, err
}

func newMigrationTestEnv(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, pool
}
