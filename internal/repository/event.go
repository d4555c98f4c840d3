package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tablemate/tablemate/internal/model"
)

var eventFields = []string{
	"id", "host_id", "meal_id", "title", "description", "max_participants",
	"current_participants", "location", "scheduled_at", "image_url", "price",
	"is_deleted", "created_at", "updated_at",
}

// eventColumns renders the event column list, optionally qualified by a
// table alias.
func eventColumns(alias string) string {
	if alias == "" {
		return strings.Join(eventFields, ", ")
	}
	cols := make([]string, len(eventFields))
	for i, f := range eventFields {
		cols[i] = alias + "." + f
	}
	return strings.Join(cols, ", ")
}

// CreateEvent inserts a new event with an empty participant counter.
func (r *Repository) CreateEvent(ctx context.Context, event *model.Event) error {
	query := `
		INSERT INTO events (id, host_id, meal_id, title, description, max_participants, current_participants,
		                    location, scheduled_at, image_url, price, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10, FALSE, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.HostID,
		event.MealID,
		event.Title,
		event.Description,
		event.MaxParticipants,
		event.Location,
		event.ScheduledAt,
		event.ImageURL,
		event.Price,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	event.CurrentParticipants = 0
	event.IsDeleted = false
	return nil
}

// GetEventByID retrieves an event. Deleted events are returned only when
// includeDeleted is set.
func (r *Repository) GetEventByID(ctx context.Context, id string, includeDeleted bool) (*model.Event, error) {
	query := `SELECT ` + eventColumns("") + ` FROM events WHERE id = $1 AND ($2 OR NOT is_deleted)`

	event, err := scanEvent(r.pool.QueryRow(ctx, query, id, includeDeleted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event by ID: %w", err)
	}

	return event, nil
}

// ListEvents returns visible events, newest first.
func (r *Repository) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	query := `
		SELECT ` + eventColumns("") + `
		FROM events
		WHERE NOT is_deleted AND ($1 = '' OR host_id = $1)
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, filter.HostID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return collectEvents(rows)
}

// UpdateEvent runs mutate against the locked event row and persists the
// result in the same transaction.
func (r *Repository) UpdateEvent(ctx context.Context, id string, mutate func(*model.Event) error) (*model.Event, error) {
	var updated *model.Event

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		event, err := lockEvent(ctx, tx, id)
		if err != nil {
			return err
		}

		counter := event.CurrentParticipants
		if err := mutate(event); err != nil {
			return err
		}
		// The counter is owned by the ledger.
		event.CurrentParticipants = counter

		query := `
			UPDATE events
			SET title = $2, description = $3, max_participants = $4, location = $5,
			    scheduled_at = $6, image_url = $7, price = $8, updated_at = $9
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, query,
			event.ID,
			event.Title,
			event.Description,
			event.MaxParticipants,
			event.Location,
			event.ScheduledAt,
			event.ImageURL,
			event.Price,
			event.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}

		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// SoftDeleteEvent flags a visible event as deleted. Ledger rows stay.
func (r *Repository) SoftDeleteEvent(ctx context.Context, id string) error {
	query := `
		UPDATE events
		SET is_deleted = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrEventNotFound
	}

	return nil
}

// lockEvent reads an event row with FOR UPDATE, deleted rows included.
func lockEvent(ctx context.Context, tx pgx.Tx, id string) (*model.Event, error) {
	query := `SELECT ` + eventColumns("") + ` FROM events WHERE id = $1 FOR UPDATE`

	event, err := scanEvent(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}

	return event, nil
}

func collectEvents(rows pgx.Rows) ([]*model.Event, error) {
	defer rows.Close()

	events := make([]*model.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var event model.Event
	err := row.Scan(
		&event.ID,
		&event.HostID,
		&event.MealID,
		&event.Title,
		&event.Description,
		&event.MaxParticipants,
		&event.CurrentParticipants,
		&event.Location,
		&event.ScheduledAt,
		&event.ImageURL,
		&event.Price,
		&event.IsDeleted,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	return &event, err
}
