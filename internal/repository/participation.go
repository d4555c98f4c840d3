package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tablemate/tablemate/internal/model"
)

// JoinEvent is the capacity critical section. It locks the event row,
// evaluates rule, appends the ledger row and bumps the counter in one
// transaction. Errors returned by rule are passed through unchanged and
// nothing is written.
func (r *Repository) JoinEvent(ctx context.Context, entry *model.Participation, rule model.JoinRule) (*model.Event, error) {
	var joined *model.Event

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		event, err := lockEvent(ctx, tx, entry.EventID)
		if err != nil {
			return err
		}

		var exists bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM event_participants WHERE event_id = $1 AND participant_id = $2
			)
		`, entry.EventID, entry.ParticipantID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}

		if err := rule(event, exists); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO event_participants (id, event_id, participant_id, joined_at)
			VALUES ($1, $2, $3, $4)
		`, entry.ID, entry.EventID, entry.ParticipantID, entry.JoinedAt)
		if err != nil {
			if isUniqueViolation(err, "event_participants_unique") {
				return ErrParticipationExists
			}
			return fmt.Errorf("failed to insert participation: %w", err)
		}

		err = tx.QueryRow(ctx, `
			UPDATE events
			SET current_participants = current_participants + 1
			WHERE id = $1
			RETURNING current_participants
		`, entry.EventID).Scan(&event.CurrentParticipants)
		if err != nil {
			return fmt.Errorf("failed to increment participant count: %w", err)
		}

		joined = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	return joined, nil
}

// ListParticipants returns the ledger rows of an event in join order.
func (r *Repository) ListParticipants(ctx context.Context, eventID string) ([]*model.Participation, error) {
	query := `
		SELECT id, event_id, participant_id, joined_at
		FROM event_participants
		WHERE event_id = $1
		ORDER BY joined_at, id
	`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	participants := make([]*model.Participation, 0)
	for rows.Next() {
		var p model.Participation
		if err := rows.Scan(&p.ID, &p.EventID, &p.ParticipantID, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, &p)
	}

	return participants, rows.Err()
}

// ListJoinedEvents returns the visible events a user joined, most
// recently joined first.
func (r *Repository) ListJoinedEvents(ctx context.Context, userID string) ([]*model.Event, error) {
	query := `
		SELECT ` + eventColumns("e") + `
		FROM event_participants p
		JOIN events e ON e.id = p.event_id
		WHERE p.participant_id = $1 AND NOT e.is_deleted
		ORDER BY p.joined_at DESC, p.id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list joined events: %w", err)
	}

	return collectEvents(rows)
}

// CounterDrift compares one event's counter with its ledger size.
func (r *Repository) CounterDrift(ctx context.Context, eventID string) (*model.CounterDrift, error) {
	query := `
		SELECT e.id, e.current_participants,
		       (SELECT COUNT(*) FROM event_participants p WHERE p.event_id = e.id)
		FROM events e
		WHERE e.id = $1
	`

	var d model.CounterDrift
	err := r.pool.QueryRow(ctx, query, eventID).Scan(&d.EventID, &d.Counter, &d.LedgerCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}

	return &d, nil
}

// ListCounterDrift returns all events whose counter disagrees with the
// ledger.
func (r *Repository) ListCounterDrift(ctx context.Context) ([]model.CounterDrift, error) {
	query := `
		SELECT e.id, e.current_participants, COALESCE(c.n, 0)
		FROM events e
		LEFT JOIN (
			SELECT event_id, COUNT(*) AS n FROM event_participants GROUP BY event_id
		) c ON c.event_id = e.id
		WHERE e.current_participants <> COALESCE(c.n, 0)
		ORDER BY e.id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to check counters: %w", err)
	}
	defer rows.Close()

	drifts := make([]model.CounterDrift, 0)
	for rows.Next() {
		var d model.CounterDrift
		if err := rows.Scan(&d.EventID, &d.Counter, &d.LedgerCount); err != nil {
			return nil, fmt.Errorf("failed to scan counter drift: %w", err)
		}
		drifts = append(drifts, d)
	}

	return drifts, rows.Err()
}

// RepairCounter rewrites the counter from the ledger under the event row
// lock. It returns the values observed before the repair.
func (r *Repository) RepairCounter(ctx context.Context, eventID string) (*model.CounterDrift, error) {
	var before model.CounterDrift

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		event, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}

		var count int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM event_participants WHERE event_id = $1`, eventID,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to count participants: %w", err)
		}

		before = model.CounterDrift{EventID: eventID, Counter: event.CurrentParticipants, LedgerCount: count}
		if !before.Drifted() {
			return nil
		}

		if _, err := tx.Exec(ctx,
			`UPDATE events SET current_participants = $2 WHERE id = $1`, eventID, count,
		); err != nil {
			return fmt.Errorf("failed to repair counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &before, nil
}
