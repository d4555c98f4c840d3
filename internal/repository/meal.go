package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tablemate/tablemate/internal/model"
)

const mealColumns = `id, owner_id, title, description, ingredients, image_url, is_deleted, created_at, updated_at`

// CreateMeal inserts a new meal.
func (r *Repository) CreateMeal(ctx context.Context, meal *model.Meal) error {
	query := `
		INSERT INTO meals (id, owner_id, title, description, ingredients, image_url, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		meal.ID,
		meal.OwnerID,
		meal.Title,
		meal.Description,
		meal.Ingredients,
		meal.ImageURL,
		meal.CreatedAt,
		meal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create meal: %w", err)
	}

	meal.IsDeleted = false
	return nil
}

// GetMealByID retrieves a meal. Deleted meals are returned only when
// includeDeleted is set.
func (r *Repository) GetMealByID(ctx context.Context, id string, includeDeleted bool) (*model.Meal, error) {
	query := `SELECT ` + mealColumns + ` FROM meals WHERE id = $1 AND ($2 OR NOT is_deleted)`

	meal, err := scanMeal(r.pool.QueryRow(ctx, query, id, includeDeleted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMealNotFound
		}
		return nil, fmt.Errorf("failed to get meal by ID: %w", err)
	}

	return meal, nil
}

// ListMealsByOwner returns visible meals of an owner, newest first.
func (r *Repository) ListMealsByOwner(ctx context.Context, ownerID string) ([]*model.Meal, error) {
	query := `
		SELECT ` + mealColumns + `
		FROM meals
		WHERE owner_id = $1 AND NOT is_deleted
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	defer rows.Close()

	meals := make([]*model.Meal, 0)
	for rows.Next() {
		meal, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meals = append(meals, meal)
	}

	return meals, rows.Err()
}

// UpdateMeal writes the mutable fields of a visible meal.
func (r *Repository) UpdateMeal(ctx context.Context, meal *model.Meal) error {
	query := `
		UPDATE meals
		SET title = $2, description = $3, ingredients = $4, image_url = $5, updated_at = $6
		WHERE id = $1 AND NOT is_deleted
	`

	result, err := r.pool.Exec(ctx, query,
		meal.ID,
		meal.Title,
		meal.Description,
		meal.Ingredients,
		meal.ImageURL,
		meal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update meal: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrMealNotFound
	}

	return nil
}

// SoftDeleteMeal flags a visible meal as deleted.
func (r *Repository) SoftDeleteMeal(ctx context.Context, id string) error {
	query := `
		UPDATE meals
		SET is_deleted = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete meal: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrMealNotFound
	}

	return nil
}

func scanMeal(row pgx.Row) (*model.Meal, error) {
	var meal model.Meal
	err := row.Scan(
		&meal.ID,
		&meal.OwnerID,
		&meal.Title,
		&meal.Description,
		&meal.Ingredients,
		&meal.ImageURL,
		&meal.IsDeleted,
		&meal.CreatedAt,
		&meal.UpdatedAt,
	)
	return &meal, err
}
