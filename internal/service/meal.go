package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tablemate/tablemate/internal/cache"
	"github.com/tablemate/tablemate/internal/media"
	"github.com/tablemate/tablemate/internal/metrics"
	"github.com/tablemate/tablemate/internal/model"
	"github.com/tablemate/tablemate/internal/repository"
	"github.com/tablemate/tablemate/internal/validation"
)

// MealTitleCache caches meal titles for event views. A negative entry
// records that a meal is missing or deleted.
type MealTitleCache interface {
	GetMealTitle(ctx context.Context, mealID string) (string, error)
	SetMealTitle(ctx context.Context, mealID, title string) error
	DeleteMealTitle(ctx context.Context, mealID string) error
	IsMealTitleMissing(ctx context.Context, mealID string) (bool, error)
	SetMealTitleMissing(ctx context.Context, mealID string) error
}

// MealService handles the meal catalog.
type MealService struct {
	meals    MealStore
	users    UserStore
	titles   MealTitleCache
	uploader Uploader
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewMealService creates a new MealService. titles and uploader may be nil.
func NewMealService(meals MealStore, users UserStore, titles MealTitleCache, uploader Uploader, recorder metrics.Recorder, logger *slog.Logger) *MealService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MealService{
		meals:    meals,
		users:    users,
		titles:   titles,
		uploader: uploader,
		metrics:  recorder,
		logger:   logger.With("component", "service.meal"),
	}
}

// CreateMealInput defines input for publishing a meal.
type CreateMealInput struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Ingredients string `json:"ingredients" validate:"max=5000"`
}

// Create publishes a meal owned by ownerID. image is optional.
func (s *MealService) Create(ctx context.Context, ownerID string, input CreateMealInput, image *media.Upload) (*model.Meal, error) {
	input.Title = strings.TrimSpace(input.Title)
	if err := validation.Struct(ctx, input); err != nil {
		return nil, invalid(err)
	}

	if _, err := s.users.GetUserByID(ctx, ownerID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	imageURL, err := upload(ctx, s.uploader, "meals", image)
	if err != nil {
		return nil, err
	}

	ts := now()
	meal := &model.Meal{
		ID:          generateULID(),
		OwnerID:     ownerID,
		Title:       input.Title,
		Description: input.Description,
		Ingredients: input.Ingredients,
		ImageURL:    imageURL,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	if err := s.meals.CreateMeal(ctx, meal); err != nil {
		return nil, fmt.Errorf("create meal: %w", err)
	}

	s.metrics.IncMealCreated()
	// A title lookup may have cached this id as missing.
	s.invalidateTitle(ctx, meal.ID)

	return meal, nil
}

// Get returns a visible meal.
func (s *MealService) Get(ctx context.Context, id string) (*model.Meal, error) {
	meal, err := s.meals.GetMealByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, repository.ErrMealNotFound) {
			return nil, ErrMealNotFound
		}
		return nil, err
	}
	return meal, nil
}

// ListByOwner returns the visible meals of ownerID, newest first.
func (s *MealService) ListByOwner(ctx context.Context, ownerID string) ([]*model.Meal, error) {
	return s.meals.ListMealsByOwner(ctx, ownerID)
}

// UpdateMealInput defines a partial meal update.
type UpdateMealInput struct {
	Title       *string `json:"title" validate:"omitnil,notblank,max=200"`
	Description *string `json:"description" validate:"omitnil,max=5000"`
	Ingredients *string `json:"ingredients" validate:"omitnil,max=5000"`
}

// Update applies a partial update. Only the creator may edit a meal, and a
// deleted meal reports ErrAlreadyDeleted.
func (s *MealService) Update(ctx context.Context, id, callerID string, input UpdateMealInput, image *media.Upload) (*model.Meal, error) {
	if err := validation.Struct(ctx, input); err != nil {
		return nil, invalid(err)
	}

	meal, err := s.meals.GetMealByID(ctx, id, true)
	if err != nil {
		if errors.Is(err, repository.ErrMealNotFound) {
			return nil, ErrMealNotFound
		}
		return nil, err
	}
	if !meal.IsOwnedBy(callerID) {
		return nil, ErrNotMealOwner
	}
	if meal.IsDeleted {
		return nil, ErrAlreadyDeleted
	}

	imageURL, err := upload(ctx, s.uploader, "meals", image)
	if err != nil {
		return nil, err
	}

	model.MealPatch{
		Title:       trimmed(input.Title),
		Description: input.Description,
		Ingredients: input.Ingredients,
		ImageURL:    imageURL,
	}.Apply(meal)
	meal.UpdatedAt = now()

	if err := s.meals.UpdateMeal(ctx, meal); err != nil {
		if errors.Is(err, repository.ErrMealNotFound) {
			// Deleted after the fetch above.
			return nil, ErrAlreadyDeleted
		}
		return nil, fmt.Errorf("update meal: %w", err)
	}

	s.invalidateTitle(ctx, meal.ID)
	return meal, nil
}

// SoftDelete hides a meal. Events referencing it keep working with an
// empty meal name.
func (s *MealService) SoftDelete(ctx context.Context, id, callerID string) error {
	meal, err := s.meals.GetMealByID(ctx, id, true)
	if err != nil {
		if errors.Is(err, repository.ErrMealNotFound) {
			return ErrMealNotFound
		}
		return err
	}
	if !meal.IsOwnedBy(callerID) {
		return ErrNotMealOwner
	}
	if meal.IsDeleted {
		return ErrAlreadyDeleted
	}

	if err := s.meals.SoftDeleteMeal(ctx, id); err != nil {
		if errors.Is(err, repository.ErrMealNotFound) {
			// Lost a race with another delete.
			return ErrAlreadyDeleted
		}
		return fmt.Errorf("delete meal: %w", err)
	}

	s.metrics.IncMealDeleted()
	s.invalidateTitle(ctx, id)
	return nil
}

// TitleOf returns the title of a visible meal, or "" when the meal is
// missing or deleted. Lookups are cached, including misses.
func (s *MealService) TitleOf(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}

	if s.titles != nil {
		title, err := s.titles.GetMealTitle(ctx, id)
		if err == nil {
			s.metrics.IncMealTitleCacheHit()
			return title
		}
		if errors.Is(err, cache.ErrCacheMiss) {
			s.metrics.IncMealTitleCacheMiss()
			if missing, _ := s.titles.IsMealTitleMissing(ctx, id); missing {
				return ""
			}
		} else {
			s.logger.Warn("meal title cache read failed", "meal_id", id, "error", err)
		}
	}

	meal, err := s.meals.GetMealByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, repository.ErrMealNotFound) {
			if s.titles != nil {
				_ = s.titles.SetMealTitleMissing(ctx, id)
			}
			return ""
		}
		s.logger.Warn("meal title lookup failed", "meal_id", id, "error", err)
		return ""
	}

	if s.titles != nil {
		if err := s.titles.SetMealTitle(ctx, id, meal.Title); err != nil {
			s.logger.Debug("meal title cache write failed", "meal_id", id, "error", err)
		}
	}
	return meal.Title
}

func (s *MealService) invalidateTitle(ctx context.Context, id string) {
	if s.titles == nil {
		return
	}
	if err := s.titles.DeleteMealTitle(ctx, id); err != nil {
		s.logger.Warn("meal title cache invalidation failed", "meal_id", id, "error", err)
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
