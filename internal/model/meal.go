package model

import "time"

// Meal is a recipe published by a user.
type Meal struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Ingredients string    `json:"ingredients"`
	ImageURL    *string   `json:"image_url,omitempty"`
	IsDeleted   bool      `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MealPatch is a partial meal update.
type MealPatch struct {
	Title       *string
	Description *string
	Ingredients *string
	ImageURL    *string
}

// Apply copies the non-nil fields onto m.
func (p MealPatch) Apply(m *Meal) {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.Ingredients != nil {
		m.Ingredients = *p.Ingredients
	}
	if p.ImageURL != nil {
		m.ImageURL = p.ImageURL
	}
}

// IsOwnedBy reports whether userID created the meal.
func (m *Meal) IsOwnedBy(userID string) bool {
	return m.OwnerID == userID
}
