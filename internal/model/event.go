package model

import "time"

// Event is a cooking meetup hosted by a user around one of their meals.
//
// CurrentParticipants is a cached projection of the participation ledger.
// It is only written together with a ledger insert, inside the same
// transaction, so that it always equals the number of ledger rows.
type Event struct {
	ID                  string    `json:"id"`
	HostID              string    `json:"host_id"`
	MealID              string    `json:"meal_id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	MaxParticipants     int       `json:"max_participants"`
	CurrentParticipants int       `json:"current_participants"`
	Location            string    `json:"location"`
	ScheduledAt         time.Time `json:"scheduled_at"`
	ImageURL            *string   `json:"image_url,omitempty"`
	Price               *float64  `json:"price,omitempty"`
	IsDeleted           bool      `json:"-"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// IsHostedBy reports whether userID is the host.
func (e *Event) IsHostedBy(userID string) bool {
	return e.HostID == userID
}

// IsFull reports whether no seat is left.
func (e *Event) IsFull() bool {
	return e.CurrentParticipants >= e.MaxParticipants
}

// RemainingSeats returns how many more participants can join.
func (e *Event) RemainingSeats() int {
	if e.IsFull() {
		return 0
	}
	return e.MaxParticipants - e.CurrentParticipants
}

// EventPatch is a partial event update. Nil fields are left untouched.
type EventPatch struct {
	Title           *string
	Description     *string
	MaxParticipants *int
	Location        *string
	ScheduledAt     *time.Time
	Price           *float64
	ImageURL        *string
}

// IsEmpty reports whether the patch changes nothing.
func (p EventPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.MaxParticipants == nil &&
		p.Location == nil && p.ScheduledAt == nil && p.Price == nil && p.ImageURL == nil
}

// Apply copies the non-nil fields onto e. Capacity validation is the
// caller's job.
func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.MaxParticipants != nil {
		e.MaxParticipants = *p.MaxParticipants
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.ScheduledAt != nil {
		e.ScheduledAt = *p.ScheduledAt
	}
	if p.Price != nil {
		e.Price = p.Price
	}
	if p.ImageURL != nil {
		e.ImageURL = p.ImageURL
	}
}

// EventFilter narrows event listings.
type EventFilter struct {
	HostID string
}
