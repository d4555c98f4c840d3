// Package activity publishes event lifecycle notifications to a Redis stream.
package activity

import (
	"fmt"
	"time"
)

// Kind names an activity type.
type Kind string

// Activity kinds emitted by the services.
const (
	KindEventCreated Kind = "event_created"
	KindEventUpdated Kind = "event_updated"
	KindEventJoined  Kind = "event_joined"
	KindEventDeleted Kind = "event_deleted"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEventCreated, KindEventUpdated, KindEventJoined, KindEventDeleted:
		return true
	}
	return false
}

// Activity is the compact record written to the stream.
type Activity struct {
	Kind     Kind   `json:"k"`
	EventID  string `json:"eid"`
	ActorID  string `json:"uid"`
	Seats    int    `json:"n,omitempty"` // participant count after the change
	Occurred int64  `json:"t"`           // Unix milliseconds
}

// New builds an Activity stamped with the current time.
func New(kind Kind, eventID, actorID string) Activity {
	return Activity{
		Kind:     kind,
		EventID:  eventID,
		ActorID:  actorID,
		Occurred: time.Now().UnixMilli(),
	}
}

// Validate checks the fields a consumer relies on.
func Validate(a Activity) error {
	if !a.Kind.Valid() {
		return fmt.Errorf("unknown activity kind %q", a.Kind)
	}
	if a.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if a.ActorID == "" {
		return fmt.Errorf("actor_id is required")
	}
	if a.Seats < 0 {
		return fmt.Errorf("seats must not be negative")
	}
	if a.Occurred <= 0 {
		return fmt.Errorf("occurred must be set")
	}
	return nil
}
