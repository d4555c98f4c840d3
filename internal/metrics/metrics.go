// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Join outcomes reported through IncJoin.
const (
	JoinJoined        = "joined"
	JoinAlreadyJoined = "already_joined"
	JoinFull          = "full"
	JoinSelf          = "self_join"
	JoinNotFound      = "not_found"
	JoinConflict      = "conflict"
	JoinFailed        = "failed"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Capacity coordination
	IncJoin(outcome string)
	ObserveJoinDuration(duration time.Duration)
	SetCounterDrift(events int)

	// Catalog
	IncEventCreated()
	IncEventUpdated()
	IncEventDeleted()
	IncMealCreated()
	IncMealDeleted()
	IncUserRegistered()

	// Meal title cache
	IncMealTitleCacheHit()
	IncMealTitleCacheMiss()

	// Activity stream
	IncActivityPublished(status string) // status: "success" or "dropped"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
