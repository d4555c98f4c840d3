package model

import "time"

// Participation is one row of the participation ledger: a user who joined
// an event. At most one row exists per (EventID, ParticipantID).
type Participation struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	ParticipantID string    `json:"participant_id"`
	JoinedAt      time.Time `json:"joined_at"`
}

// CounterDrift reports a mismatch between an event's cached counter and
// its ledger.
type CounterDrift struct {
	EventID     string `json:"event_id"`
	Counter     int    `json:"counter"`
	LedgerCount int    `json:"ledger_count"`
}

// Drifted reports whether the counter disagrees with the ledger.
func (d CounterDrift) Drifted() bool {
	return d.Counter != d.LedgerCount
}

// JoinRule decides whether a join may proceed given the locked event row
// and whether the participant already has a ledger row.
type JoinRule func(event *Event, alreadyJoined bool) error
