package model

import "time"

// AuthContext is the identity resolved from a bearer token.
type AuthContext struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}
