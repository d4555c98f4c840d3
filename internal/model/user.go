// Package model defines domain entities for the application.
package model

import "time"

// User is a registered account. The credential hash never leaves the
// service layer in a response body.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	CredentialHash string    `json:"-"`
	University     *string   `json:"university,omitempty"`
	Bio            *string   `json:"bio,omitempty"`
	AvatarURL      *string   `json:"avatar_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProfilePatch holds the mutable subset of a user profile.
// Nil fields are left untouched.
type ProfilePatch struct {
	University *string
	Bio        *string
	AvatarURL  *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.University == nil && p.Bio == nil && p.AvatarURL == nil
}

// Apply copies the non-nil fields onto u.
func (p ProfilePatch) Apply(u *User) {
	if p.University != nil {
		u.University = p.University
	}
	if p.Bio != nil {
		u.Bio = p.Bio
	}
	if p.AvatarURL != nil {
		u.AvatarURL = p.AvatarURL
	}
}
