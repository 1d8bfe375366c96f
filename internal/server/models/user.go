// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account.
type User struct {
	ID    string
	Email string
	// PasswordHash is the encoded digest produced by the password hasher.
	// It never leaves the server.
	PasswordHash string `json:"-"`
	Role         Role
	Profile      ProfileFields
	// Image is nil when the user has no profile image.
	Image     *ProfileImage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName is the name shown to other users; it falls back to the email.
func (u *User) DisplayName() string {
	if u.Profile.Name != "" {
		return u.Profile.Name
	}
	return u.Email
}

// ProfileImage points at a blob in object storage. URL is what clients
// fetch; ExternalID is what the blob store deletes by.
type ProfileImage struct {
	URL        string
	ExternalID string
}
