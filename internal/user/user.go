// Package user defines the user model used throughout the application,
// particularly for authentication and for the author snapshot on blog posts.
package user

import "time"

// User represents a registered account.
type User struct {
	// ID is the unique identifier of the user, meaning a UUID.
	ID string

	// Name is the display name copied onto posts at creation time.
	Name string

	// Email is unique across all users.
	Email string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	CreatedAt time.Time
}
