package models

import "errors"

var (
	// ErrValidation marks missing or malformed user input.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthenticated marks a missing, malformed, expired or forged session token.
	ErrUnauthenticated = errors.New("invalid token")

	// ErrForbidden marks a valid session acting on a record it does not own.
	ErrForbidden = errors.New("not the owner of the blog")

	ErrNotFound = errors.New("blog not found")

	ErrUserNotFound = errors.New("user not found")

	// ErrUpload marks a failure of the asset store to accept a binary.
	ErrUpload = errors.New("image upload failed")

	// ErrCleanup marks a failed asset deletion. It is logged and never returned to a client.
	ErrCleanup = errors.New("asset cleanup failed")

	ErrEmailTaken = errors.New("email already registered")

	ErrInvalidCredentials = errors.New("invalid credentials")
)
