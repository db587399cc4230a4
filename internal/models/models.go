package models

import "time"

// Blog is the canonical blog record as stored and as returned to clients.
type Blog struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Image     string    `json:"image,omitempty"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Blogs is a list of blog records ordered by creation time, newest first.
type Blogs []Blog

// BlogFilter narrows a listing. Empty fields match everything.
type BlogFilter struct {
	Author   string
	Category string
}

// BlogPatch carries the fields of a partial update. Nil fields are left untouched.
type BlogPatch struct {
	Title    *string
	Category *string
	Content  *string
	Image    *string
}

// BlogUpdateResult is what the repository reports after an update: the new
// state of the record and the image reference it held just before.
type BlogUpdateResult struct {
	Blog          *Blog
	PreviousImage string
}

// BlogDraft is the validated text payload of a create request.
type BlogDraft struct {
	Title    string `validate:"notblank"`
	Category string `validate:"notblank"`
	Content  string `validate:"notblank"`
}

// ImageUpload is an image payload that already passed the transport-level
// constraints (single file, image MIME type, size limit).
type ImageUpload struct {
	Data        []byte
	ContentType string
}

type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type InternalStatsResponse struct {
	Blogs int64 `json:"blogs"`
	Users int64 `json:"users"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// AssetRemoveJob asks the asset reaper to remove a stored object once the
// blog record no longer points at it.
type AssetRemoveJob struct {
	Reference string
	BlogID    string
}
