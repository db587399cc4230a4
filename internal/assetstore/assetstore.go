// Package assetstore keeps blog images in an external object store and hands
// out durable references (URLs) to them.
//
// A reference has the shape <public-base-url>/<folder>/<object-id>. The object
// key is recovered from a reference by position alone: the path segment just
// before the filename is the folder, and the filename up to its first "." is
// the object id, so "abc.tar.gz" names object "abc". Remove relies on that contract, so references must never be
// rewritten after Upload returns them.
package assetstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/patric-chuzhbe/blogshelf/internal/models"
)

// ObjectStore is the minimal blob API the adapter needs from a backend.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// ErrMalformedReference is returned when a reference does not follow the folder/object-id shape.
var ErrMalformedReference = errors.New("malformed asset reference")

// Adapter uploads images and removes them by reference.
type Adapter struct {
	store         ObjectStore
	publicBaseURL string
	newObjectID   func() string
}

// New creates an Adapter that publishes objects under publicBaseURL.
func New(store ObjectStore, publicBaseURL string) *Adapter {
	return &Adapter{
		store:         store,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		newObjectID:   func() string { return uuid.New().String() },
	}
}

// Upload stores data under folder and returns its reference once the backend
// confirmed the write. Failures are wrapped in models.ErrUpload.
func (a *Adapter) Upload(ctx context.Context, data []byte, contentType, folder string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", models.ErrUpload)
	}
	if !isPlainSegment(folder) {
		return "", fmt.Errorf("%w: invalid folder %q", models.ErrUpload, folder)
	}

	objectID := a.newObjectID()
	key := folder + "/" + objectID

	if err := a.store.Put(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUpload, err)
	}

	return a.publicBaseURL + "/" + key, nil
}

// Remove deletes the object behind reference. An empty reference is a no-op.
// Failures are wrapped in models.ErrCleanup; callers log them and carry on.
func (a *Adapter) Remove(ctx context.Context, reference string) error {
	if reference == "" {
		return nil
	}

	key, err := ObjectKey(reference)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrCleanup, err)
	}

	if err := a.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrCleanup, reference, err)
	}

	return nil
}

// ObjectKey derives the store key "<folder>/<object-id>" from a reference.
func ObjectKey(reference string) (string, error) {
	referencePath := reference
	if parsed, err := url.Parse(reference); err == nil && parsed.Path != "" {
		referencePath = parsed.Path
	}

	segments := strings.Split(strings.Trim(referencePath, "/"), "/")
	if len(segments) < 2 {
		return "", fmt.Errorf("%w: %q", ErrMalformedReference, reference)
	}

	folder := segments[len(segments)-2]
	filename := segments[len(segments)-1]
	objectID, _, _ := strings.Cut(filename, ".")

	if !isPlainSegment(folder) || !isPlainSegment(objectID) {
		return "", fmt.Errorf("%w: %q", ErrMalformedReference, reference)
	}

	return folder + "/" + objectID, nil
}

func isPlainSegment(segment string) bool {
	return segment != "" && segment != "." && segment != ".." && !strings.ContainsAny(segment, `/\`)
}
