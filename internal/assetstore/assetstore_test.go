package assetstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/blogshelf/internal/models"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = body
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	return nil
}

func TestUploadThenRemoveRoundTrip(t *testing.T) {
	store := newMemoryStore()
	adapter := New(store, "https://cdn.example.com/media/")

	reference, err := adapter.Upload(context.Background(), []byte("png bytes"), "image/png", "blogs")
	require.NoError(t, err)
	assert.Regexp(t, `^https://cdn\.example\.com/media/blogs/[0-9a-f-]{36}$`, reference)

	key, err := ObjectKey(reference)
	require.NoError(t, err)
	assert.Contains(t, store.objects, key)

	require.NoError(t, adapter.Remove(context.Background(), reference))
	assert.Empty(t, store.objects)
}

func TestUploadFailures(t *testing.T) {
	store := newMemoryStore()
	adapter := New(store, "https://cdn.example.com")

	_, err := adapter.Upload(context.Background(), nil, "image/png", "blogs")
	assert.ErrorIs(t, err, models.ErrUpload)

	_, err = adapter.Upload(context.Background(), []byte("x"), "image/png", "../etc")
	assert.ErrorIs(t, err, models.ErrUpload)

	store.putErr = errors.New("quota exceeded")
	_, err = adapter.Upload(context.Background(), []byte("x"), "image/png", "blogs")
	assert.ErrorIs(t, err, models.ErrUpload)
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestRemove(t *testing.T) {
	store := newMemoryStore()
	adapter := New(store, "https://cdn.example.com")

	assert.NoError(t, adapter.Remove(context.Background(), ""), "empty reference is a no-op")

	err := adapter.Remove(context.Background(), "no-folder")
	assert.ErrorIs(t, err, models.ErrCleanup)

	store.deleteErr = errors.New("network down")
	err = adapter.Remove(context.Background(), "https://cdn.example.com/blogs/abc")
	assert.ErrorIs(t, err, models.ErrCleanup)
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		want      string
		wantErr   bool
	}{
		{name: "own reference", reference: "https://cdn.example.com/blogs/0d6f", want: "blogs/0d6f"},
		{name: "extension is stripped", reference: "https://res.example.com/image/upload/v1712/blogs/abc123.jpg", want: "blogs/abc123"},
		{name: "everything after the first dot is dropped", reference: "https://cdn.example.com/blogs/abc.tar.gz", want: "blogs/abc"},
		{name: "query is ignored", reference: "https://cdn.example.com/blogs/abc.png?width=300", want: "blogs/abc"},
		{name: "bare path", reference: "blogs/abc", want: "blogs/abc"},
		{name: "single segment", reference: "https://cdn.example.com/abc", wantErr: true},
		{name: "dot dot folder", reference: "https://cdn.example.com/../abc", wantErr: true},
		{name: "extension only", reference: "https://cdn.example.com/blogs/.png", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ObjectKey(tt.reference)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedReference)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
