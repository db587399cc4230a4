package assetstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/blogshelf/internal/models"
)

type s3Call struct {
	method string
	path   string
}

func newFakeS3(t *testing.T, denyPuts bool) (*httptest.Server, func() []s3Call) {
	t.Helper()

	var (
		mu    sync.Mutex
		calls []s3Call
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, s3Call{method: r.Method, path: r.URL.Path})
		mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			if denyPuts {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`))
				return
			}
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(server.Close)

	return server, func() []s3Call {
		mu.Lock()
		defer mu.Unlock()
		return append([]s3Call(nil), calls...)
	}
}

func newTestS3Store(t *testing.T, endpoint string) *S3Store {
	t.Helper()
	store, err := NewS3Store(context.Background(), S3Options{
		Bucket:       "media",
		Region:       "us-east-1",
		BaseEndpoint: endpoint,
		AccessKey:    "test",
		SecretKey:    "test-secret",
		UsePathStyle: true,
	})
	require.NoError(t, err)
	return store
}

func TestS3StoreRoundTrip(t *testing.T) {
	server, calls := newFakeS3(t, false)
	adapter := New(newTestS3Store(t, server.URL), "https://media.example.com")

	reference, err := adapter.Upload(context.Background(), []byte("jpeg bytes"), "image/jpeg", "blogs")
	require.NoError(t, err)

	key, err := ObjectKey(reference)
	require.NoError(t, err)

	require.NoError(t, adapter.Remove(context.Background(), reference))

	recorded := calls()
	require.Len(t, recorded, 2)
	assert.Equal(t, s3Call{method: http.MethodPut, path: "/media/" + key}, recorded[0])
	assert.Equal(t, s3Call{method: http.MethodDelete, path: "/media/" + key}, recorded[1])
}

func TestS3StoreUploadDenied(t *testing.T) {
	server, _ := newFakeS3(t, true)
	adapter := New(newTestS3Store(t, server.URL), "https://media.example.com")

	_, err := adapter.Upload(context.Background(), []byte("jpeg bytes"), "image/jpeg", "blogs")
	assert.ErrorIs(t, err, models.ErrUpload)
}
