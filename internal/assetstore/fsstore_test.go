package assetstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore(t *testing.T) {
	root := t.TempDir()
	store, err := NewFSStore(root)
	require.NoError(t, err)

	adapter := New(store, "http://localhost:8080/assets")

	reference, err := adapter.Upload(context.Background(), []byte("GIF89a"), "image/gif", "blogs")
	require.NoError(t, err)

	key, err := ObjectKey(reference)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "GIF89a", string(content))

	server := httptest.NewServer(http.StripPrefix("/assets", store.Handler()))
	defer server.Close()

	response, err := http.Get(server.URL + "/assets/" + key)
	require.NoError(t, err)
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	require.NoError(t, response.Body.Close())
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "GIF89a", string(body))

	require.NoError(t, adapter.Remove(context.Background(), reference))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(key)))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(context.Background(), key), "deleting twice is fine")
}
