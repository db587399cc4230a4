package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit(t *testing.T) {
	require.NoError(t, Init("debug"))
	require.NoError(t, Init("error"))
	assert.Error(t, Init("chatty"))
}

func TestWithLoggingHTTPMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	previous := Log
	Log = zap.New(core).Sugar()
	t.Cleanup(func() { Log = previous })

	handler := WithLoggingHTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	request := httptest.NewRequest(http.MethodGet, "/api/blogs?author=ana", nil)
	handler.ServeHTTP(httptest.NewRecorder(), request)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/api/blogs?author=ana", fields["uri"])
	assert.Equal(t, http.MethodGet, fields["method"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, len("short and stout"), fields["size"])
}
