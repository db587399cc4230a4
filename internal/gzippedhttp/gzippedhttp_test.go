package gzippedhttp

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipString(t *testing.T, input string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	_, err := gzipWriter.Write([]byte(input))
	require.NoError(t, err)
	require.NoError(t, gzipWriter.Close())
	return buf.Bytes()
}

func TestGzipResponse(t *testing.T) {
	tests := []struct {
		name           string
		acceptEncoding string
		contentType    string
		wantGzip       bool
	}{
		{name: "json for a gzip client", acceptEncoding: "gzip, deflate", contentType: "application/json", wantGzip: true},
		{name: "json for a plain client", acceptEncoding: "", contentType: "application/json", wantGzip: false},
		{name: "images pass through", acceptEncoding: "gzip", contentType: "image/png", wantGzip: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := GzipResponse(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"message":"hello"}`))
			}))

			request := httptest.NewRequest(http.MethodGet, "/api/blogs", nil)
			if tt.acceptEncoding != "" {
				request.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			body := recorder.Body.Bytes()
			if tt.wantGzip {
				assert.Equal(t, "gzip", recorder.Header().Get("Content-Encoding"))
				reader, err := gzip.NewReader(bytes.NewReader(body))
				require.NoError(t, err)
				body, err = io.ReadAll(reader)
				require.NoError(t, err)
			} else {
				assert.Empty(t, recorder.Header().Get("Content-Encoding"))
			}
			assert.Equal(t, `{"message":"hello"}`, string(body))
		})
	}
}

func TestGzipResponseSkipsErrorsWithoutBody(t *testing.T) {
	handler := GzipResponse(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Accept-Encoding", "gzip")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Empty(t, recorder.Header().Get("Content-Encoding"))
	assert.Zero(t, recorder.Body.Len())
}

func TestUngzipRequest(t *testing.T) {
	var received string
	handler := UngzipRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		received = string(data)
	}))

	request := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(gzipString(t, `{"email":"a@b.c"}`)))
	request.Header.Set("Content-Encoding", "gzip")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, `{"email":"a@b.c"}`, received)

	broken := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader([]byte("plain")))
	broken.Header.Set("Content-Encoding", "gzip")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, broken)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
