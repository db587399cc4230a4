package auth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/blogshelf/internal/models"
)

var testKey = []byte("test-signing-key")

func TestIssueAndVerify(t *testing.T) {
	service := New(testKey, time.Hour)

	token, err := service.Issue("user-1")
	require.NoError(t, err)

	session, err := service.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)

	_, err = service.Issue("")
	assert.Error(t, err)
}

func TestVerifyRejects(t *testing.T) {
	service := New(testKey, time.Hour)
	valid, err := service.Issue("user-1")
	require.NoError(t, err)

	expiredService := New(testKey, time.Hour)
	expiredService.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredService.Issue("user-1")
	require.NoError(t, err)

	foreign, err := New([]byte("another-key"), time.Hour).Issue("user-1")
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	emptyUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString(testKey)
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"user_id":"admin"}`))
	tampered := strings.Join(parts, ".")

	tests := []struct {
		name  string
		token string
	}{
		{name: "tampered payload", token: tampered},
		{name: "expired", token: expired},
		{name: "foreign key", token: foreign},
		{name: "alg none", token: noneAlg},
		{name: "no user id", token: emptyUser},
		{name: "garbage", token: "not-a-jwt"},
		{name: "empty", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Verify(tt.token)
			assert.ErrorIs(t, err, models.ErrUnauthenticated)
		})
	}
}

func TestTokensWithoutTTLDoNotExpire(t *testing.T) {
	service := New(testKey, 0)
	service.now = func() time.Time { return time.Now().Add(-24 * 365 * time.Hour) }

	token, err := service.Issue("user-1")
	require.NoError(t, err)

	session, err := service.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
}

func TestDecodeIdentity(t *testing.T) {
	token, err := New(testKey, time.Hour).Issue("user-42")
	require.NoError(t, err)

	userID, err := DecodeIdentity(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)

	// Decoding does not check the signature.
	foreign, err := New([]byte("another-key"), time.Hour).Issue("user-7")
	require.NoError(t, err)
	userID, err = DecodeIdentity(foreign)
	require.NoError(t, err)
	assert.Equal(t, "user-7", userID)

	_, err = DecodeIdentity("garbage")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestRequireSession(t *testing.T) {
	service := New(testKey, time.Hour)
	token, err := service.Issue("user-1")
	require.NoError(t, err)

	var seen Session
	handler := RequireSession(service.Verify)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		require.True(t, ok)
		seen = session
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid", header: "Bearer " + token, status: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer " + token, status: http.StatusNoContent},
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "raw token without scheme", header: token, status: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = Session{}
			request := httptest.NewRequest(http.MethodGet, "/api/blogs", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.status, recorder.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, "user-1", seen.UserID)
			} else {
				assert.Contains(t, recorder.Body.String(), `"message"`)
			}
		})
	}
}
