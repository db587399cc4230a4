// Package auth issues and verifies the signed session tokens that identify
// users. Tokens are stateless HS256 JWTs carrying the user id; nothing about
// a session is kept on the server.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/blogshelf/internal/logger"
	"github.com/patric-chuzhbe/blogshelf/internal/models"
)

// Claims represents the JWT claims used by the system.
// It embeds standard JWT claims and adds a user-specific identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Session is the verified identity of the caller. It is produced only by
// Verify and handed explicitly to every mutation.
type Session struct {
	UserID string
}

// Verifier turns a raw token into a Session or fails with models.ErrUnauthenticated.
type Verifier func(tokenString string) (Session, error)

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// SessionKey is the context key under which the middleware stores the Session.
const SessionKey ContextKey = "session"

// TokenService signs and verifies session tokens with a shared HMAC key.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// New creates a TokenService. A ttl of zero issues tokens without expiry.
func New(signingKey []byte, ttl time.Duration) *TokenService {
	return &TokenService{
		signingKey: signingKey,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Issue mints a signed token for userID.
func (s *TokenService) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("cannot issue a token for an empty user id")
	}

	issuedAt := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
		UserID: userID,
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("in internal/auth/auth.go/Issue(): error while `token.SignedString()` calling: %w", err)
	}

	return tokenString, nil
}

// Verify checks signature, algorithm, expiry and payload shape.
func (s *TokenService) Verify(tokenString string) (Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
	}
	if !token.Valid || claims.UserID == "" {
		return Session{}, models.ErrUnauthenticated
	}

	return Session{UserID: claims.UserID}, nil
}

// DecodeIdentity extracts the user id from a token without checking its
// signature. Clients use it for display and "my posts" filtering only; it is
// not a trust boundary.
func DecodeIdentity(tokenString string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
	}
	if claims.UserID == "" {
		return "", models.ErrUnauthenticated
	}

	return claims.UserID, nil
}

// SessionFromContext returns the Session stored by RequireSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(SessionKey).(Session)
	return session, ok && session.UserID != ""
}

// RequireSession is an HTTP middleware that rejects requests without a valid
// "Authorization: Bearer <token>" header and stores the Session in the request context.
func RequireSession(verify Verifier) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		middleware := func(response http.ResponseWriter, request *http.Request) {
			tokenString, ok := bearerToken(request)
			if !ok {
				writeUnauthorized(response, "missing bearer token")
				return
			}

			session, err := verify(tokenString)
			if err != nil {
				logger.Log.Debugln("Error calling the `verify()`: ", zap.Error(err))
				writeUnauthorized(response, models.ErrUnauthenticated.Error())
				return
			}

			ctx := context.WithValue(request.Context(), SessionKey, session)
			h.ServeHTTP(response, request.WithContext(ctx))
		}

		return http.HandlerFunc(middleware)
	}
}

func bearerToken(request *http.Request) (string, bool) {
	header := request.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)

	return token, token != ""
}

func writeUnauthorized(response http.ResponseWriter, message string) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(response).Encode(models.MessageResponse{Message: message})
}
