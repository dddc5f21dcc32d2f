package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const SessionCookieName = "logview_session"

type contextKey string

const sessionIDKey contextKey = "session_id"

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Sessions identifies anonymous users with a signed cookie. A request
// without a valid session cookie gets a fresh session minted transparently;
// there is no login and no error path visible to the client.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
}

func NewSessions(secret string, ttl time.Duration, logger *slog.Logger) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl, logger: logger}
}

// Middleware resolves or mints the session and puts its ID on the request
// context.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := s.resolve(r)
		if !ok {
			sessionID = uuid.NewString()
			token, err := s.sign(sessionID)
			if err != nil {
				s.logger.Error("failed to sign session token", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    token,
				Path:     "/",
				MaxAge:   int(s.ttl / time.Second),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Sessions) resolve(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", false
	}
	claims, err := s.verify(cookie.Value)
	if err != nil || claims.SessionID == "" {
		// Expired or tampered cookies just get replaced.
		return "", false
	}
	return claims.SessionID, true
}

func (s *Sessions) sign(sessionID string) (string, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Sessions) verify(token string) (sessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return sessionClaims{}, err
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return sessionClaims{}, errors.New("invalid token")
	}
	return *claims, nil
}

// SessionID returns the session identifier the middleware stored on the
// context, or "" when the middleware did not run.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}
