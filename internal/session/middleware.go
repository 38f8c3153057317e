package session

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/story-quest/pkg/http/errors"
)

type sessionKey struct{}

// Resolver returns id when that session is still alive, or opens a fresh one.
type Resolver interface {
	Ensure(ctx context.Context, id string) (string, error)
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// IntoContext stores the session id on ctx.
func IntoContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// FromContext returns the session id set by Middleware.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey{}).(string)
	return id, ok && id != ""
}

// Middleware binds every request to a game session. A missing, tampered or
// expired cookie, or one naming a session that no longer exists, starts a new
// session and reissues the cookie.
func Middleware(tokens *TokenManager, sessions Resolver, cookie CookieConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	if cookie.Name == "" {
		cookie.Name = "storyquest_session"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var current string
			if c, err := r.Cookie(cookie.Name); err == nil {
				id, err := tokens.Verify(c.Value)
				if err != nil {
					logger.Debug().Err(err).Msg("discarding session cookie")
				} else {
					current = id
				}
			}

			id, err := sessions.Ensure(r.Context(), current)
			if err != nil {
				logger.Error().Err(err).Msg("session unavailable")
				httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeSessionUnavailable, "Session store unavailable")
				return
			}

			if id != current {
				token, err := tokens.Issue(id)
				if err != nil {
					logger.Error().Err(err).Msg("sign session cookie")
					httperrors.RespondInternalError(w, "Failed to start session")
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     cookie.Name,
					Value:    token,
					Path:     "/",
					MaxAge:   int(tokens.TTL().Seconds()),
					HttpOnly: true,
					Secure:   cookie.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(IntoContext(r.Context(), id)))
		})
	}
}
