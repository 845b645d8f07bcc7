package visitor

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	VisitorCookie = "lab_vid"
	SessionCookie = "lab_sid"

	visitorMaxAge = 365 * 24 * time.Hour
)

// Identity names the browser (durable) and the browsing session.
type Identity struct {
	VisitorID string
	SessionID string
}

type identityKey struct{}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// Middleware reads both cookies and issues the missing ones. The session
// cookie has no Max-Age, so it ends when the browser session does.
func Middleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := Identity{
				VisitorID: cookieValue(r, VisitorCookie),
				SessionID: cookieValue(r, SessionCookie),
			}
			if id.VisitorID == "" {
				id.VisitorID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     VisitorCookie,
					Value:    id.VisitorID,
					Path:     "/",
					MaxAge:   int(visitorMaxAge / time.Second),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			if id.SessionID == "" {
				id.SessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    id.SessionID,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	v := strings.TrimSpace(c.Value)
	if _, err := uuid.Parse(v); err != nil {
		return ""
	}
	return v
}
