// Package session stores the backend bearer credential in an httpOnly
// cookie and hands it to handlers. Nothing downstream reads the cookie
// directly: handlers pass the credential explicitly to the backend client
// and the import service.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

// CookieName is the cookie holding the bearer credential.
const CookieName = "auth_token"

// DefaultMaxAge is how long a login lasts.
const DefaultMaxAge = 8 * time.Hour

// Manager writes and clears the session cookie.
type Manager struct {
	secure bool
	maxAge time.Duration
}

// NewManager creates a Manager. A non-positive maxAge uses DefaultMaxAge.
func NewManager(secure bool, maxAge time.Duration) *Manager {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Manager{secure: secure, maxAge: maxAge}
}

// Set stores credential in the session cookie.
func (m *Manager) Set(w http.ResponseWriter, credential string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    credential,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest returns the credential carried by r, if any.
func FromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	return v, v != ""
}

// Fingerprint identifies a credential without exposing it. Import flows are
// owned by the fingerprint of the session that created them.
func Fingerprint(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

type contextKey struct{}

// WithCredential attaches credential to ctx.
func WithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, contextKey{}, credential)
}

// Credential returns the credential attached by WithCredential, or "".
func Credential(ctx context.Context) string {
	v, _ := ctx.Value(contextKey{}).(string)
	return v
}
