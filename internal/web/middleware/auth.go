package middleware

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/JonMunkholm/voucherdash/internal/session"
)

// LoginPath is where anonymous page requests are sent.
const LoginPath = "/login"

// RequireSession returns middleware that only lets requests carrying a
// session cookie through, with the credential attached to the context.
//
// With redirect set, anonymous requests are sent to the login form with
// their path and query in "from". Otherwise they get a 401 JSON error.
func RequireSession(redirect bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential, ok := session.FromRequest(r)
			if ok {
				next.ServeHTTP(w, r.WithContext(session.WithCredential(r.Context(), credential)))
				return
			}

			slog.Debug("auth: no session",
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr,
			)

			if redirect {
				http.Redirect(w, r, LoginPath+"?from="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"You are not authorized.","message":"You are not authorized.","action":"Sign in again","code":"AUTH001"}`))
		})
	}
}
