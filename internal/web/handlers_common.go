package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/voucherdash/internal/backend"
	"github.com/JonMunkholm/voucherdash/internal/logging"
	mw "github.com/JonMunkholm/voucherdash/internal/web/middleware"
)

// render writes an HTML component with the given status.
func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
	}
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}

// safeRedirect returns from when it is a local path, else fallback.
// Absolute and protocol-relative URLs are rejected so the login form cannot
// be used as an open redirect.
func safeRedirect(from, fallback string) string {
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.HasPrefix(from, `/\`) {
		return fallback
	}
	u, err := url.Parse(from)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	if u.Path == mw.LoginPath {
		return fallback
	}
	return u.RequestURI()
}

// backendStatus picks the status to answer with after a failed backend
// call: the backend's own 4xx, otherwise 502.
func backendStatus(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}

// Flash messages shown on the list after a redirect, keyed by ?done=.
var flashMessages = map[string]string{
	"created": "Voucher created.",
	"updated": "Voucher updated.",
	"deleted": "Voucher deleted.",
}
