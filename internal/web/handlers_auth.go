package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/voucherdash/internal/backend"
	"github.com/JonMunkholm/voucherdash/internal/logging"
	"github.com/JonMunkholm/voucherdash/internal/session"
	"github.com/JonMunkholm/voucherdash/internal/web/templates"
)

const homePath = "/vouchers"

// handleLoginPage renders the login form, or sends signed-in users home.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := session.FromRequest(r); ok {
		http.Redirect(w, r, homePath, http.StatusSeeOther)
		return
	}
	render(w, r, http.StatusOK, templates.LoginPage(templates.LoginParams{
		From: safeRedirect(r.URL.Query().Get("from"), ""),
	}))
}

// handleLogin exchanges email and password for a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	in := backend.LoginInput{
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}
	view := templates.LoginParams{
		Email: in.Email,
		From:  safeRedirect(r.PostForm.Get("from"), ""),
	}

	if err := in.Validate(); err != nil {
		view.Error = err.Error()
		render(w, r, http.StatusUnprocessableEntity, templates.LoginPage(view))
		return
	}

	token, err := s.api.Login(r.Context(), in)
	if err != nil {
		logging.FromContext(r.Context()).Warn("login failed", "error", err)

		view.Error = backend.LoginMessage(err)
		status := http.StatusBadGateway
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			status = http.StatusUnauthorized
		}
		render(w, r, status, templates.LoginPage(view))
		return
	}

	s.sessions.Set(w, token)
	logging.FromContext(r.Context()).Info("login succeeded", "session", session.Fingerprint(token)[:12])
	http.Redirect(w, r, safeRedirect(view.From, homePath), http.StatusSeeOther)
}

// handleLogout drops the session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
