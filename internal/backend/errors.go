package backend

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/voucherdash/internal/core"
)

// ErrInvalidResponse is returned when a 2xx body does not have the expected
// shape. Import responses use core.ErrMalformedResponse instead.
var ErrInvalidResponse = errors.New("invalid response from server")

// APIError is a non-2xx reply, or a 2xx reply that reported success:false.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// ServerMessage returns the backend-supplied message, if any.
func (e *APIError) ServerMessage() string {
	return e.Message
}

var _ core.ServerMessager = (*APIError)(nil)

// newAPIError builds an APIError from a reply, preferring the body's
// message over fallback.
func newAPIError(r response, fallback string) *APIError {
	msg := bodyMessage(r.Body)
	if msg == "" {
		msg = fallback
	}
	return &APIError{Status: r.Status, Message: msg}
}

// Message returns the text to show for err: the backend's message when the
// error carries one, fallback otherwise.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, core.ErrUnauthorized) {
		return "You are not authorized."
	}
	if errors.Is(err, ErrInvalidResponse) {
		return "Invalid response from server."
	}
	return fallback
}

// IsUnauthorized reports whether err means the session is missing or was
// rejected by the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == 401 {
		return true
	}
	return errors.Is(err, core.ErrUnauthorized)
}
