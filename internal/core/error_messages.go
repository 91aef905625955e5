package core

// error_messages.go maps technical errors to user-facing messages.
//
// Every message carries a code that users can quote to support:
//
//	FILE001 - File too large           FILE004 - No file selected
//	FILE002 - Not a .csv file          FILE005 - Empty file
//	FILE003 - Unreadable encoding
//	HDR001  - Missing required header(s) (message lists them)
//	AUTH001 - Not authorized (no session credential)
//	API001  - Backend response failed schema validation
//	API002  - Backend rejected the request (server message when present)
//	NET001  - Backend unreachable
//	UPL001  - Upload cancelled         UPL004 - Request cancelled
//	UPL002  - System busy              UPL005 - Request timed out
//	UPL003  - Import session not found
//	RATE001 - Rate limited
//	ERR000  - Unknown error
//
// Typed and sentinel errors are matched first with errors.Is/As. Anything
// else falls back to case-insensitive substring patterns; the first match
// wins, so specific patterns come before general ones.

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrUnauthorized is returned when no session credential is available.
	ErrUnauthorized = errors.New("not authorized")

	// ErrMalformedResponse is returned when a 2xx backend body does not have
	// the expected shape.
	ErrMalformedResponse = errors.New("malformed backend response")

	// ErrFlowNotFound is returned for unknown or foreign import flows.
	ErrFlowNotFound = errors.New("upload not found")

	// ErrUploadCancelled is returned when the user cancels an in-flight submission.
	ErrUploadCancelled = errors.New("upload cancelled")
)

// ServerMessager is implemented by errors that carry a message written by
// the backend for end users.
type ServerMessager interface {
	ServerMessage() string
}

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgNotCSV = UserMessage{
		Message: "Please upload a .csv file.",
		Action:  "Choose a file with a .csv extension",
		Code:    "FILE002",
	}
	msgUnreadable = UserMessage{
		Message: "Could not read the file. Please ensure it is a valid CSV file.",
		Action:  "Save the file as UTF-8 encoded CSV",
		Code:    "FILE003",
	}
	msgNoFile = UserMessage{
		Message: "Please select a CSV file to upload.",
		Action:  "Choose a file before uploading",
		Code:    "FILE004",
	}
	msgEmpty = UserMessage{
		Message: "The CSV file is empty.",
		Action:  "Upload a file with a header and data rows",
		Code:    "FILE005",
	}
	msgUnauthorized = UserMessage{
		Message: "You are not authorized.",
		Action:  "Sign in again",
		Code:    "AUTH001",
	}
	msgMalformed = UserMessage{
		Message: "Failed to parse CSV. Please check your file and try again.",
		Action:  "Try again; contact support if it keeps happening",
		Code:    "API001",
	}
	msgRejected = UserMessage{
		Message: "Failed to fetch CSV. Please check your file and try again.",
		Action:  "Review the file and try again",
		Code:    "API002",
	}
	msgUnreachable = UserMessage{
		Message: "Failed to upload CSV. Please check your file and try again.",
		Action:  "Check your connection and try again",
		Code:    "NET001",
	}
	msgCancelled = UserMessage{
		Message: "Upload was cancelled",
		Action:  "Start a new upload when ready",
		Code:    "UPL001",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgFlowNotFound = UserMessage{
		Message: "Import session not found",
		Action:  "The import may have expired. Please select the file again",
		Code:    "UPL003",
	}
	msgRequestCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "UPL005",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catches errors that lost their type on the way, e.g. ones
// rebuilt from strings in history records.
var errorPatterns = []errorPattern{
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{pattern: "not a csv file", msg: msgNotCSV},
	{pattern: "encoding error", msg: msgUnreadable},
	{pattern: "no file provided", msg: msgNoFile},
	{pattern: "empty file", msg: msgEmpty},
	{pattern: "upload cancelled", msg: msgCancelled},
	{pattern: "too many concurrent uploads", msg: msgBusy},
	{pattern: "upload not found", msg: msgFlowNotFound},
	{pattern: "context canceled", msg: msgRequestCancelled},
	{pattern: "context deadline exceeded", msg: msgTimeout},
	{pattern: "connection refused", msg: msgUnreachable},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
// Support staff should check application logs for the technical error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var missing *MissingHeadersError
	if errors.As(err, &missing) {
		return UserMessage{
			Message: missing.Error(),
			Action:  "Add the missing columns to the first row of the file",
			Code:    "HDR001",
		}
	}

	switch {
	case errors.Is(err, ErrNotCSV):
		return msgNotCSV
	case errors.Is(err, ErrUnreadableFile):
		return msgUnreadable
	case errors.Is(err, ErrEmptyFile):
		return msgEmpty
	case errors.Is(err, ErrNoFile):
		return msgNoFile
	case errors.Is(err, ErrUnauthorized):
		return msgUnauthorized
	case errors.Is(err, ErrMalformedResponse):
		return msgMalformed
	case errors.Is(err, ErrUploadCancelled):
		return msgCancelled
	case errors.Is(err, ErrTooManySubmissions):
		return msgBusy
	case errors.Is(err, ErrFlowNotFound):
		return msgFlowNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	case errors.Is(err, context.Canceled):
		return msgRequestCancelled
	}

	var sm ServerMessager
	if errors.As(err, &sm) {
		msg := msgRejected
		if text := strings.TrimSpace(sm.ServerMessage()); text != "" {
			msg.Message = text
		}
		return msg
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return msgUnreachable
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
