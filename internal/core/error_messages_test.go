package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
)

type serverErr struct{ msg string }

func (e serverErr) Error() string         { return "backend returned 400" }
func (e serverErr) ServerMessage() string { return e.msg }

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "wrong extension uses literal message",
			err:         ErrNotCSV,
			wantCode:    "FILE002",
			wantMessage: "Please upload a .csv file.",
		},
		{
			name:        "wrapped unreadable file",
			err:         fmt.Errorf("inspect: %w", ErrUnreadableFile),
			wantCode:    "FILE003",
			wantMessage: "Could not read the file. Please ensure it is a valid CSV file.",
		},
		{
			name:        "empty file",
			err:         ErrEmptyFile,
			wantCode:    "FILE005",
			wantMessage: "The CSV file is empty.",
		},
		{
			name:        "no file",
			err:         ErrNoFile,
			wantCode:    "FILE004",
			wantMessage: "Please select a CSV file to upload.",
		},
		{
			name:        "missing headers keep dynamic message",
			err:         &MissingHeadersError{Missing: []Field{FieldExpiryDate}, Found: []string{"voucher_code", "discount_percent"}},
			wantCode:    "HDR001",
			wantMessage: `Missing required header(s): expiry_date. Found: "voucher_code, discount_percent".`,
		},
		{
			name:        "unauthorized",
			err:         ErrUnauthorized,
			wantCode:    "AUTH001",
			wantMessage: "You are not authorized.",
		},
		{
			name:        "malformed response",
			err:         fmt.Errorf("decode report: %w", ErrMalformedResponse),
			wantCode:    "API001",
			wantMessage: "Failed to parse CSV. Please check your file and try again.",
		},
		{
			name:        "server message preferred",
			err:         serverErr{msg: "Voucher file too big"},
			wantCode:    "API002",
			wantMessage: "Voucher file too big",
		},
		{
			name:        "blank server message falls back",
			err:         serverErr{msg: "  "},
			wantCode:    "API002",
			wantMessage: "Failed to fetch CSV. Please check your file and try again.",
		},
		{
			name:        "transport error",
			err:         &url.Error{Op: "Post", URL: "http://backend", Err: errors.New("dial tcp: no such host")},
			wantCode:    "NET001",
			wantMessage: "Failed to upload CSV. Please check your file and try again.",
		},
		{
			name:        "cancelled by user",
			err:         ErrUploadCancelled,
			wantCode:    "UPL001",
			wantMessage: "Upload was cancelled",
		},
		{
			name:        "busy",
			err:         ErrTooManySubmissions,
			wantCode:    "UPL002",
			wantMessage: "System is busy processing other uploads",
		},
		{
			name:        "flow not found",
			err:         fmt.Errorf("flow x: %w", ErrFlowNotFound),
			wantCode:    "UPL003",
			wantMessage: "Import session not found",
		},
		{
			name:        "deadline beats transport",
			err:         &url.Error{Op: "Post", URL: "http://backend", Err: context.DeadlineExceeded},
			wantCode:    "UPL005",
			wantMessage: "Request timed out",
		},
		{
			name:        "context cancelled",
			err:         context.Canceled,
			wantCode:    "UPL004",
			wantMessage: "Request was cancelled",
		},
		{
			name:        "file too large pattern",
			err:         errors.New("http: request body too large: file too large"),
			wantCode:    "FILE001",
			wantMessage: "File exceeds maximum size limit",
		},
		{
			name:        "rate limit pattern",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "case insensitive pattern",
			err:         errors.New("Dial: CONNECTION REFUSED"),
			wantCode:    "NET001",
			wantMessage: "Failed to upload CSV. Please check your file and try again.",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(ErrNotCSV)
	if !strings.Contains(got, "Please upload a .csv file.") || !strings.Contains(got, "(Code: FILE002)") {
		t.Errorf("FormatUserError() = %q", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("something odd"), false},
		{ErrEmptyFile, true},
		{ErrUnauthorized, true},
	}

	for _, tt := range tests {
		if got := IsUserFacing(tt.err); got != tt.want {
			t.Errorf("IsUserFacing(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
