package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
)

// Login failure messages.
const (
	MsgBadCredentials = "Incorrect email or password"
	MsgLoginFailed    = "Something went wrong. Please try again."
	MsgMissingToken   = "Token is missing in server response."
	MsgUnreachable    = "Unable to reach the server. Please try again later."
)

// ErrMissingToken is returned when a successful login carries no token.
var ErrMissingToken = errors.New("token is missing in server response")

// LoginInput is the submitted login form.
type LoginInput struct {
	Email    string
	Password string
}

// Validate returns the first problem with the form as a user message.
func (in LoginInput) Validate() error {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return errors.New("Email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return errors.New("Invalid email")
	}
	if in.Password == "" {
		return errors.New("Password is required")
	}
	return nil
}

type loginBody struct {
	Data *struct {
		Token string `json:"token"`
	} `json:"data"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, in LoginInput) (string, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	req, err := c.newJSONRequest(ctx, http.MethodPost, c.endpoint(nil, "login"), "", map[string]string{
		"email":    strings.TrimSpace(in.Email),
		"password": in.Password,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if !resp.OK() {
		fallback := MsgLoginFailed
		if resp.Status == http.StatusBadRequest {
			fallback = MsgBadCredentials
		}
		return "", newAPIError(resp, fallback)
	}

	var b loginBody
	if err := json.Unmarshal(resp.Body, &b); err != nil || b.Data == nil || b.Data.Token == "" {
		return "", ErrMissingToken
	}
	return b.Data.Token, nil
}

// LoginMessage returns the text to show for a failed Login.
func LoginMessage(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, ErrMissingToken):
		return MsgMissingToken
	default:
		return MsgUnreachable
	}
}
