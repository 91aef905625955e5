package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// LoginParams fills the login form. Password is never echoed back.
type LoginParams struct {
	Email string
	From  string
	Error string
}

// LoginPage is the sign-in screen.
func LoginPage(params LoginParams) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<h1>Sign in</h1>`)
		p.render(ctx, Message("alert", params.Error))
		p.raw(`<form method="post" action="/login">`)
		if params.From != "" {
			p.rawf(`<input type="hidden" name="from" value="%s">`, attr(params.From))
		}
		p.raw(`<label for="email">Email</label>`)
		p.rawf(`<input id="email" name="email" type="email" autocomplete="username" value="%s" required>`, attr(params.Email))
		p.raw(`<label for="password">Password</label>`)
		p.raw(`<input id="password" name="password" type="password" autocomplete="current-password" required>`)
		p.raw(`<p><button type="submit">Sign in</button></p></form>`)
		return p.err
	})
	return Layout("Sign in", Nav{}, body)
}
