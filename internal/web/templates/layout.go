// Package templates holds the HTML components for the dashboard.
//
// Components are plain templ.Component values so handlers render them the
// same way whether they were generated from .templ files or written by hand.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// page accumulates HTML and keeps the first write error.
type page struct {
	w   io.Writer
	err error
}

func (p *page) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *page) rawf(format string, args ...any) {
	if p.err == nil {
		_, p.err = fmt.Fprintf(p.w, format, args...)
	}
}

// text writes s HTML-escaped.
func (p *page) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *page) render(ctx context.Context, c templ.Component) {
	if p.err == nil && c != nil {
		p.err = c.Render(ctx, p.w)
	}
}

// attr escapes s for use inside a double-quoted attribute.
func attr(s string) string {
	return templ.EscapeString(s)
}

// Nav selects the highlighted entry of the top bar.
type Nav struct {
	Active   string // "vouchers", "import" or ""
	LoggedIn bool
}

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1f2933}
header{display:flex;align-items:center;gap:1rem;padding:.75rem 1.5rem;background:#1f2933;color:#fff}
header a{color:#cbd2d9;text-decoration:none}header a.active{color:#fff;font-weight:600}
header form{margin-left:auto}
main{max-width:960px;margin:1.5rem auto;padding:0 1rem}
table{width:100%;border-collapse:collapse;background:#fff}
th,td{padding:.5rem .75rem;border-bottom:1px solid #e4e7eb;text-align:left}
.alert{padding:.75rem 1rem;border-radius:4px;background:#fde8e8;color:#9b1c1c;margin:.75rem 0}
.alert small{display:block;color:#6b7280}
.notice{padding:.75rem 1rem;border-radius:4px;background:#fef3c7;color:#92400e;margin:.75rem 0}
.success{padding:.75rem 1rem;border-radius:4px;background:#def7ec;color:#03543f;margin:.75rem 0}
.badge{font-size:.75rem;padding:.1rem .4rem;border-radius:3px;background:#e4e7eb}
.badge.expired{background:#fde8e8;color:#9b1c1c}
tr.warn td{background:#fef3c7}
.toolbar{display:flex;gap:.5rem;align-items:center;margin-bottom:1rem}
.pager{display:flex;gap:.75rem;align-items:center;margin-top:1rem}
label{display:block;margin:.75rem 0 .25rem}
`

// Layout wraps body in the page chrome.
func Layout(title string, nav Nav, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>`)
		p.text(title)
		p.raw(` · Voucher Admin</title><style>`)
		p.raw(styles)
		p.raw(`</style></head><body><header><strong>Voucher Admin</strong>`)
		if nav.LoggedIn {
			navLink(p, "/vouchers", "Vouchers", nav.Active == "vouchers")
			navLink(p, "/vouchers/import", "Import CSV", nav.Active == "import")
			p.raw(`<form method="post" action="/logout"><button type="submit">Log out</button></form>`)
		}
		p.raw(`</header><main>`)
		p.render(ctx, body)
		p.raw(`</main></body></html>`)
		return p.err
	})
}

func navLink(p *page, href, label string, active bool) {
	class := ""
	if active {
		class = ` class="active"`
	}
	p.rawf(`<a href="%s"%s>`, attr(href), class)
	p.text(label)
	p.raw(`</a>`)
}

// ErrorAlert renders a user-facing error with its action and support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<div class="alert" role="alert">`)
		p.text(message)
		if action != "" || code != "" {
			p.raw(`<small>`)
			p.text(action)
			if code != "" {
				p.raw(` (`)
				p.text(code)
				p.raw(`)`)
			}
			p.raw(`</small>`)
		}
		p.raw(`</div>`)
		return p.err
	})
}

// Message renders a single alert line. Kind is "alert", "notice" or "success".
func Message(kind, text string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if text == "" {
			return nil
		}
		p := &page{w: w}
		p.rawf(`<div class="%s" role="status">`, attr(kind))
		p.text(text)
		p.raw(`</div>`)
		return p.err
	})
}
