package templates

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"github.com/JonMunkholm/voucherdash/internal/voucher"
)

// VoucherListParams is everything the list page shows.
type VoucherListParams struct {
	Params voucher.ListParams
	Page   voucher.Page
	Flash  string
	Error  string
	Now    time.Time
}

func listURL(lp voucher.ListParams) string {
	return "/vouchers?" + lp.Query().Encode()
}

// VoucherListPage is the searchable, sortable voucher table.
func VoucherListPage(params VoucherListParams) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		lp := params.Params

		p.raw(`<h1>Vouchers</h1>`)
		p.render(ctx, Message("success", params.Flash))
		p.render(ctx, Message("alert", params.Error))

		p.raw(`<div class="toolbar"><form method="get" action="/vouchers">`)
		p.rawf(`<input type="search" name="search" placeholder="Search by code" value="%s">`, attr(lp.Search))
		p.rawf(`<input type="hidden" name="limit" value="%d">`, lp.Limit)
		p.rawf(`<input type="hidden" name="sort_by" value="%s">`, attr(lp.SortBy))
		p.rawf(`<input type="hidden" name="sort_order" value="%s">`, attr(lp.SortOrder))
		p.raw(`<button type="submit">Search</button></form>`)
		p.raw(`<a href="/vouchers/new">New voucher</a>`)
		p.raw(`<a href="/vouchers/import">Import CSV</a>`)
		p.raw(`<a href="/vouchers/export">Export CSV</a></div>`)

		p.raw(`<table><thead><tr><th>Code</th>`)
		sortHeader(p, lp, voucher.SortDiscountPercent, "Discount")
		sortHeader(p, lp, voucher.SortExpiryDate, "Expiry date")
		p.raw(`<th></th></tr></thead><tbody>`)

		if len(params.Page.Vouchers) == 0 {
			p.raw(`<tr><td colspan="4">No vouchers found.</td></tr>`)
		}
		for _, v := range params.Page.Vouchers {
			p.raw(`<tr><td>`)
			p.text(v.VoucherCode)
			p.raw(`</td><td>`)
			p.text(v.DiscountPercent.String())
			p.raw(`%</td><td>`)
			p.text(voucher.FromVoucher(v).ExpiryDate)
			if v.Expired(params.Now) {
				p.raw(` <span class="badge expired">Expired</span>`)
			}
			p.raw(`</td><td>`)
			id := url.PathEscape(v.ID)
			p.rawf(`<a href="/vouchers/%s/edit">Edit</a> `, attr(id))
			p.rawf(`<form method="post" action="/vouchers/%s/delete" style="display:inline" onsubmit="return confirm('Delete this voucher?')">`, attr(id))
			p.raw(`<button type="submit">Delete</button></form></td></tr>`)
		}
		p.raw(`</tbody></table>`)

		pager(p, lp, params.Page.Total)
		return p.err
	})
	return Layout("Vouchers", Nav{Active: "vouchers", LoggedIn: true}, body)
}

func sortHeader(p *page, lp voucher.ListParams, column, label string) {
	arrow := ""
	if lp.SortBy == column {
		arrow = " ▲"
		if lp.SortOrder == voucher.OrderDesc {
			arrow = " ▼"
		}
	}
	p.rawf(`<th><a href="%s">`, attr(listURL(lp.ToggleSort(column))))
	p.text(label + arrow)
	p.raw(`</a></th>`)
}

func pager(p *page, lp voucher.ListParams, total int) {
	from, to := lp.Range(total)
	pages := lp.TotalPages(total)

	p.raw(`<div class="pager">`)
	p.rawf(`<span>Showing %d–%d of %s</span>`, from, to, humanize.Comma(int64(total)))

	p.raw(`<span>Rows per page:`)
	for _, size := range voucher.PageSizes {
		if size == lp.Limit {
			p.rawf(` <strong>%d</strong>`, size)
			continue
		}
		p.rawf(` <a href="%s">%d</a>`, attr(listURL(lp.WithLimit(size))), size)
	}
	p.raw(`</span>`)

	if lp.Page > 1 {
		p.rawf(`<a href="%s">Previous</a>`, attr(listURL(lp.WithPage(lp.Page-1))))
	}
	p.raw(`<span>Page ` + strconv.Itoa(lp.Page) + ` of ` + strconv.Itoa(pages) + `</span>`)
	if lp.Page < pages {
		p.rawf(`<a href="%s">Next</a>`, attr(listURL(lp.WithPage(lp.Page+1))))
	}
	p.raw(`</div>`)
}

// VoucherFormParams fills the create and edit forms.
type VoucherFormParams struct {
	Title  string
	Action string
	Submit string
	Input  voucher.FormInput
	// Field names the input the Error belongs to, if any.
	Field string
	Error string
}

// VoucherFormPage renders the create/edit form.
func VoucherFormPage(params VoucherFormParams) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<h1>`)
		p.text(params.Title)
		p.raw(`</h1>`)
		p.render(ctx, Message("alert", params.Error))

		p.rawf(`<form method="post" action="%s">`, attr(params.Action))
		formField(p, params, "voucher_code", "Voucher code", "text", params.Input.VoucherCode,
			`maxlength="`+strconv.Itoa(voucher.MaxCodeLength)+`" required`)
		formField(p, params, "discount_percent", "Discount (%)", "number", params.Input.DiscountPercent,
			`step="0.01" min="0.01" max="100" required`)
		formField(p, params, "expiry_date", "Expiry date", "date", params.Input.ExpiryDate, `required`)
		p.raw(`<p><button type="submit">`)
		p.text(params.Submit)
		p.raw(`</button> <a href="/vouchers">Cancel</a></p></form>`)
		return p.err
	})
	return Layout(params.Title, Nav{Active: "vouchers", LoggedIn: true}, body)
}

func formField(p *page, params VoucherFormParams, name, label, typ, value, extra string) {
	p.rawf(`<label for="%s">`, name)
	p.text(label)
	p.raw(`</label>`)
	invalid := ""
	if params.Field == name {
		invalid = ` aria-invalid="true" autofocus`
	}
	p.rawf(`<input id="%s" name="%s" type="%s" value="%s" %s%s>`, name, name, typ, attr(value), extra, invalid)
}
