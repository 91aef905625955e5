package voucher

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageSizes are the page sizes offered in the list footer.
var PageSizes = []int{5, 10, 25, 50}

// Sort columns and orders accepted by the list endpoint.
const (
	SortExpiryDate      = "expiry_date"
	SortDiscountPercent = "discount_percent"
	OrderAsc            = "asc"
	OrderDesc           = "desc"
)

// ListParams selects one page of the voucher list.
type ListParams struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
	Search    string
}

// DefaultListParams is the first page in expiry order.
func DefaultListParams() ListParams {
	return ListParams{
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		SortBy:    SortExpiryDate,
		SortOrder: OrderAsc,
	}
}

// ParseListParams reads list parameters from a query string, replacing
// anything out of range with its default.
func ParseListParams(q url.Values) ListParams {
	p := DefaultListParams()

	if n, err := strconv.Atoi(q.Get("page")); err == nil && n >= 1 {
		p.Page = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n >= 1 {
		p.Limit = min(n, MaxLimit)
	}
	switch s := q.Get("sort_by"); s {
	case SortExpiryDate, SortDiscountPercent:
		p.SortBy = s
	}
	switch o := strings.ToLower(q.Get("sort_order")); o {
	case OrderAsc, OrderDesc:
		p.SortOrder = o
	}
	p.Search = strings.TrimSpace(q.Get("search"))

	return p
}

// Query encodes p for the backend and for page links.
func (p ListParams) Query() url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("sort_by", p.SortBy)
	q.Set("sort_order", p.SortOrder)
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	return q
}

// WithPage returns p pointing at page n.
func (p ListParams) WithPage(n int) ListParams {
	p.Page = max(n, 1)
	return p
}

// WithLimit returns p with a new page size, back on the first page.
func (p ListParams) WithLimit(n int) ListParams {
	p.Limit = n
	p.Page = 1
	return p
}

// ToggleSort returns p sorted by column. Selecting the active column flips
// its order; a new column starts ascending.
func (p ListParams) ToggleSort(column string) ListParams {
	if p.SortBy == column {
		if p.SortOrder == OrderAsc {
			p.SortOrder = OrderDesc
		} else {
			p.SortOrder = OrderAsc
		}
	} else {
		p.SortBy = column
		p.SortOrder = OrderAsc
	}
	p.Page = 1
	return p
}

// TotalPages returns the page count for total items, at least 1.
func (p ListParams) TotalPages(total int) int {
	if total <= 0 || p.Limit <= 0 {
		return 1
	}
	return (total + p.Limit - 1) / p.Limit
}

// Range returns the 1-based item numbers shown on the current page.
// Both are 0 when the page is empty.
func (p ListParams) Range(total int) (from, to int) {
	from = (p.Page-1)*p.Limit + 1
	if total <= 0 || from > total {
		return 0, 0
	}
	return from, min(p.Page*p.Limit, total)
}

// Page is one page of vouchers as returned by the backend.
type Page struct {
	Total    int       `json:"total"`
	Vouchers []Voucher `json:"vouchers"`
}
