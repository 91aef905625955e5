package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/JonMunkholm/voucherdash/internal/core"
	"github.com/JonMunkholm/voucherdash/internal/voucher"
	"github.com/shopspring/decimal"
)

// Fallback messages when the backend gives none.
const (
	msgListFailed   = "Failed to fetch vouchers"
	msgGetFailed    = "Failed to fetch voucher details"
	msgCreateFailed = "Failed to create voucher. Please try again."
	msgUpdateFailed = "Failed to update voucher. Please try again."
	msgDeleteFailed = "Failed to delete voucher. Please try again."
	msgExportFailed = "Failed to export vouchers."
)

type voucherDTO struct {
	ID              *string          `json:"id"`
	VoucherCode     *string          `json:"voucher_code"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	ExpiryDate      *string          `json:"expiry_date"`
	CreatedAt       *string          `json:"created_at"`
	UpdatedAt       *string          `json:"updated_at"`
}

func (d *voucherDTO) toVoucher() (voucher.Voucher, error) {
	if d == nil || d.ID == nil || d.VoucherCode == nil || d.DiscountPercent == nil ||
		d.ExpiryDate == nil || d.CreatedAt == nil || d.UpdatedAt == nil {
		return voucher.Voucher{}, fmt.Errorf("%w: voucher is incomplete", ErrInvalidResponse)
	}
	return voucher.Voucher{
		ID:              *d.ID,
		VoucherCode:     *d.VoucherCode,
		DiscountPercent: *d.DiscountPercent,
		ExpiryDate:      *d.ExpiryDate,
		CreatedAt:       *d.CreatedAt,
		UpdatedAt:       *d.UpdatedAt,
	}, nil
}

type listBody struct {
	envelope
	Data *struct {
		Total    *int           `json:"total"`
		Vouchers *[]*voucherDTO `json:"vouchers"`
	} `json:"data"`
}

type detailBody struct {
	envelope
	Data *voucherDTO `json:"data"`
}

func requireCredential(credential string) error {
	if credential == "" {
		return core.ErrUnauthorized
	}
	return nil
}

// ListVouchers fetches one page of vouchers.
func (c *Client) ListVouchers(ctx context.Context, credential string, p voucher.ListParams) (voucher.Page, error) {
	if err := requireCredential(credential); err != nil {
		return voucher.Page{}, err
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint(p.Query(), "vouchers"), credential, nil)
	if err != nil {
		return voucher.Page{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return voucher.Page{}, fmt.Errorf("list vouchers: %w", err)
	}
	if !resp.OK() {
		return voucher.Page{}, newAPIError(resp, msgListFailed)
	}

	page, err := parseList(resp.Body)
	if err != nil {
		c.logger.Error("voucher list response validation failed", "error", err)
		return voucher.Page{}, err
	}
	return page, nil
}

func parseList(body []byte) (voucher.Page, error) {
	var b listBody
	if err := json.Unmarshal(body, &b); err != nil {
		return voucher.Page{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if b.Success == nil || b.Message == nil || b.Data == nil || b.Data.Total == nil || b.Data.Vouchers == nil {
		return voucher.Page{}, fmt.Errorf("%w: list envelope is incomplete", ErrInvalidResponse)
	}
	if *b.Data.Total < 0 {
		return voucher.Page{}, fmt.Errorf("%w: negative total", ErrInvalidResponse)
	}

	page := voucher.Page{Total: *b.Data.Total, Vouchers: make([]voucher.Voucher, 0, len(*b.Data.Vouchers))}
	for _, dto := range *b.Data.Vouchers {
		v, err := dto.toVoucher()
		if err != nil {
			return voucher.Page{}, err
		}
		page.Vouchers = append(page.Vouchers, v)
	}
	return page, nil
}

// GetVoucher fetches a single voucher.
func (c *Client) GetVoucher(ctx context.Context, credential, id string) (voucher.Voucher, error) {
	if err := requireCredential(credential); err != nil {
		return voucher.Voucher{}, err
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint(nil, "vouchers", id), credential, nil)
	if err != nil {
		return voucher.Voucher{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return voucher.Voucher{}, fmt.Errorf("get voucher %s: %w", id, err)
	}
	if !resp.OK() {
		return voucher.Voucher{}, newAPIError(resp, msgGetFailed)
	}

	var b detailBody
	if err := json.Unmarshal(resp.Body, &b); err != nil || b.Success == nil || b.Message == nil {
		c.logger.Error("voucher detail response validation failed", "id", id, "error", err)
		return voucher.Voucher{}, fmt.Errorf("%w: detail envelope is incomplete", ErrInvalidResponse)
	}
	v, err := b.Data.toVoucher()
	if err != nil {
		c.logger.Error("voucher detail response validation failed", "id", id, "error", err)
		return voucher.Voucher{}, err
	}
	return v, nil
}

// CreateVoucher creates a voucher from a validated payload.
func (c *Client) CreateVoucher(ctx context.Context, credential string, p voucher.Payload) error {
	return c.mutate(ctx, http.MethodPost, credential, p, msgCreateFailed, "vouchers")
}

// UpdateVoucher replaces the voucher with the given id.
func (c *Client) UpdateVoucher(ctx context.Context, credential, id string, p voucher.Payload) error {
	return c.mutate(ctx, http.MethodPut, credential, p, msgUpdateFailed, "vouchers", id)
}

// DeleteVoucher removes the voucher with the given id.
func (c *Client) DeleteVoucher(ctx context.Context, credential, id string) error {
	return c.mutate(ctx, http.MethodDelete, credential, nil, msgDeleteFailed, "vouchers", id)
}

// mutate sends a write request. A non-2xx status or a body with
// success:false is a failure.
func (c *Client) mutate(ctx context.Context, method, credential string, payload any, fallback string, segments ...string) error {
	if err := requireCredential(credential); err != nil {
		return err
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	endpoint := c.endpoint(nil, segments...)
	var (
		req *http.Request
		err error
	)
	if payload != nil {
		req, err = c.newJSONRequest(ctx, method, endpoint, credential, payload)
	} else {
		req, err = c.newRequest(ctx, method, endpoint, credential, nil)
	}
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", strings.ToLower(method), strings.Join(segments, "/"), err)
	}
	if !resp.OK() || bodyFailed(resp.Body) {
		return newAPIError(resp, fallback)
	}
	return nil
}

// Export is a streaming CSV export. The caller must close Body.
type Export struct {
	Body        io.ReadCloser
	ContentType string
}

// ExportVouchers opens the backend's CSV export. A non-2xx reply returns an
// *APIError whose message is the backend's raw text.
func (c *Client) ExportVouchers(ctx context.Context, credential string) (*Export, error) {
	if err := requireCredential(credential); err != nil {
		return nil, err
	}

	// The body outlives this call, so the timeout is released on Close.
	ctx, cancel := c.callContext(ctx)

	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint(nil, "vouchers", "export"), credential, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("export vouchers: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer resp.Body.Close()
		text, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		msg := strings.TrimSpace(string(text))
		if err != nil || msg == "" {
			msg = msgExportFailed
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "text/csv"
	}
	return &Export{Body: cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, ContentType: ct}, nil
}

// cancelOnClose releases a call context when the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
