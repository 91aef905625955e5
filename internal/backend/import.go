package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/JonMunkholm/voucherdash/internal/core"
)

// DefaultImportFileName is used when the selected file has no name.
const DefaultImportFileName = "vouchers.csv"

// ImportVouchers sends file, byte-for-byte as selected, to the ingestion
// endpoint as the single multipart field "file".
//
// A non-2xx reply returns *APIError. A 2xx reply whose body fails
// validation returns an error wrapping core.ErrMalformedResponse. Transport
// errors are returned wrapped and never retried.
func (c *Client) ImportVouchers(ctx context.Context, credential string, file core.RawFile) (*core.IngestionReport, error) {
	if credential == "" {
		return nil, core.ErrUnauthorized
	}

	name := file.Name
	if name == "" {
		name = DefaultImportFileName
	}

	body, contentType, err := multipartFile("file", name, file.Data)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint(nil, "vouchers", "upload-csv"), credential, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	if !resp.OK() {
		return nil, newAPIError(resp, "")
	}

	report, err := ParseIngestionReport(resp.Body)
	if err != nil {
		c.logger.Error("CSV upload response validation failed",
			"status", resp.Status,
			"file", name,
			"error", err,
		)
		return nil, err
	}
	return report, nil
}

// multipartFile encodes data as a one-field multipart/form-data body.
func multipartFile(field, filename string, data []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     field,
		"filename": filename,
	}))
	h.Set("Content-Type", "text/csv")

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
