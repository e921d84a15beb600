// Package ocr is a client for the document OCR service that extracts
// warranty details from receipts and warranty cards.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/homekeep/internal/model"
)

// ErrUnavailable is returned when the OCR service cannot be reached or
// answers with a server error.
var ErrUnavailable = errors.New("ocr service unavailable")

type Config struct {
	URL    string
	APIKey string
}

type extractRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Content  string `json:"content"`
}

// Result is what the service extracted. Every field is a hint and may be empty.
type Result struct {
	ItemName     string `json:"itemName"`
	Manufacturer string `json:"manufacturer"`
	PurchaseDate string `json:"purchaseDate"`
	ExpiryDate   string `json:"expiryDate"`
	Description  string `json:"description"`
	RawText      string `json:"rawText"`
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient returns nil when no service URL is configured.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		return nil
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Extract sends a document to the service.
func (c *Client) Extract(ctx context.Context, filename string, data []byte) (*Result, error) {
	body, err := json.Marshal(extractRequest{
		Filename: filename,
		MimeType: http.DetectContentType(data),
		Content:  base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ocr request rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// Draft turns extracted hints into a warranty draft. Unparseable dates are
// left empty.
func (r *Result) Draft() model.WarrantyDraft {
	d := model.WarrantyDraft{
		ItemName:     strings.TrimSpace(r.ItemName),
		Manufacturer: strings.TrimSpace(r.Manufacturer),
		Description:  strings.TrimSpace(r.Description),
		RawText:      r.RawText,
	}
	if t, ok := ParseDate(r.PurchaseDate); ok {
		d.PurchaseDate = &t
	}
	if t, ok := ParseDate(r.ExpiryDate); ok {
		d.ExpiryDate = &t
	}
	return d
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"01/02/06",
	"1/2/06",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// ParseDate accepts the date shapes receipts commonly print. Slash dates are
// read month first. The result is midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
