// Package catalog is the client of the promotion/catalog service.  The
// service owns promotions, attendances (coupon reservations) and coupon
// ownership; this package only passes calls through, with no local caching.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
)

// Client talks to the catalog REST API.  Every request carries the
// x-api-key credential and is bounded by the client timeout.
type Client struct {
	baseURL     string
	apiKey      string
	promotionID string
	httpClient  *http.Client
}

// New returns a catalog client.  promotionID may be empty, in which case
// the catalog's current promotion is used.
func New(baseURL, apiKey, promotionID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		promotionID: promotionID,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// do sends one request and decodes a JSON answer into out (when non-nil).
// Failures are mapped onto the apperr kinds; the upstream body is only
// used for the wrapped error text, never returned to buyers.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("catalog: marshal request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: %s %s: %v: %w", method, path, err, apperr.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("catalog: read body: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("catalog: %s %s: %w", method, path, apperr.ErrNotFound)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("catalog: %s %s rejected (%d): %w", method, path, resp.StatusCode,
			apperr.Validation("request rejected by the promotion service"))
	case resp.StatusCode >= 400:
		return fmt.Errorf("catalog: %s %s status %d: %w", method, path, resp.StatusCode, apperr.ErrUpstreamUnavailable)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("catalog: decode %s: %v: %w", path, err, apperr.ErrUnexpectedResponse)
	}
	return nil
}

var brazilTime = time.FixedZone("BRT", -3*60*60)

// parseCatalogDate accepts the catalog's "dd/mm/yyyy HH:MM[:SS]" format and
// falls back to RFC 3339.  Unparseable values yield the zero time.
func parseCatalogDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"02/01/2006 15:04:05", "02/01/2006 15:04", "02/01/2006"} {
		if t, err := time.ParseInLocation(layout, s, brazilTime); err == nil {
			return t
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
