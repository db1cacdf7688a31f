// Package fetch downloads tile images over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdok/muitiles/tile"
)

const (
	DefaultUserAgent = "muitiles/0.1 (LVGL RGB565 bin tile tool)"
	// MinTileSize is the smallest body accepted as a tile; smaller bodies are error pages.
	MinTileSize = 256
)

var (
	ErrTooSmall         = errors.New("response too small, likely an error page")
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Fetcher retrieves the raw bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchError is returned when all attempts failed or the server refused the request outright.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s failed after %d attempt(s) with status %d: %v", e.URL, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Config struct {
	UserAgent string        `default:"muitiles/0.1 (LVGL RGB565 bin tile tool)"`
	Attempts  int           `default:"3" validate:"min=1,max=10"`
	Backoff   time.Duration `default:"700ms"`
	Timeout   time.Duration `default:"20s"`
	MinSize   int           `default:"256" validate:"min=0"`
}

// HTTP fetches with retries. 429 and 5xx responses, transport errors and
// undersized bodies are retried after Backoff*attempt; other statuses fail immediately.
type HTTP struct {
	client *http.Client
	cfg    Config
	logger zerolog.Logger
}

func NewHTTP(cfg Config, logger zerolog.Logger) *HTTP {
	return &HTTP{client: NewOutbound(cfg.Timeout), cfg: cfg, logger: logger}
}

// NewOutbound creates the client used for tile and geocoder requests.
func NewOutbound(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

func (h *HTTP) Fetch(ctx context.Context, url string) ([]byte, error) {
	attempts := max(h.cfg.Attempts, 1)
	fetchErr := &FetchError{URL: url}
	for attempt := 1; attempt <= attempts; attempt++ {
		fetchErr.Attempts = attempt
		body, status, err := h.get(ctx, url)
		fetchErr.StatusCode = status
		switch {
		case err == nil && status == http.StatusOK:
			if len(body) >= h.cfg.MinSize {
				return body, nil
			}
			err = fmt.Errorf("%w: %d bytes", ErrTooSmall, len(body))
		case err == nil && !retryable(status):
			fetchErr.Err = fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
			return nil, fetchErr
		case err == nil:
			err = fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			fetchErr.Err = ctxErr
			return nil, fetchErr
		}
		fetchErr.Err = err
		h.logger.Debug().Str("url", url).Int("attempt", attempt).Err(err).Msg("fetch attempt failed")

		if attempt < attempts {
			if err = sleep(ctx, h.cfg.Backoff*time.Duration(attempt)); err != nil {
				fetchErr.Err = err
				return nil, fetchErr
			}
		}
	}
	return nil, fetchErr
}

func (h *HTTP) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", h.cfg.UserAgent)
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}
	body, err := io.ReadAll(resp.Body)
	return body, resp.StatusCode, err
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// sleep waits d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Politely waits d between requests, honouring cancellation.
func Politely(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

// URL fills a {z}/{x}/{y} template for the tile. {q} is replaced by the quadkey
// of the tile, it stays as is for tiles outside the grid.
func URL(template string, t tile.Index) string {
	replacements := []string{
		"{z}", strconv.Itoa(t.Zoom),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
	}
	if strings.Contains(template, "{q}") {
		if q, err := t.Quadkey(); err == nil {
			replacements = append(replacements, "{q}", q)
		}
	}
	return strings.NewReplacer(replacements...).Replace(template)
}
