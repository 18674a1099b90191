// Package fetcher retrieves raw announcements from exchange feeds.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"announcement-radar/internal/domain"
)

// DefaultTimeout bounds a single fetch request.
const DefaultTimeout = 30 * time.Second

// DefaultPageSize is requested from paginated APIs.
const DefaultPageSize = 20

const userAgent = "Mozilla/5.0 (compatible; announcement-radar/1.0)"

// Fetcher returns one page of raw announcements. Pages start at 1 and calls
// are restartable; an exhausted page returns an empty slice.
type Fetcher interface {
	Exchange() string
	Fetch(ctx context.Context, page int) ([]*domain.RawAnnouncement, error)
}

// Option configures the shared HTTP behavior of fetchers.
type Option func(*base)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *base) {
		b.client = client
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.client.Timeout = d
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(b *base) {
		if u != "" {
			b.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithPageSize sets the requested page size.
func WithPageSize(n int) Option {
	return func(b *base) {
		if n > 0 {
			b.pageSize = n
		}
	}
}

type base struct {
	client   *http.Client
	baseURL  string
	pageSize int
}

func newBase(defaultURL string, opts []Option) base {
	b := base{
		client:   &http.Client{Timeout: DefaultTimeout},
		baseURL:  defaultURL,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// get performs a GET and returns the body of a 200 response.
func (b *base) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/html, application/xml;q=0.9, */*;q=0.8")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

func (b *base) getJSON(ctx context.Context, url string, out interface{}) error {
	body, err := b.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// millisTime parses a unix millisecond timestamp given as string or number.
func millisTime(v json.Number) time.Time {
	ms, err := strconv.ParseInt(v.String(), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// valid reports whether a raw record is usable; malformed items are skipped.
func valid(r *domain.RawAnnouncement) bool {
	return strings.TrimSpace(r.Title) != "" && strings.TrimSpace(r.URL) != ""
}

func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
