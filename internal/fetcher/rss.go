package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"announcement-radar/internal/domain"
)

// httpPrefix is the scheme prefix used to decide whether a GUID is a URL.
const httpPrefix = "http"

// RSSFetcher reads an RSS or Atom announcement feed. Feeds are not paginated.
type RSSFetcher struct {
	base
	exchange string
	feedURL  string
	now      func() time.Time
}

// NewRSSFetcher creates a new RSSFetcher.
func NewRSSFetcher(exchange, feedURL string, opts ...Option) *RSSFetcher {
	return &RSSFetcher{
		base:     newBase("", opts),
		exchange: strings.ToLower(exchange),
		feedURL:  feedURL,
		now:      time.Now,
	}
}

var _ Fetcher = (*RSSFetcher)(nil)

// Exchange returns the exchange name.
func (f *RSSFetcher) Exchange() string { return f.exchange }

// Fetch parses the feed. Items without a usable link are skipped.
func (f *RSSFetcher) Fetch(ctx context.Context, page int) ([]*domain.RawAnnouncement, error) {
	if clampPage(page) > 1 {
		return []*domain.RawAnnouncement{}, nil
	}

	body, err := f.get(ctx, f.feedURL)
	if err != nil {
		return nil, fmt.Errorf("%s rss: %w", f.exchange, err)
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%s rss: parse feed: %w", f.exchange, err)
	}

	result := make([]*domain.RawAnnouncement, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		r := &domain.RawAnnouncement{
			Exchange:    f.exchange,
			Title:       strings.TrimSpace(item.Title),
			URL:         itemLink(item),
			PublishTime: f.itemTime(item),
			RawType:     firstCategory(item.Categories),
		}
		if valid(r) {
			result = append(result, r)
		}
	}
	return result, nil
}

// itemLink prefers the explicit link and falls back to an HTTP GUID.
func itemLink(item *gofeed.Item) string {
	if item.Link != "" {
		return strings.TrimSpace(item.Link)
	}
	if strings.HasPrefix(item.GUID, httpPrefix) {
		return strings.TrimSpace(item.GUID)
	}
	return ""
}

func (f *RSSFetcher) itemTime(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	default:
		return f.now().UTC()
	}
}

func firstCategory(categories []string) string {
	for _, c := range categories {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}
