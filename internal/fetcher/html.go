package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"announcement-radar/internal/domain"
)

// PagePlaceholder in an HTML list URL is replaced by the page number.
const PagePlaceholder = "{page}"

// HTMLSelectors locate announcements on a list page.
type HTMLSelectors struct {
	Item  string // one element per announcement
	Title string // relative to Item; empty uses the item text
	Link  string // relative to Item; empty uses the item itself
	Time  string // relative to Item; optional
	// TimeLayout parses the time element's datetime attribute or text.
	// Empty tries RFC3339 then unix milliseconds.
	TimeLayout string
}

// HTMLFetcher scrapes an HTML announcement list with CSS selectors.
type HTMLFetcher struct {
	base
	exchange  string
	listURL   string
	selectors HTMLSelectors
	now       func() time.Time
}

// NewHTMLFetcher creates a new HTMLFetcher. Without PagePlaceholder in listURL
// only page 1 is fetched.
func NewHTMLFetcher(exchange, listURL string, selectors HTMLSelectors, opts ...Option) *HTMLFetcher {
	return &HTMLFetcher{
		base:      newBase("", opts),
		exchange:  strings.ToLower(exchange),
		listURL:   listURL,
		selectors: selectors,
		now:       time.Now,
	}
}

var _ Fetcher = (*HTMLFetcher)(nil)

// Exchange returns the exchange name.
func (f *HTMLFetcher) Exchange() string { return f.exchange }

// Fetch scrapes one list page.
func (f *HTMLFetcher) Fetch(ctx context.Context, page int) ([]*domain.RawAnnouncement, error) {
	page = clampPage(page)
	pageURL := f.listURL
	if strings.Contains(pageURL, PagePlaceholder) {
		pageURL = strings.ReplaceAll(pageURL, PagePlaceholder, strconv.Itoa(page))
	} else if page > 1 {
		return []*domain.RawAnnouncement{}, nil
	}

	baseURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%s html: parse list url: %w", f.exchange, err)
	}

	body, err := f.get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%s html: %w", f.exchange, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s html: parse document: %w", f.exchange, err)
	}

	result := []*domain.RawAnnouncement{}
	doc.Find(f.selectors.Item).Each(func(_ int, s *goquery.Selection) {
		r := &domain.RawAnnouncement{
			Exchange:    f.exchange,
			Title:       f.title(s),
			URL:         resolveLink(baseURL, f.link(s)),
			PublishTime: f.publishTime(s),
		}
		if valid(r) {
			result = append(result, r)
		}
	})
	return result, nil
}

func (f *HTMLFetcher) title(s *goquery.Selection) string {
	if f.selectors.Title != "" {
		s = s.Find(f.selectors.Title).First()
	}
	return strings.Join(strings.Fields(s.Text()), " ")
}

func (f *HTMLFetcher) link(s *goquery.Selection) string {
	if f.selectors.Link != "" {
		s = s.Find(f.selectors.Link).First()
	}
	href, _ := s.Attr("href")
	return strings.TrimSpace(href)
}

func (f *HTMLFetcher) publishTime(s *goquery.Selection) time.Time {
	if f.selectors.Time == "" {
		return f.now().UTC()
	}
	el := s.Find(f.selectors.Time).First()
	value, ok := el.Attr("datetime")
	if !ok {
		value = el.Text()
	}
	if t, ok := parseTime(strings.TrimSpace(value), f.selectors.TimeLayout); ok {
		return t
	}
	return f.now().UTC()
}

func parseTime(value, layout string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if layout != "" {
		t, err := time.Parse(layout, value)
		return t.UTC(), err == nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

func resolveLink(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
