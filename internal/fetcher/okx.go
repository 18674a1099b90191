package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"announcement-radar/internal/domain"
)

// DefaultOKXURL is the OKX API base URL.
const DefaultOKXURL = "https://www.okx.com"

// DefaultOKXAnnType is the new listings announcement feed.
const DefaultOKXAnnType = "announcements-new-listings"

// OKXFetcher reads OKX v5 support announcements of one type.
type OKXFetcher struct {
	base
	annType string
}

// NewOKXFetcher creates a new OKXFetcher. Empty annType uses DefaultOKXAnnType.
func NewOKXFetcher(annType string, opts ...Option) *OKXFetcher {
	if annType == "" {
		annType = DefaultOKXAnnType
	}
	return &OKXFetcher{base: newBase(DefaultOKXURL, opts), annType: annType}
}

var _ Fetcher = (*OKXFetcher)(nil)

// Exchange returns the exchange name.
func (f *OKXFetcher) Exchange() string { return "okx" }

type okxResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Details []struct {
			AnnType string      `json:"annType"`
			PTime   json.Number `json:"pTime"`
			Title   string      `json:"title"`
			URL     string      `json:"url"`
		} `json:"details"`
		TotalPage string `json:"totalPage"`
	} `json:"data"`
}

// Fetch returns one page of announcements.
func (f *OKXFetcher) Fetch(ctx context.Context, page int) ([]*domain.RawAnnouncement, error) {
	q := url.Values{}
	q.Set("annType", f.annType)
	q.Set("page", strconv.Itoa(clampPage(page)))
	endpoint := f.baseURL + "/api/v5/support/announcements?" + q.Encode()

	var resp okxResponse
	if err := f.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("okx: %w", err)
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx: api error %s: %s", resp.Code, resp.Msg)
	}

	result := []*domain.RawAnnouncement{}
	for _, d := range resp.Data {
		for _, a := range d.Details {
			r := &domain.RawAnnouncement{
				Exchange:    f.Exchange(),
				Title:       strings.TrimSpace(a.Title),
				URL:         strings.TrimSpace(a.URL),
				PublishTime: millisTime(a.PTime),
				RawType:     a.AnnType,
			}
			if valid(r) {
				result = append(result, r)
			}
		}
	}
	return result, nil
}
