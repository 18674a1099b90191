package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"announcement-radar/internal/domain"
)

// DefaultBitgetURL is the Bitget public API base URL.
const DefaultBitgetURL = "https://api.bitget.com"

// DefaultBitgetAnnType is the listing announcement feed.
const DefaultBitgetAnnType = "coin_listings"

// BitgetFetcher reads Bitget v2 public announcements of one type.
type BitgetFetcher struct {
	base
	annType string
}

// NewBitgetFetcher creates a new BitgetFetcher. Empty annType uses DefaultBitgetAnnType.
func NewBitgetFetcher(annType string, opts ...Option) *BitgetFetcher {
	if annType == "" {
		annType = DefaultBitgetAnnType
	}
	return &BitgetFetcher{base: newBase(DefaultBitgetURL, opts), annType: annType}
}

var _ Fetcher = (*BitgetFetcher)(nil)

// Exchange returns the exchange name.
func (f *BitgetFetcher) Exchange() string { return "bitget" }

type bitgetResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		AnnID    string      `json:"annId"`
		AnnTitle string      `json:"annTitle"`
		AnnURL   string      `json:"annUrl"`
		CTime    json.Number `json:"cTime"`
	} `json:"data"`
}

// Fetch returns the announcements of the configured type. The API is not
// paginated; pages after the first are empty.
func (f *BitgetFetcher) Fetch(ctx context.Context, page int) ([]*domain.RawAnnouncement, error) {
	if clampPage(page) > 1 {
		return []*domain.RawAnnouncement{}, nil
	}

	q := url.Values{}
	q.Set("language", "en_US")
	q.Set("annType", f.annType)
	endpoint := f.baseURL + "/api/v2/public/annoucements?" + q.Encode()

	var resp bitgetResponse
	if err := f.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("bitget: %w", err)
	}
	if resp.Code != "00000" {
		return nil, fmt.Errorf("bitget: api error %s: %s", resp.Code, resp.Msg)
	}

	result := []*domain.RawAnnouncement{}
	for _, a := range resp.Data {
		r := &domain.RawAnnouncement{
			Exchange:    f.Exchange(),
			Title:       strings.TrimSpace(a.AnnTitle),
			URL:         strings.TrimSpace(a.AnnURL),
			PublishTime: millisTime(a.CTime),
			RawType:     f.annType,
		}
		if valid(r) {
			result = append(result, r)
		}
	}
	return result, nil
}
