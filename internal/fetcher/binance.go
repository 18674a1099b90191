package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"announcement-radar/internal/domain"
)

// DefaultBinanceURL is the Binance CMS base URL.
const DefaultBinanceURL = "https://www.binance.com"

// BinanceFetcher reads the Binance CMS announcement list.
type BinanceFetcher struct {
	base
}

// NewBinanceFetcher creates a new BinanceFetcher.
func NewBinanceFetcher(opts ...Option) *BinanceFetcher {
	return &BinanceFetcher{base: newBase(DefaultBinanceURL, opts)}
}

var _ Fetcher = (*BinanceFetcher)(nil)

// Exchange returns the exchange name.
func (f *BinanceFetcher) Exchange() string { return "binance" }

type binanceResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Catalogs []struct {
			CatalogName string `json:"catalogName"`
			Articles    []struct {
				Code        string      `json:"code"`
				Title       string      `json:"title"`
				ReleaseDate json.Number `json:"releaseDate"`
			} `json:"articles"`
		} `json:"catalogs"`
	} `json:"data"`
}

// Fetch returns one page across all catalogs.
func (f *BinanceFetcher) Fetch(ctx context.Context, page int) ([]*domain.RawAnnouncement, error) {
	url := fmt.Sprintf("%s/bapi/composite/v1/public/cms/article/list/query?type=1&pageNo=%d&pageSize=%d",
		f.baseURL, clampPage(page), f.pageSize)

	var resp binanceResponse
	if err := f.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("binance: %w", err)
	}
	if resp.Code != "000000" {
		return nil, fmt.Errorf("binance: api error %s: %s", resp.Code, resp.Message)
	}

	result := []*domain.RawAnnouncement{}
	for _, catalog := range resp.Data.Catalogs {
		for _, a := range catalog.Articles {
			r := &domain.RawAnnouncement{
				Exchange:    f.Exchange(),
				Title:       strings.TrimSpace(a.Title),
				PublishTime: millisTime(a.ReleaseDate),
				RawType:     catalog.CatalogName,
			}
			if a.Code != "" {
				r.URL = f.baseURL + "/en/support/announcement/" + a.Code
			}
			if valid(r) {
				result = append(result, r)
			}
		}
	}
	return result, nil
}
