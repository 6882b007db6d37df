package nextcrm

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

// MinSearchLength is the shortest query GlobalSearch sends.
const MinSearchLength = 2

func (c *Client) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var out DashboardStats
	if err := c.call(ctx, http.MethodGet, PathDashboardStats, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GlobalSearch searches contracts, counterparties, commodities and traders.
// Queries shorter than MinSearchLength fail locally with ErrSearchQuery,
// matching the backend's own check.
func (c *Client) GlobalSearch(ctx context.Context, q string) (*GlobalSearchResults, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinSearchLength {
		return nil, ErrSearchQuery
	}
	var out GlobalSearchResults
	if err := c.call(ctx, http.MethodGet, PathSearch, url.Values{"q": {q}}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
