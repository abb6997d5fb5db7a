// Package feed reads the SIH daily dam report.
package feed

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/damsync/internal/fetcher"
	"github.com/sells-group/damsync/internal/model"
)

// ErrUpstreamUnavailable is returned when the report for a date cannot be
// fetched or decoded.
var ErrUpstreamUnavailable = eris.New("feed: upstream unavailable")

// Source fetches the raw report for one calendar date.
type Source interface {
	Fetch(ctx context.Context, date string) ([]model.FeedRecord, error)
}

// Observer receives fetch timings. A nil Observer is ignored.
type Observer interface {
	ObserveFetch(d time.Duration, err error)
}

// Client fetches reports from <baseURL><date>. One HTTP round trip per call.
type Client struct {
	baseURL  string
	fetcher  fetcher.Fetcher
	observer Observer
	log      *zap.Logger
}

// NewClient creates a feed client. baseURL is used verbatim as the prefix of
// the date, so it normally ends with a slash.
func NewClient(baseURL string, f fetcher.Fetcher) *Client {
	return &Client{
		baseURL: baseURL,
		fetcher: f,
		log:     zap.L().With(zap.String("component", "feed")),
	}
}

// WithObserver sets the fetch observer and returns the client.
func (c *Client) WithObserver(o Observer) *Client {
	c.observer = o
	return c
}

// URL returns the report URL for date.
func (c *Client) URL(date string) string {
	return c.baseURL + strings.TrimSpace(date)
}

// Fetch downloads and decodes the report for date (YYYY-MM-DD). Records are
// returned in feed order.
func (c *Client) Fetch(ctx context.Context, date string) ([]model.FeedRecord, error) {
	start := time.Now()
	records, err := c.fetch(ctx, date)
	if c.observer != nil {
		c.observer.ObserveFetch(time.Since(start), err)
	}
	if err != nil {
		c.log.Error("fetch failed", zap.String("date", date), zap.Error(err))
		return nil, err
	}
	c.log.Debug("fetched report",
		zap.String("date", date),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return records, nil
}

func (c *Client) fetch(ctx context.Context, date string) ([]model.FeedRecord, error) {
	url := c.URL(date)
	body, err := c.fetcher.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(ErrUpstreamUnavailable, "feed: fetch %s: %v", date, err)
	}
	defer body.Close() //nolint:errcheck

	records, stats, err := DecodeReport(ctx, body, date)
	if err != nil {
		return nil, eris.Wrapf(ErrUpstreamUnavailable, "feed: decode %s: %v", date, err)
	}
	if stats.BlankKeys > 0 || stats.OtherDates > 0 {
		c.log.Warn("report has suspect rows",
			zap.String("date", date),
			zap.Int("records", stats.Records),
			zap.Int("blank_keys", stats.BlankKeys),
			zap.Int("other_dates", stats.OtherDates),
		)
	}
	return records, nil
}
