package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/damsync/internal/config"
	"github.com/sells-group/damsync/internal/damsync"
	"github.com/sells-group/damsync/internal/feed"
	"github.com/sells-group/damsync/internal/fetcher"
	"github.com/sells-group/damsync/internal/monitoring"
	"github.com/sells-group/damsync/internal/store"
)

// initStore opens the configured store. It does not migrate.
func initStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	switch c.Driver {
	case "sqlite":
		dsn := c.DatabaseURL
		if dsn == "" {
			dsn = "damsync.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.DatabaseURL, &store.PoolConfig{
			MaxConns: c.MaxConns,
			MinConns: c.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
}

// openStore validates the sync settings, then opens and migrates the store.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("sync"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newEngine wires the feed client and sync engine from config. metrics may
// be nil.
func newEngine(c *config.Config, st store.Store, metrics *monitoring.Metrics) *damsync.Engine {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.Feed.UserAgent,
		Timeout:    c.Feed.Timeout(),
		RatePerSec: c.Feed.RatePerSec,
	})
	client := feed.NewClient(c.Feed.BaseURL, f)
	if metrics != nil {
		client = client.WithObserver(metrics)
	}
	var src feed.Source = client
	if c.Feed.BreakerThreshold > 0 {
		src = feed.NewBreaker(client, feed.BreakerConfig{
			Threshold:    c.Feed.BreakerThreshold,
			ResetTimeout: c.Feed.BreakerReset(),
		})
	}
	return damsync.NewEngine(st, src, damsync.Options{
		Pace:     c.Sync.PaceInterval(),
		Location: c.Sync.Location(),
		Metrics:  metrics,
	})
}
