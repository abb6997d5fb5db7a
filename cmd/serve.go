package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/damsync/internal/api"
	"github.com/sells-group/damsync/internal/config"
	"github.com/sells-group/damsync/internal/damsync"
	"github.com/sells-group/damsync/internal/model"
	"github.com/sells-group/damsync/internal/monitoring"
	"github.com/sells-group/damsync/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API with scheduled syncs",
	Long:  "Serves the catalog and measurement API, runs the cron sync schedule and, when enabled, the sync health checker.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return serve(ctx, cfg, st, monitoring.NewMetrics())
	},
}

// serve runs the API server, the scheduler and the alert checker until ctx
// is cancelled or one of them fails.
func serve(ctx context.Context, c *config.Config, st store.Store, metrics *monitoring.Metrics) error {
	engine := newEngine(c, st, metrics)
	srv := api.NewServer(api.Options{
		Addr:           fmt.Sprintf(":%d", c.Server.Port),
		AllowedOrigins: c.Server.AllowedOrigins,
	}, damsync.NewQuery(st), engine, st)

	g, gctx := errgroup.WithContext(ctx)

	var sched *damsync.Scheduler
	if c.Schedule.Enabled {
		var err error
		sched, err = damsync.NewScheduler(gctx, engine, damsync.Schedule{
			Catalog:     c.Schedule.CatalogCron,
			Measurement: c.Schedule.MeasurementCron,
		}, c.Sync.Location())
		if err != nil {
			return err
		}
	}

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
	})

	if sched != nil {
		g.Go(func() error { return sched.Run(gctx) })
	}

	if c.Monitoring.Enabled {
		checker := monitoring.NewChecker(
			monitoring.NewCollector(st),
			monitoring.NewAlerter(c.Monitoring),
			c.Monitoring,
			watchedKinds(c.Schedule)...,
		)
		g.Go(func() error {
			checker.Run(gctx)
			return nil
		})
	}

	return g.Wait()
}

// watchedKinds returns the sync kinds the in-process schedule runs. With the
// schedule off, syncs are driven from outside and every kind is watched.
func watchedKinds(s config.ScheduleConfig) []model.SyncKind {
	if !s.Enabled {
		return nil
	}
	var kinds []model.SyncKind
	if s.CatalogCron != "" {
		kinds = append(kinds, model.SyncKindCatalog)
	}
	if s.MeasurementCron != "" {
		kinds = append(kinds, model.SyncKindMeasurement)
	}
	return kinds
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
