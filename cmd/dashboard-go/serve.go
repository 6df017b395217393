package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"indicadores/dashboard-go/internal/config"
	"indicadores/dashboard-go/internal/db"
	"indicadores/dashboard-go/internal/httpapi"
	"indicadores/dashboard-go/internal/kml"
	"indicadores/dashboard-go/internal/mapview"
	"indicadores/dashboard-go/internal/metrics"
	"indicadores/dashboard-go/internal/overlay"
	"indicadores/dashboard-go/internal/readiness"
	"indicadores/dashboard-go/internal/refresher"
	"indicadores/dashboard-go/internal/sheets"
	"indicadores/dashboard-go/internal/snapshot"
	"indicadores/dashboard-go/internal/toggle"
	"indicadores/dashboard-go/internal/web"
)

var dashboardControls = []string{
	toggle.PuntosCriticos,
	toggle.PuntosIntervenidos,
	toggle.BateriaSocial,
	toggle.ElConsuelo,
}

func newServeCmd() *cobra.Command {
	var sheetFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, sheetFile)
		},
	}
	cmd.Flags().StringVar(&sheetFile, "sheet-file", "", "read activities from a local .xlsx instead of Google Sheets")
	return cmd
}

func serve(parent context.Context, cfg config.Config, sheetFile string) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := httpapi.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mets := metrics.New()

	var pool *db.Pool
	if cfg.DatabaseURL != "" {
		p, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		if err := p.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare database schema")
		}
		pool = p
	}

	var (
		snapQ    snapshot.Queries
		counterQ snapshot.CounterQueries
	)
	if pool != nil {
		q := pool.Queries()
		snapQ, counterQ = q, q
	}

	src, err := newSource(ctx, logger, cfg.Sheets, sheetFile)
	if err != nil {
		logger.Error().Err(err).Msg("activity source unavailable; serving without refreshes")
	}
	sourceID := cfg.Sheets.SpreadsheetID
	if src != nil {
		sourceID = src.ID()
	}

	store := snapshot.New(logger, snapQ, snapshot.Options{SourceID: sourceID})
	if found, err := store.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("could not load persisted snapshot")
	} else if found {
		logger.Info().Msg("seeded dataset from persisted snapshot")
	}

	start, err := cfg.Counter.StartTime()
	if err != nil {
		return err
	}
	counter := snapshot.NewCounter(logger, counterQ, cfg.Counter.Name, cfg.Counter.Code, start, clockwork.NewRealClock())
	if err := counter.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("could not load counter resets")
	}

	var survey sheets.Source
	if s, err := newSource(ctx, logger, cfg.Survey, ""); err != nil {
		logger.Warn().Err(err).Msg("survey source unavailable")
	} else {
		survey = s
	}

	var static fs.FS = web.Static()
	if cfg.StaticDir != "" {
		static = os.DirFS(cfg.StaticDir)
	}

	center := orb.Point{cfg.Map.CenterLng, cfg.Map.CenterLat}
	canvas := mapview.NewCanvas(center, cfg.Map.Zoom)
	holder := &mapview.Holder{}

	sw := toggle.New(logger)
	for _, id := range dashboardControls {
		if err := sw.Register(id, false); err != nil {
			return err
		}
	}

	loader := kml.NewLoader(logger, static)
	points, intervened := cfg.Map.Points()
	manager := overlay.NewManager(logger, holder, sw, mets, overlay.ManagerOptions{
		AutoLoad:      cfg.Map.AutoLoad,
		AutoLoadDelay: cfg.Map.AutoLoadDelay,
		Readiness: readiness.Options{
			Interval:    cfg.Map.ReadyInterval,
			MaxAttempts: cfg.Map.ReadyAttempts,
		},
	},
		overlay.CriticalPoints(points, intervened),
		overlay.ElConsueloOverlay(loader, cfg.Map.ElConsueloKML),
		overlay.BateriaSocialOverlay(loader, cfg.Map.BateriaSocialKML),
	)

	deps := httpapi.Deps{
		Store:     store,
		Counter:   counter,
		Toggles:   sw,
		Overlays:  manager,
		Canvas:    canvas,
		Metrics:   mets,
		Survey:    survey,
		Static:    static,
		MapCenter: center,
		MapZoom:   cfg.Map.Zoom,
	}
	if pool != nil {
		deps.DB = pool
	}

	var worker *refresher.Worker
	if src != nil {
		worker = refresher.New(logger, src, store, refresher.Options{
			Interval:   cfg.Sheets.RefreshInterval,
			RetryDelay: cfg.Sheets.RetryDelay,
			Timeout:    cfg.Sheets.Timeout,
		}, mets)
		deps.Refresher = worker
	}

	h := httpapi.NewHandler(logger, deps)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("dashboard-go listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if worker != nil {
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		// Overlays are optional: a map that never becomes ready leaves the rest of the dashboard up.
		if err := manager.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("overlays disabled")
		}
		return nil
	})

	holder.Publish(canvas)

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("http server error")
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}
