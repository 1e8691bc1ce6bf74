package main

import (
	"context"
	"log"
	"os"
	"time"

	"package-tracker/internal/core/cache"
	"package-tracker/internal/core/config"
	"package-tracker/internal/core/httpclient"
	"package-tracker/internal/core/logger"
	"package-tracker/internal/core/server"
	seedadapter "package-tracker/internal/features/seeding/adapters"
	seedhandler "package-tracker/internal/features/seeding/handler"
	seedservice "package-tracker/internal/features/seeding/service"
	trackingadapter "package-tracker/internal/features/tracking/adapters"
	"package-tracker/internal/features/tracking/domain"
	trackinghandler "package-tracker/internal/features/tracking/handler"
	"package-tracker/internal/features/tracking/ports"
	"package-tracker/internal/features/tracking/resolver"
	trackingservice "package-tracker/internal/features/tracking/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// application bundles the wired services the subcommands share.
type application struct {
	cfg         *config.AppConfig
	trackingSvc *trackingservice.TrackingService
	seedSvc     *seedservice.SeedService
	payload     cache.Cache
}

// @title Package Tracker API
// @version 1.0
// @description Multi-carrier shipment tracking reconciliation service.
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	root := &cobra.Command{
		Use:          "tracker",
		Short:        "Multi-carrier shipment tracking pipeline",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd(), runCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads config, initializes the logger and wires the services.
func bootstrap() (*application, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	client := httpclient.NewClient(30 * time.Second)

	adapters := []ports.CarrierAdapter{
		trackingadapter.NewUPSAdapter(cfg.UPS, client),
		trackingadapter.NewUSPSAdapter(cfg.USPS, client),
		trackingadapter.NewDHLAdapter(cfg.DHL, client),
	}

	var payloadCache cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisAdapter(cfg.RedisURL)
		if err != nil {
			l.Warn("Redis unavailable, payload caching disabled", zap.Error(err))
		} else {
			payloadCache = redisCache
		}
	}

	origin := domain.RawAddress{
		Street:     cfg.Origin.Street,
		City:       cfg.Origin.City,
		State:      cfg.Origin.State,
		PostalCode: cfg.Origin.PostalCode,
	}

	store := trackingadapter.NewSheetStore(cfg.SheetPath)
	trackingSvc := trackingservice.NewTrackingService(
		store,
		adapters,
		resolver.NewEstimateResolver(origin, cfg.EnableEstimateFallback),
		resolver.NewAddressValidator(cfg.EnableAddressValidation),
		payloadCache,
		cfg.WorkerLimit,
	)

	feed := seedadapter.NewShipStationAdapter(cfg.ShipStation, client)
	seedSvc := seedservice.NewSeedService(
		feed,
		store,
		cfg.ShipStation.SeedWindowDays,
		cfg.ShipStation.SeedMaxPages,
		cfg.ShipStation.SeedPageSize,
	)

	return &application{
		cfg:         cfg,
		trackingSvc: trackingSvc,
		seedSvc:     seedSvc,
		payload:     payloadCache,
	}, nil
}

func (a *application) close() {
	if a.payload != nil {
		if err := a.payload.Close(); err != nil {
			logger.Get().Warn("Failed to close cache", zap.Error(err))
		}
	}
	logger.Sync()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the polling scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.close()

			srv := server.New(app.cfg)

			trackingHdl := trackinghandler.NewTrackingHandler(app.trackingSvc)
			seedHdl := seedhandler.NewSeedHandler(app.seedSvc)

			srv.App.Get("/healthz", trackingHdl.Healthz)
			srv.App.Get("/records", trackingHdl.GetRecords)
			srv.App.Get("/records/:number", trackingHdl.GetRecord)
			srv.App.Post("/runs", trackingHdl.TriggerRun)
			srv.App.Post("/seed", seedHdl.TriggerSeed)

			go app.poll(cmd.Context())

			return srv.Run()
		},
	}
}

// poll triggers a full run every PollIntervalHours until the context ends.
func (a *application) poll(ctx context.Context) {
	interval := time.Duration(a.cfg.PollIntervalHours) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Get().Info("Polling scheduler started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.trackingSvc.RunOnce(ctx); err != nil {
				logger.Get().Error("Scheduled run failed", zap.Error(err))
			}
		}
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one polling run and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.close()

			summary, err := app.trackingSvc.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			logger.Get().Info("Run finished",
				zap.Int("processed", summary.Processed),
				zap.Int("updated", summary.Updated),
				zap.Int("unchanged", summary.Unchanged),
				zap.Int("failed", summary.Failed),
			)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Ingest new shipments from the upstream feed and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.close()

			summary, err := app.seedSvc.Ingest(cmd.Context())
			if err != nil {
				return err
			}

			logger.Get().Info("Seed finished",
				zap.Int("found", summary.Found),
				zap.Int("added", summary.Added),
				zap.Int("duplicates", summary.Duplicates),
				zap.Int("unsupported", summary.Unsupported),
				zap.Int("pages", summary.Pages),
			)
			return nil
		},
	}
}
