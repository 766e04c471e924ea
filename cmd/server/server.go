package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/nugl/affiliate-engine/cmd"
	"github.com/nugl/affiliate-engine/internal/api"
	"github.com/nugl/affiliate-engine/internal/config"
	"github.com/nugl/affiliate-engine/internal/models"
	"github.com/nugl/affiliate-engine/internal/registry"
	"github.com/nugl/affiliate-engine/internal/repository"
	"github.com/nugl/affiliate-engine/internal/services"
	"github.com/nugl/affiliate-engine/internal/workers"
)

// RunServerCmd starts the API server and the background refresh
// machinery.
var RunServerCmd = &cobra.Command{
	Use:   "run-server",
	Short: "Starts the affiliate engine API server and background workers.",
	Long: `Initializes the database, loads partner rules, starts the summary
refresh workers and the periodic refresher, then serves the HTTP API.`,
	Run: func(cobraCmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

		db, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{TranslateError: true})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}

		if err := db.AutoMigrate(
			&models.Click{}, &models.Conversion{}, &models.AttributionLink{},
			&models.PartnerSummary{}, &models.ReferralCode{}, &models.Referral{},
		); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}

		reg, err := registry.Load(cfg.Registry.PartnersFile)
		if err != nil {
			log.Fatalf("Failed to load partner registry: %v", err)
		}
		logger.Info("partner registry loaded", "partners", len(reg.Rules()), "file", cfg.Registry.PartnersFile)

		clickRepo := repository.NewClickRepository(db)
		conversionRepo := repository.NewConversionRepository(db)

		refreshCh := make(chan string, cfg.Analytics.BufferSize)

		recorder := services.NewClickRecorder(clickRepo, reg, logger)
		matcher := services.NewConversionMatcher(conversionRepo, clickRepo, reg, logger, refreshCh)
		aggregator := services.NewEarningsAggregator(db, reg, logger)
		dashboard := services.NewDashboardQueryService(db, aggregator, reg, logger)
		referrals := services.NewReferralService(db, logger, cfg.Referral.RewardAmount)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		workers.StartRefreshWorkers(ctx, cfg.Analytics.WorkerCount, refreshCh, aggregator, logger)

		refreshInterval := time.Duration(cfg.Analytics.RefreshIntervalMinutes) * time.Minute
		refresher := workers.NewSummaryRefresher(aggregator, refreshInterval, logger)
		go refresher.Start(ctx)

		router := gin.Default()
		api.SetupRoutes(router, &api.Handlers{
			Recorder:      recorder,
			Matcher:       matcher,
			Dashboard:     dashboard,
			Referrals:     referrals,
			Logger:        logger,
			ActivityLimit: cfg.Dashboard.RecentActivityLimit,
		})

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: router,
		}

		go func() {
			logger.Info("starting server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("shutdown signal received, stopping")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		logger.Info("server stopped")
	},
}

func init() {
	cmd.RootCmd.AddCommand(RunServerCmd)
}
