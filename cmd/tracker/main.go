package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dependatrack/internal/client/advisories"
	"dependatrack/internal/client/gharchive"
	"dependatrack/internal/client/packagemeta"
	"dependatrack/internal/config"
	cronrunner "dependatrack/internal/cron"
	"dependatrack/internal/db"
	"dependatrack/internal/handler"
	"dependatrack/internal/logger"
	gormrepository "dependatrack/internal/repository/gorm"
	"dependatrack/internal/service"
)

func main() {
	cfgPath := os.Getenv("DT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("DT_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	archiveHTTP := &http.Client{Timeout: cfg.Archive.Timeout}
	archiveClient := gharchive.NewClient(archiveHTTP, cfg.Archive.BaseURL)
	advisoriesHTTP := &http.Client{Timeout: cfg.Advisories.Timeout}
	advisoriesClient := advisories.NewClient(advisoriesHTTP, cfg.Advisories.BaseURL)
	packagesHTTP := &http.Client{Timeout: cfg.PackageMeta.Timeout}
	packagesClient := packagemeta.NewClient(packagesHTTP, cfg.PackageMeta.BaseURL)

	store := gormrepository.New(dbConn.Gorm)

	advisoryService := &service.AdvisoryService{
		Store:     store,
		Client:    advisoriesClient,
		Logger:    logger,
		PerPage:   cfg.Advisories.PerPage,
		Ecosystem: cfg.Advisories.Ecosystem,
		Severity:  cfg.Advisories.Severity,
	}
	metadataService := &service.MetadataService{
		Store:    store,
		Packages: packagesClient,
		Logger:   logger,
	}
	importer := &service.Importer{
		Store:        store,
		Archive:      archiveClient,
		Metadata:     metadataService,
		Advisories:   advisoryService,
		Logger:       logger,
		Lag:          cfg.Import.Lag,
		CatchupHours: cfg.Import.CatchupHours,
	}
	enrichService := &service.EnrichService{
		Store:      store,
		Packages:   packagesClient,
		HTTPClient: packagesHTTP,
		Logger:     logger,
		Budget:     cfg.Enrich.Budget,
		CallDelay:  cfg.Enrich.CallDelay,
		BatchSize:  cfg.Enrich.BatchSize,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	importHandler := &handler.ImportHandler{Importer: importer, Store: store, Logger: logger}
	importHandler.Register(engine)
	packageHandler := &handler.PackageHandler{Store: store}
	packageHandler.Register(engine)
	advisoryHandler := &handler.AdvisoryHandler{
		Service: advisoryService,
		Enrich:  enrichService,
		Store:   store,
		Logger:  logger,
	}
	advisoryHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		if _, err := cronRunner.Add(cfg.Cron.HourlyImport, func(ctx context.Context) {
			if err := importer.RunScheduled(ctx); err != nil {
				logger.Warn("cron hourly import failed", zap.Error(err))
			}
		}); err != nil {
			logger.Warn("cron register hourly import failed", zap.Error(err))
		}
		if _, err := cronRunner.Add(cfg.Cron.RetryFailed, func(ctx context.Context) {
			if err := importer.RetryFailed(ctx); err != nil {
				logger.Warn("cron retry failed imports failed", zap.Error(err))
			}
		}); err != nil {
			logger.Warn("cron register retry failed", zap.Error(err))
		}
		if _, err := cronRunner.Add(cfg.Cron.AdvisorySync, func(ctx context.Context) {
			result, err := advisoryService.Sync(ctx)
			if err != nil {
				logger.Warn("cron advisory sync failed", zap.Error(err))
				return
			}
			logger.Info("advisory sync complete",
				zap.Int("pages", result.Pages),
				zap.Int("upserted", result.Upserted))
		}); err != nil {
			logger.Warn("cron register advisory sync failed", zap.Error(err))
		}
		if _, err := cronRunner.Add(cfg.Cron.Enrich, func(ctx context.Context) {
			result, err := enrichService.Run(ctx)
			if err != nil {
				logger.Warn("cron enrich failed", zap.Error(err))
				return
			}
			logger.Info("enrich pass complete",
				zap.Int("packages_enriched", result.PackagesEnriched),
				zap.Int("repositories_synced", result.RepositoriesSynced),
				zap.Bool("budget_exhausted", result.BudgetExhausted))
		}); err != nil {
			logger.Warn("cron register enrich failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
