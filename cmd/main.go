package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"storage-service/internal/config"
	"storage-service/internal/database/minio"
	"storage-service/internal/database/postgres"
	"storage-service/internal/database/redis"
	"storage-service/internal/database/sqlite"
	"storage-service/internal/event"
	"storage-service/internal/handlers"
	"storage-service/internal/metrics"
	"storage-service/internal/repository"
	"storage-service/internal/services"
	"storage-service/internal/worker"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func setupLogging(logDir string) (*os.File, error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Recovered from panic: %v\n", r)
		}
	}()

	fmt.Println("Log directory:", logDir)
	err := os.MkdirAll(logDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	if absPath, err := filepath.Abs(logFile); err == nil {
		fmt.Printf("Log file at absolute path: %s\n", absPath)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	slog.SetDefault(slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelInfo})))

	return file, nil
}

func main() {
	root := &cobra.Command{
		Use:           "storage-service",
		Short:         "Crop storage, MSP payment and marketplace service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API, payment consumer and background sweeps",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema and exit",
			RunE:  runMigrate,
		},
	)

	if err := root.Execute(); err != nil {
		log.Fatalf("storage-service: %v", err)
	}
}

func openDatabase(cfg *config.StorageServiceConfig) (*sqlx.DB, error) {
	switch cfg.DBDriver {
	case "sqlite":
		log.Printf("Opening SQLite database at %s", cfg.SQLitePath)
		return sqlite.Open(cfg.SQLitePath)
	case "postgres":
		db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
		if err != nil {
			log.Printf("error connect to database: %s", err)
			postgres.RetryConnectOnFailed(30*time.Second, &db, cfg.PostgresCfg)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := config.New()
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.DBDriver == "postgres" {
		executed := postgres.ExecuteSchema(db)
		fmt.Fprintf(cmd.OutOrStdout(), "executed %d schema statements\n", executed)
		return nil
	}
	// sqlite.Open has already applied the schema
	fmt.Fprintln(cmd.OutOrStdout(), "sqlite schema is up to date")
	return nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.New()

	logFile, err := setupLogging(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Optional infrastructure: each piece degrades to a no-op when unavailable.
	var cache *redis.Client
	if cfg.RedisCfg.Enabled {
		cache, err = redis.NewRedisClient(cfg.RedisCfg.Host, cfg.RedisCfg.Port, cfg.RedisCfg.Password, cfg.RedisCfg.DB)
		if err != nil {
			slog.Error("redis unavailable, msp prices will not be cached", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	var receipts services.ReceiptStore
	var minioClient *minio.MinioClient
	if cfg.MinioCfg.Enabled {
		minioClient, err = minio.NewMinioClient(cfg.MinioCfg)
		if err != nil {
			slog.Error("minio unavailable, payment receipts will not be archived", "error", err)
		} else {
			receipts = minioClient
		}
	}

	var notifier services.Notifier
	var rabbit *event.RabbitMQConnection
	if cfg.RabbitMQCfg.Enabled {
		rabbit, err = event.ConnectRabbitMQ(cfg.RabbitMQCfg)
		if err != nil {
			slog.Error("rabbitmq unavailable, notifications and payment events disabled", "error", err)
		} else {
			defer rabbit.Close()
			notifier = event.NewNotificationPublisher(rabbit)
		}
	}

	// repositories
	farmerRepo := repository.NewFarmerRepository(db)
	facilityRepo := repository.NewStorageFacilityRepository(db)
	requestRepo := repository.NewStorageRequestRepository(db)
	allocationRepo := repository.NewCropAllocationRepository(db)
	orderRepo := repository.NewMarketplaceOrderRepository(db)
	providerRepo := repository.NewLogisticsProviderRepository(db)
	mspRepo := repository.NewCropMSPRepository(db, cache, cfg.MSPCacheTTL)

	// services
	pricingService := services.NewPricingService(mspRepo)
	farmerService := services.NewFarmerService(farmerRepo, allocationRepo)
	allocationService := services.NewCropAllocationService(allocationRepo, farmerRepo)
	facilityService := services.NewFacilityService(facilityRepo, requestRepo, m)
	requestService := services.NewStorageRequestService(requestRepo, facilityRepo, allocationRepo,
		farmerRepo, providerRepo, pricingService, notifier, receipts, m)
	logisticsService := services.NewLogisticsService(providerRepo, requestRepo, facilityRepo)
	marketplaceService := services.NewMarketplaceService(orderRepo, pricingService)
	sweepService := services.NewSweepService(allocationService, facilityService, notifier,
		time.Duration(cfg.WorkerCfg.ExpiryHorizonDays)*24*time.Hour, m)

	if rabbit != nil {
		if err := event.NewPaymentConsumer(rabbit, requestService).Start(ctx); err != nil {
			slog.Error("failed to start payment consumer", "error", err)
		}
	}

	// background sweeps
	var workerWg sync.WaitGroup
	pool := worker.NewWorkingPool("sweeps", cfg.WorkerCfg.PoolSize, cfg.WorkerCfg.QueueSize)
	workerWg.Add(1)
	go pool.Start(ctx, &workerWg)

	scheduler := worker.NewJobScheduler("maintenance", cfg.WorkerCfg.SweepInterval, pool, m)
	scheduler.AddJob("expiry-sweep", sweepService.ExpirySweep)
	scheduler.AddJob("space-audit", sweepService.SpaceAuditSweep)
	workerWg.Add(1)
	go func() {
		defer workerWg.Done()
		scheduler.Run(ctx)
	}()

	app := fiber.New()
	app.Get("/checkhealth", func(c fiber.Ctx) error {
		if err := db.PingContext(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("Storage service database is unavailable")
		}
		if cfg.RabbitMQCfg.Enabled && !rabbit.IsHealthy() {
			return c.Status(fiber.StatusOK).SendString("Storage service is healthy, rabbitmq is unavailable")
		}
		return c.Status(fiber.StatusOK).SendString("Storage service is healthy")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	handlers.NewFarmerHandler(farmerService).Register(app)
	handlers.NewCropAllocationHandler(allocationService).Register(app)
	handlers.NewFacilityHandler(facilityService).Register(app)
	handlers.NewStorageRequestHandler(requestService).Register(app)
	handlers.NewLogisticsHandler(logisticsService).Register(app)
	handlers.NewPricingHandler(pricingService).Register(app)
	handlers.NewMarketplaceHandler(marketplaceService).Register(app)

	go func() {
		<-ctx.Done()
		log.Printf("Shutdown signal received, stopping storage-service")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("error shutting down server: %v", err)
		}
	}()

	log.Printf("Starting storage-service on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		stop()
		workerWg.Wait()
		return fmt.Errorf("failed to start server: %w", err)
	}

	stop()
	workerWg.Wait()
	return nil
}
