package main

import (
	"context"
	"log"

	"localmart/config"
	"localmart/internal/domain/booking"
	"localmart/internal/domain/product"
	"localmart/internal/handler"
	"localmart/internal/joblock"
	"localmart/internal/jobs"
	"localmart/internal/notify"
	localredis "localmart/internal/redis"
	"localmart/internal/repository"
	"localmart/internal/server"
	"localmart/internal/services"
	"localmart/pkg/database"
	"localmart/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.IsProduction() {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)
	defer l.Logger.Sync()

	// Database
	database.Connect(cfg)
	if err := database.DB.AutoMigrate(
		&booking.Booking{},
		&product.Product{},
	); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	// Redis backs the job lock, the rate limiter and cross-instance fan-out.
	redisClient := localredis.NewClient(localredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Realtime delivery
	registry := notify.NewRegistry(cfg.Realtime.MaxConnectionsPerUser, cfg.Realtime.MaxTotalConnections)
	bridge := notify.NewRedisBridge(redisClient, registry, l)
	go bridge.Run(ctx)
	broadcaster := notify.NewBroadcaster(registry, bridge, l)

	// Domain services
	bookingRepo := repository.NewBookingRepository(database.DB)
	productRepo := repository.NewProductRepository(database.DB)
	bookingService := services.NewBookingService(bookingRepo, broadcaster, l)

	// Background jobs. Fail-open is forced off in production: losing mutual
	// exclusion there is worse than a skipped sweep.
	failOpen := cfg.Jobs.LockFailOpen
	if cfg.IsProduction() {
		failOpen = false
	}
	lockManager := joblock.NewManager(joblock.NewRedisStore(redisClient), joblock.Options{
		Prefix:     cfg.Jobs.LockPrefix,
		DefaultTTL: cfg.Jobs.LockTTL,
		PerJobTTL:  cfg.Jobs.LockTTLPerJob,
		FailOpen:   failOpen,
		Disabled:   cfg.Jobs.LockDisabled,
	}, l)

	scheduler, err := jobs.NewScheduler(lockManager, cfg.Jobs.CronTimezone, l)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := jobs.RegisterAll(scheduler, cfg, bookingService, productRepo, broadcaster, l); err != nil {
		log.Fatalf("Failed to register jobs: %v", err)
	}
	scheduler.Start(ctx)

	// HTTP
	limiter := localredis.NewRateLimiter(redisClient, localredis.DefaultRateLimitConfig())
	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Booking: handler.NewBookingHandler(bookingService),
		Events:  notify.NewHandler(registry, cfg.Realtime.HeartbeatInterval, l),
	}, limiter, redisClient)

	err = srv.Start()

	// Ordered shutdown: stop the schedule, cut the streams, then everything
	// hanging off the context.
	scheduler.Stop()
	registry.CloseAll()
	cancel()

	if err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	l.Infof("Server stopped")
}
