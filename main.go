// Package main provides the main entry point for the RSVP relay service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/rsvp-relay/app/handlers"
	applogger "github.com/amirphl/rsvp-relay/app/logger"
	"github.com/amirphl/rsvp-relay/app/middleware"
	"github.com/amirphl/rsvp-relay/app/router"
	"github.com/amirphl/rsvp-relay/app/scheduler"
	"github.com/amirphl/rsvp-relay/app/services"
	businessflow "github.com/amirphl/rsvp-relay/business_flow"
	"github.com/amirphl/rsvp-relay/config"
	_ "github.com/amirphl/rsvp-relay/docs"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	logger    *zap.Logger
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := applogger.New(cfg.Logging, cfg.Deployment.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	logger.Info("Starting RSVP relay",
		zap.String("environment", cfg.Deployment.Environment),
		zap.String("version", cfg.Deployment.Version))

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-sigChan
	logger.Info("Shutting down gracefully")

	// Running bulk jobs stop between two sends and resume on the next start
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormCfg := &gorm.Config{}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(
			zap.NewStdLog(logger.Named("gorm")),
			gormlogger.Config{
				SlowThreshold:             cfg.SlowQueryTime,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		)
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(models.AllModels()...); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	logger.Info("Database connection established",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	return db, nil
}

// initializeCache connects to redis when enabled. A nil client means the
// service runs single instance with in-process locks and token revocation.
func initializeCache(cfg config.CacheConfig, logger *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established", zap.Int("db", cfg.RedisDB))
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis to surface connectivity
// issues. The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *zap.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn("Redis healthcheck failed", zap.Error(err))
				}
				c()
			}
		}
	}()
	return cancel
}

func initializeGateway(cfg *config.ProductionConfig, logger *zap.Logger) services.ChatGateway {
	if cfg.Provider.Mock {
		logger.Warn("Using mock chat gateway, no message leaves this process")
		return services.NewMockChatGateway()
	}
	return services.NewChatGateway(&cfg.Provider, logger)
}

// initializeApplication wires repositories, services, flows and handlers
func initializeApplication(cfg *config.ProductionConfig, logger *zap.Logger) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	// Repositories
	eventRepo := repository.NewEventRepository(db)
	instanceRepo := repository.NewInstanceRepository(db)
	contactRepo := repository.NewContactRepository(db)
	chatLogRepo := repository.NewChatLogRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	bulkJobRepo := repository.NewBulkJobRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)
	tx := repository.NewTransactor(db)

	// Conversation locks and token revocation are shared through redis when
	// several instances serve the same provider
	localLocker := services.NewLocalLocker()
	var locker services.KeyedLocker = localLocker
	var revocations services.RevocationStore = services.NewMemoryRevocationStore()
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, time.Minute, logger))
		shared := services.NewRedisLocker(rc, cfg.Cache.RedisPrefix, cfg.Conversation.LockTTL, cfg.Conversation.LockWait)
		locker = services.NewLayeredLocker(localLocker, shared)
		revocations = services.NewRedisRevocationStore(rc, cfg.Cache.RedisPrefix)
	}

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
		revocations,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	logger.Info("Token service initialized",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.String("audience", cfg.JWT.Audience))

	gateway := initializeGateway(cfg, logger)
	mediaStore := services.NewLocalMediaStore(cfg.Media)
	matcher := services.NewKeywordMatcher()
	conv := cfg.Conversation

	// Flows
	dispatcher := businessflow.NewDispatcher(gateway, contactRepo, messageRepo, cfg.Media.PublicBaseURL, logger)
	conversationFlow := businessflow.NewConversationFlow(dispatcher, contactRepo, chatLogRepo, tx, matcher, conv.AllInvitesCount, logger)
	adminFlow := businessflow.NewAdminCommandFlow(dispatcher, contactRepo, chatLogRepo, mediaStore, matcher, cfg.Media.ReportsSubdir, conv.AdminStepDelay, conv.MaxNumberLength, logger)
	deliveryFlow := businessflow.NewDeliveryStatusFlow(messageRepo, contactRepo, locker, logger)
	inboundFlow := businessflow.NewInboundFlow(instanceRepo, eventRepo, contactRepo, chatLogRepo, messageRepo, locker, dispatcher, conversationFlow, adminFlow, deliveryFlow, matcher, conv.MaxNumberLength, logger)
	bulkFlow := businessflow.NewBulkSendFlow(eventRepo, contactRepo, chatLogRepo, bulkJobRepo, tx, dispatcher, locker, conv.BulkDelay, conv.AllInvitesCount, conv.MaxNumberLength, logger)
	eventFlow := businessflow.NewEventFlow(eventRepo, instanceRepo, logger)
	contactFlow := businessflow.NewContactFlow(eventRepo, contactRepo, messageRepo, conv.MaxNumberLength, logger)
	reportFlow := businessflow.NewReportFlow(eventRepo, contactRepo, chatLogRepo)
	authFlow := businessflow.NewOperatorAuthFlow(operatorRepo, tokenService, cfg.JWT.AccessTokenTTL, logger)

	if cfg.Operator.BootstrapUsername != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := authFlow.EnsureBootstrapOperator(ctx, cfg.Operator.BootstrapUsername, cfg.Operator.BootstrapPasswordHash)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to bootstrap operator: %w", err)
		}
	}

	if cfg.Scheduler.BulkRunnerEnabled {
		runnerLogger := logger
		if cfg.Scheduler.LogPath != "" {
			runnerLogger = applogger.NewFileOnly(cfg.Scheduler.LogPath, cfg.Logging)
		}
		runner := scheduler.NewBulkJobRunner(bulkFlow, cfg.Scheduler.BulkPollInterval, 0, runnerLogger)
		bulkFlow.SetNotifier(runner)
		stopFuncs = append(stopFuncs, runner.Start(context.Background()))
	}

	// Handlers
	h := router.Handlers{
		Auth:    handlers.NewAuthHandler(authFlow),
		Webhook: handlers.NewWebhookHandler(inboundFlow, cfg.Security.WebhookSecret),
		Event:   handlers.NewEventHandler(eventFlow),
		Contact: handlers.NewContactHandler(contactFlow),
		Bulk:    handlers.NewBulkHandler(bulkFlow),
		Report:  handlers.NewReportHandler(reportFlow),
	}

	authMiddleware := middleware.NewAuthMiddleware(tokenService)
	appRouter := router.NewFiberRouter(cfg, h, authMiddleware, logger)

	fiberRouter := appRouter.(*router.FiberRouter)
	return &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		logger:    logger,
		stopFuncs: stopFuncs,
	}, nil
}
