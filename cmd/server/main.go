package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"payos.backend/internal/config"
	"payos.backend/internal/domain/providers"
	"payos.backend/internal/infrastructure/blockchain"
	"payos.backend/internal/infrastructure/datasources/postgres"
	"payos.backend/internal/infrastructure/jobs"
	"payos.backend/internal/infrastructure/models"
	infraproviders "payos.backend/internal/infrastructure/providers"
	"payos.backend/internal/infrastructure/repositories"
	"payos.backend/internal/interfaces/http/handlers"
	"payos.backend/internal/interfaces/http/middleware"
	"payos.backend/internal/rails"
	"payos.backend/internal/usecases"
	"payos.backend/pkg/crypto"
	"payos.backend/pkg/jwt"
	"payos.backend/pkg/logger"
	"payos.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(cfg config.DatabaseConfig) (*gorm.DB, error) {
		sqlDB, err := postgres.NewConnection(cfg)
		if err != nil {
			return nil, err
		}
		return gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB}), &gorm.Config{})
	}
	migrateDB = func(db *gorm.DB) error {
		return db.AutoMigrate(
			&models.HandlerConfig{},
			&models.ConnectedAccountCredential{},
			&models.PaymentInstrument{},
			&models.HandlerPayment{},
			&models.HandlerRefund{},
			&models.BridgeSettlement{},
		)
	}
	newBalanceReader = func(cfg config.BlockchainConfig) (providers.BalanceReader, error) {
		if cfg.TreasuryAddress == "" {
			return nil, nil
		}
		return blockchain.NewUSDCBalanceReader(blockchain.NewClientFactory(), cfg.RPCURL, cfg.USDCContract, cfg.TreasuryAddress)
	}
	runServer = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	defer logger.Sync()
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		logger.Error(ctx, "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(ctx, "Redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrateDB(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info(ctx, "Connected to database")

	cipher, err := crypto.NewCredentialCipher(cfg.Security.CredentialMasterKey)
	if err != nil {
		return fmt.Errorf("failed to initialize credential cipher: %w", err)
	}
	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	webhookKey, err := middleware.ParseWebhookKey(cfg.Payout.WebhookJWK)
	if err != nil {
		return fmt.Errorf("failed to parse webhook key: %w", err)
	}
	if webhookKey == nil {
		logger.Warn(ctx, "Payout webhook signature verification disabled; handler payment events will be rejected")
	}

	// Repositories
	handlerConfigRepo := repositories.NewHandlerConfigRepository(db)
	credentialRepo := repositories.NewCredentialRepository(db)
	instrumentRepo := repositories.NewInstrumentRepository(db)
	paymentRepo := repositories.NewHandlerPaymentRepository(db)
	settlementRepo := repositories.NewSettlementRepository(db)
	uow := repositories.NewUnitOfWork(db)

	// Providers
	payouts, err := infraproviders.NewCirclePayouts(cfg.Payout.BaseURL, cfg.Payout.APIKey, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize payout provider: %w", err)
	}
	balances, err := newBalanceReader(cfg.Blockchain)
	if err != nil {
		return fmt.Errorf("failed to initialize balance reader: %w", err)
	}
	if balances == nil {
		logger.Warn(ctx, "No treasury address configured; deposit detection disabled")
	}
	connectedClients := infraproviders.NewConnectedClientFactory(credentialRepo, cipher, nil, nil)

	// Usecases and rails
	bridge := usecases.NewSettlementBridgeUsecase(settlementRepo, uow, payouts, balances, usecases.SettlementBridgeConfig{
		FeeBasisPoints:      cfg.Settlement.FeeBasisPoints,
		MinimumUSDC:         cfg.Settlement.MinimumUSDC,
		ExchangeRates:       cfg.Settlement.ExchangeRates,
		QuoteTTL:            cfg.Settlement.QuoteTTL,
		DepositPollInterval: cfg.Settlement.DepositPollInterval,
		DepositTimeout:      cfg.Settlement.DepositTimeout,
	})
	store := rails.Store{Instruments: instrumentRepo, Payments: paymentRepo, UoW: uow}
	registry := rails.NewRegistry(handlerConfigRepo, rails.NewHandlerFactory(store, connectedClients), cfg.Registry.DefaultHandlerID)
	// registered as a plugin so it survives refreshes
	registry.RegisterPlugin(rails.NewSettlementHandler(store, bridge))
	if err := registry.Load(ctx); err != nil {
		return fmt.Errorf("failed to load payment handlers: %w", err)
	}

	// Background jobs
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	refreshJob := jobs.NewRegistryRefreshJob(registry, cfg.Registry.RefreshInterval)
	go refreshJob.Start(jobCtx)

	r := newRouter(routeDeps{
		paymentHandler:        handlers.NewPaymentHandler(registry),
		settlementHandler:     handlers.NewSettlementHandler(bridge),
		webhookHandler:        handlers.NewWebhookHandler(registry),
		adminHandler:          handlers.NewAdminHandler(registry),
		adminAuth:             middleware.AdminAuthMiddleware(jwtService),
		tenantAuth:            middleware.TenantAuthMiddleware(jwtService),
		webhookSignature:      middleware.WebhookSignatureMiddleware(webhookKey),
		handlerEventSignature: middleware.RequireWebhookSignatureMiddleware(webhookKey),
		idempotency:           middleware.IdempotencyMiddleware(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case <-jobCtx.Done():
			return
		}
		logger.Info(ctx, "Shutting down server")
		refreshJob.Stop()
		shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "PayOS backend starting", zap.String("port", cfg.Server.Port))
	if err := runServer(srv); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
