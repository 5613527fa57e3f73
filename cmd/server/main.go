package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zedpay/dpo-payment-service/internal/adapters/cache"
	"github.com/zedpay/dpo-payment-service/internal/adapters/dpo"
	"github.com/zedpay/dpo-payment-service/internal/adapters/postgres"
	"github.com/zedpay/dpo-payment-service/internal/adapters/secrets"
	"github.com/zedpay/dpo-payment-service/internal/config"
	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
	countryHandler "github.com/zedpay/dpo-payment-service/internal/handlers/country"
	cronHandler "github.com/zedpay/dpo-payment-service/internal/handlers/cron"
	paymentHandler "github.com/zedpay/dpo-payment-service/internal/handlers/payment"
	subscriptionHandler "github.com/zedpay/dpo-payment-service/internal/handlers/subscription"
	"github.com/zedpay/dpo-payment-service/internal/middleware"
	"github.com/zedpay/dpo-payment-service/internal/services/country"
	paymentService "github.com/zedpay/dpo-payment-service/internal/services/payment"
	subscriptionService "github.com/zedpay/dpo-payment-service/internal/services/subscription"
	ratelimit "github.com/zedpay/dpo-payment-service/pkg/middleware"
	"github.com/zedpay/dpo-payment-service/pkg/observability"
	"github.com/zedpay/dpo-payment-service/pkg/security"
	"github.com/zedpay/dpo-payment-service/pkg/timeutil"
)

func main() {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	zapLogger := initLogger(cfg.Logger)
	defer zapLogger.Sync()
	logger := security.NewZapLogger(zapLogger)

	logger.Info("starting dpo payment service",
		ports.String("version", "0.1.0"),
		ports.Bool("test_mode", cfg.Gateway.TestMode))

	ctx := context.Background()

	if err := resolveCompanyToken(ctx, cfg, logger); err != nil {
		zapLogger.Fatal("failed to resolve gateway credential", zap.Error(err))
	}

	pool, err := initDatabase(ctx, cfg)
	if err != nil {
		zapLogger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("database connection established",
		ports.String("database", cfg.Database.Database))

	db := postgres.NewDBExecutor(pool)
	txnRepo := postgres.NewTransactionRepository(db)
	subRepo := postgres.NewSubscriptionRepository(db)
	logRepo := postgres.NewPaymentLogRepository(db)

	var gatewayCache ports.Cache
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			zapLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisCache.Close()
		gatewayCache = redisCache
		logger.Info("redis cache enabled")
	}

	clock := timeutil.RealClock{}
	gateway := dpo.NewClient(&dpo.Config{
		CompanyToken:      cfg.Gateway.CompanyToken,
		ServiceType:       cfg.Gateway.ServiceType,
		APIURL:            cfg.Gateway.APIURL,
		TestAPIURL:        cfg.Gateway.TestAPIURL,
		TestMode:          cfg.Gateway.TestMode,
		Timeout:           cfg.Gateway.Timeout,
		RedirectURL:       cfg.Gateway.RedirectURL,
		BackURL:           cfg.Gateway.BackURL,
		PTL:               cfg.Gateway.PTL,
		ChargeImmediately: cfg.Gateway.ChargeImmediately,
		BalanceCacheTTL:   cfg.Redis.BalanceCacheTTL,
	}, logger, clock, gatewayCache)

	countries := country.NewService()
	payments := paymentService.NewService(db, txnRepo, logRepo, gateway, countries, logger, clock)
	subscriptions := subscriptionService.NewService(db, subRepo, txnRepo, payments, gateway, countries,
		subscriptionService.Config{
			MaxRetryAttempts: cfg.Recurring.MaxRetryAttempts,
			DefaultBatchSize: cfg.Recurring.BatchSize,
		}, logger, clock)

	payHandler := paymentHandler.NewHandler(payments, countries,
		cfg.Gateway.SuccessURL, cfg.Gateway.FailureURL, logger)
	subHandler := subscriptionHandler.NewHandler(subscriptions, logger)
	ctryHandler := countryHandler.NewHandler(countries, logger)
	billingHandler := cronHandler.NewBillingHandler(subscriptions, subRepo, txnRepo, logger,
		cfg.Cron.Secret, clock)
	callbackAuth := middleware.NewCallbackAuth(cfg.Gateway.AllowedCallbackIPs, logger)

	mux := http.NewServeMux()
	route := func(pattern, name string, h http.HandlerFunc) {
		mux.Handle(pattern, observability.InstrumentHandler(name, h))
	}

	route("POST /api/v1/payments", "create_payment", payHandler.Create)
	route("GET /api/v1/payments/{reference}/status", "payment_status", payHandler.Status)
	route("POST /api/v1/payments/{reference}/refund", "refund_payment", payHandler.Refund)
	route("POST /api/v1/payments/{reference}/cancel", "cancel_payment", payHandler.Cancel)
	route("POST /api/v1/payments/notify", "payment_notify", callbackAuth.Middleware(payHandler.Notify))
	route("GET /api/v1/payments/callback", "payment_callback", payHandler.Callback)
	route("GET /api/v1/balance", "balance", payHandler.Balance)

	route("POST /api/v1/subscriptions", "create_subscription", subHandler.Create)
	route("GET /api/v1/subscriptions/{reference}", "subscription_status", subHandler.Get)
	route("PUT /api/v1/subscriptions/{reference}", "update_subscription", subHandler.Update)
	route("POST /api/v1/subscriptions/{reference}/cancel", "cancel_subscription", subHandler.Cancel)
	route("POST /api/v1/subscriptions/{reference}/pause", "pause_subscription", subHandler.Pause)
	route("POST /api/v1/subscriptions/{reference}/resume", "resume_subscription", subHandler.Resume)

	route("GET /api/v1/countries", "list_countries", ctryHandler.List)
	route("GET /api/v1/countries/{code}", "get_country", ctryHandler.Get)

	route("POST /cron/process-billing", "cron_billing", billingHandler.ProcessBilling)
	route("GET /cron/health", "cron_health", billingHandler.HealthCheck)
	route("GET /cron/stats", "cron_stats", billingHandler.Stats)

	rateLimiter := ratelimit.NewRateLimiter(10, 20)
	defer rateLimiter.Shutdown()
	securityHeaders := middleware.NewSecurityHeaders(cfg.Logger.Development)
	handler := securityHeaders.Middleware(rateLimiter.Middleware(mux))

	healthChecker := observability.NewHealthChecker(pool)
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker)
	logger.Info("metrics server started", ports.Int("port", cfg.Server.MetricsPort))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("http server listening", ports.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", ports.Err(err))
	}
	if err := observability.ShutdownMetricsServer(metricsServer); err != nil {
		logger.Error("metrics server shutdown failed", ports.Err(err))
	}
	logger.Info("shutdown complete")
}

// resolveCompanyToken swaps the configured secret path for the actual gateway
// credential when a secret backend is configured
func resolveCompanyToken(ctx context.Context, cfg *config.Config, logger ports.Logger) error {
	if cfg.Secrets.CompanyTokenPath == "" {
		return nil
	}

	var (
		manager ports.SecretManager
		err     error
	)
	switch cfg.Secrets.Provider {
	case "aws":
		awsCfg := secrets.DefaultAWSSecretsManagerConfig(cfg.Secrets.Region)
		awsCfg.Endpoint = cfg.Secrets.Endpoint
		manager, err = secrets.NewAWSSecretsManager(ctx, awsCfg, logger)
		if err != nil {
			return err
		}
	default:
		manager = secrets.NewEnvSecretManager()
	}

	token, err := manager.GetSecret(ctx, cfg.Secrets.CompanyTokenPath)
	if err != nil {
		return fmt.Errorf("read company token from %q: %w", cfg.Secrets.CompanyTokenPath, err)
	}
	cfg.Gateway.CompanyToken = token
	logger.Info("gateway credential loaded from secret store",
		ports.String("provider", cfg.Secrets.Provider))
	return nil
}

func initDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func initLogger(cfg config.LoggerConfig) *zap.Logger {
	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(cfg.Level); err == nil {
		level = parsed
	}

	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
