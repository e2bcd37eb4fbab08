package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/grpc/credentials"

	"github.com/fanders/microfinance/internal/application/usecase"
	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/internal/domain/service"
	"github.com/fanders/microfinance/internal/infrastructure/cache"
	"github.com/fanders/microfinance/internal/infrastructure/clock"
	"github.com/fanders/microfinance/internal/infrastructure/config"
	"github.com/fanders/microfinance/internal/infrastructure/memory"
	"github.com/fanders/microfinance/internal/infrastructure/messaging"
	infraPG "github.com/fanders/microfinance/internal/infrastructure/postgres"
	grpcPresentation "github.com/fanders/microfinance/internal/presentation/grpc"
	"github.com/fanders/microfinance/internal/presentation/rest"
	"github.com/fanders/microfinance/pkg/auth"
	kafkapkg "github.com/fanders/microfinance/pkg/kafka"
	"github.com/fanders/microfinance/pkg/observability"
	pgpkg "github.com/fanders/microfinance/pkg/postgres"
	"github.com/fanders/microfinance/pkg/tlsutil"
)

// storage is the unit-of-work manager plus the read-side repositories the
// query use cases need.
type storage struct {
	tx       port.TxManager
	loans    port.LoanRepository
	blotters port.BlotterRepository
	sheets   port.CollectionSheetRepository
	pool     *pgxpool.Pool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()

	// Initialize logger
	logger := observability.InitLogger(observability.LogConfig{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
	})
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting ledger",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"storage", cfg.StorageDriver,
		"timezone", cfg.Ledger.BusinessTimezone,
	)

	// Initialize tracing
	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() { _ = shutdownTracer(context.Background()) }() //nolint:errcheck // best-effort tracer shutdown
	}

	// Initialize metrics
	meterProvider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: cfg.ServiceName})
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer func() { _ = meterProvider.Shutdown(context.Background()) }() //nolint:errcheck
	metrics, err := usecase.NewMetrics(meterProvider.Meter(cfg.ServiceName))
	if err != nil {
		logger.Error("failed to create instruments", "error", err)
		os.Exit(1)
	}

	// Storage
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	if store.pool != nil {
		defer store.pool.Close()
	}

	readiness := map[string]rest.Check{}
	if store.pool != nil {
		pool := store.pool
		readiness["postgres"] = func(ctx context.Context) error { return pgpkg.HealthCheck(ctx, pool) }
	}

	// Quote cache (optional)
	var quoteCache port.QuoteCache
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cache.ConnectionInfo{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("redis unavailable, quotes will not be cached", "error", err)
		} else {
			defer func() { _ = rdb.Close() }() //nolint:errcheck
			quoteCache = cache.NewQuoteCache(rdb, cfg.Ledger.Terms, cfg.Redis.QuoteTTL)
			readiness["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}

	// Wire dependencies (DI via constructors)
	terms := cfg.Ledger.Terms
	calc, err := model.NewAmortizationCalculator(terms)
	if err != nil {
		logger.Error("invalid loan terms", "error", err)
		os.Exit(1)
	}
	clk, err := clock.NewSystem(cfg.Ledger.BusinessTimezone)
	if err != nil {
		logger.Error("invalid business timezone", "error", err)
		os.Exit(1)
	}

	// Use cases
	refreshUC := usecase.NewRefreshBlotterUseCase(store.tx, clk, logger)
	postUC := usecase.NewPostPaymentUseCase(store.tx, clk, metrics, logger)
	loans := grpcPresentation.LoanUseCases{
		Quote:    usecase.NewQuoteLoanUseCase(calc, quoteCache, logger),
		Config:   usecase.NewGetLoanConfigUseCase(terms),
		Apply:    usecase.NewApplyLoanUseCase(calc, store.tx, clk, metrics, logger),
		Approve:  usecase.NewApproveLoanUseCase(store.tx, clk, metrics, logger),
		Disburse: usecase.NewDisburseLoanUseCase(store.tx, clk, metrics, logger),
		Default:  usecase.NewMarkLoanDefaultedUseCase(store.tx, clk, metrics, logger),
		Get:      usecase.NewGetLoanUseCase(store.loans),
		Post:     postUC,
		Payments: usecase.NewListPaymentsUseCase(store.loans),
		Overdue:  usecase.NewGetOverdueLoansUseCase(store.loans, service.NewOverdueAnalyzer(), terms, clk),
	}
	blotters := grpcPresentation.BlotterUseCases{
		Open:        usecase.NewOpenBlotterUseCase(store.tx, clk),
		Refresh:     refreshUC,
		AddExpense:  usecase.NewAddExpenseUseCase(store.tx, clk, metrics, logger),
		Finalize:    usecase.NewFinalizeBlotterUseCase(store.tx, clk, metrics, logger),
		Range:       usecase.NewGetBlotterRangeUseCase(store.blotters),
		Position:    usecase.NewGetCashPositionUseCase(store.blotters, cfg.Ledger.CashAlertThreshold),
		Recalculate: usecase.NewRecalculateBlottersUseCase(store.tx, clk, logger),
	}
	sheets := grpcPresentation.SheetUseCases{
		Create:  usecase.NewCreateSheetUseCase(store.tx, clk, logger),
		AddLoan: usecase.NewAddSheetLoansUseCase(store.tx, clk),
		Collect: usecase.NewRecordCollectionUseCase(store.tx, clk, postUC),
		Submit:  usecase.NewSubmitSheetUseCase(store.tx, clk, logger),
		Approve: usecase.NewApproveSheetUseCase(store.tx, clk, logger),
		Get:     usecase.NewGetSheetUseCase(store.sheets),
		List:    usecase.NewListSheetsUseCase(store.sheets),
	}

	errCh := make(chan error, 4)

	// Kafka outbox relay and blotter sync consumer (optional)
	if len(cfg.Kafka.Brokers) > 0 {
		kcfg := kafkapkg.Config{
			Brokers:       cfg.Kafka.Brokers,
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
			SASLEnabled:   cfg.Kafka.SASLEnabled,
			SASLMechanism: cfg.Kafka.SASLMechanism,
			SASLUsername:  cfg.Kafka.SASLUsername,
			SASLPassword:  cfg.Kafka.SASLPassword,
			TLS:           cfg.Kafka.TLS,
		}
		producer, err := kafkapkg.NewProducer(kcfg)
		if err != nil {
			logger.Error("failed to create kafka producer", "error", err)
			os.Exit(1)
		}
		defer func() { _ = producer.Close() }() //nolint:errcheck

		relay := messaging.NewOutboxRelay(store.tx, messaging.NewKafkaEventPublisher(producer, logger),
			cfg.Kafka.Topic, cfg.Kafka.OutboxBatch, cfg.Kafka.OutboxInterval, logger)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()

		consumer, err := kafkapkg.NewConsumer(kcfg, cfg.Kafka.Topic, messaging.NewBlotterSync(refreshUC, logger).Handle, logger)
		if err != nil {
			logger.Error("failed to create kafka consumer", "error", err)
			os.Exit(1)
		}
		defer func() { _ = consumer.Close() }() //nolint:errcheck
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	} else {
		logger.Info("KAFKA_BROKERS not set, outbox relay and blotter sync disabled")
	}

	// JWT service (validation-only: public key preferred, secret as fallback).
	jwtSvc, err := newJWTService(cfg.JWT)
	if err != nil {
		logger.Error("failed to initialize JWT service", "error", err)
		os.Exit(1)
	}

	var creds credentials.TransportCredentials
	if cfg.TLS.Enabled() {
		creds, err = tlsutil.ServerTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.ClientCAFile)
		if err != nil {
			logger.Error("failed to load TLS credentials", "error", err)
			os.Exit(1)
		}
	}

	// gRPC server
	handler := grpcPresentation.NewLedgerHandler(loans, blotters, sheets)
	grpcServer := grpcPresentation.NewServer(handler, logger, jwtSvc, grpcPresentation.ServerOptions{
		Creds:      creds,
		Reflection: cfg.LogLevel == "debug",
	})

	// HTTP server (health checks + metrics)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           rest.NewRouter(rest.NewHealthHandler(cfg.ServiceName, readiness, logger), metricsHandler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start servers
	go func() {
		errCh <- grpcServer.Serve(cfg.GRPCAddr())
	}()

	go func() {
		logger.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", "error", err)
		cancel()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
	logger.Info("ledger stopped")
}

// openStorage returns the in-memory store or a migrated postgres pool.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		s := memory.NewStore()
		return storage{tx: s, loans: s.Loans(), blotters: s.Blotters(), sheets: s.CollectionSheets()}, nil
	}

	pgCfg := pgpkg.Config{
		Host:            cfg.DB.Host,
		Port:            cfg.DB.Port,
		User:            cfg.DB.User,
		Password:        cfg.DB.Password,
		Database:        cfg.DB.Name,
		SSLMode:         cfg.DB.SSLMode,
		ApplicationName: cfg.ServiceName,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
	}
	pool, err := pgpkg.NewPool(ctx, pgCfg)
	if err != nil {
		return storage{}, err
	}

	// Run migrations
	if err := pgpkg.RunEmbeddedMigrations(pgCfg.DSN(), infraPG.Migrations, infraPG.MigrationsDir); err != nil {
		pool.Close()
		return storage{}, err
	}

	pgStore := infraPG.NewStore(pool)
	return storage{
		tx:       infraPG.NewTxManager(pool, cfg.DB.TxTimeout, logger),
		loans:    pgStore.Loans(),
		blotters: pgStore.Blotters(),
		sheets:   pgStore.CollectionSheets(),
		pool:     pool,
	}, nil
}

func newJWTService(cfg config.JWTConfig) (*auth.JWTService, error) {
	jwtCfg := auth.JWTConfig{Issuer: cfg.Issuer}
	switch {
	case cfg.PublicKey != "":
		jwtCfg.PublicKeyPEM = cfg.PublicKey
	case cfg.PublicKeyFile != "":
		keyData, err := auth.LoadKeyFromFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, err
		}
		jwtCfg.PublicKeyPEM = string(keyData)
	case cfg.Secret != "":
		jwtCfg.Secret = cfg.Secret
	default:
		return nil, errors.New("one of JWT_PUBLIC_KEY, JWT_PUBLIC_KEY_FILE or JWT_SECRET is required")
	}
	return auth.NewJWTService(jwtCfg)
}
