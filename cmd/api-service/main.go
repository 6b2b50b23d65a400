package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/tdhoang/escrow-be/internal/api/handler"
	"github.com/tdhoang/escrow-be/internal/api/router"
	"github.com/tdhoang/escrow-be/internal/config"
	"github.com/tdhoang/escrow-be/internal/escrow"
	"github.com/tdhoang/escrow-be/internal/escrow/custody"
	"github.com/tdhoang/escrow-be/internal/escrow/domain"
	"github.com/tdhoang/escrow-be/internal/escrow/events"
	"github.com/tdhoang/escrow-be/internal/escrow/registry"
	"github.com/tdhoang/escrow-be/shared/logger"
	"github.com/tdhoang/escrow-be/shared/postgresql"
	"github.com/tdhoang/escrow-be/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger := logger.New(&logger.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.EnableCaller,
	})

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	reg := registry.NewPostgres(dbClient.DB(), appLogger)

	ctx := context.Background()
	if err := bootstrapIdentities(ctx, reg, &cfg.Escrow); err != nil {
		return fmt.Errorf("failed to bootstrap identities: %w", err)
	}

	engine := escrow.NewEngine(escrow.Config{
		Registry:          reg,
		Custody:           initCustody(&cfg.Ledger, appLogger),
		Events:            events.NewAMQPPublisher(rabbitClient, appLogger),
		Logger:            appLogger,
		GracePeriod:       cfg.Escrow.GracePeriod,
		MaxDeadlineWindow: cfg.Escrow.MaxDeadlineWindow,
	})

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r := router.SetupRouter(&handler.Dependencies{
		Logger:   appLogger,
		Engine:   engine,
		DBClient: dbClient,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// bootstrapIdentities persists the administrator and, when none is set yet,
// the default dispute resolver.
func bootstrapIdentities(ctx context.Context, reg registry.Registry, cfg *config.EscrowConfig) error {
	if err := reg.SetAdmin(ctx, domain.Identity(cfg.Administrator)); err != nil {
		return err
	}

	resolver, err := reg.Resolver(ctx)
	if err != nil {
		return err
	}
	if resolver == "" && cfg.DefaultResolver != "" {
		return reg.SetResolver(ctx, domain.Identity(cfg.DefaultResolver))
	}
	return nil
}

func initCustody(cfg *config.LedgerConfig, logger *slog.Logger) *custody.Adapter {
	native := custody.NewNativeHTTPLedger(custody.NewHTTPLedger(cfg.NativeURL, cfg.RequestTimeout))
	adapter := custody.NewAdapter(domain.Identity(cfg.CustodyAccount), native, logger)
	for _, token := range cfg.Tokens {
		adapter.RegisterToken(domain.Asset(token.Asset), custody.NewHTTPLedger(token.URL, cfg.RequestTimeout))
	}
	return adapter
}

func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, logger)
}
