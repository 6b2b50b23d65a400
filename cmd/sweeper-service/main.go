package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tdhoang/escrow-be/internal/config"
	"github.com/tdhoang/escrow-be/internal/escrow"
	"github.com/tdhoang/escrow-be/internal/escrow/custody"
	"github.com/tdhoang/escrow-be/internal/escrow/domain"
	"github.com/tdhoang/escrow-be/internal/escrow/events"
	"github.com/tdhoang/escrow-be/internal/escrow/registry"
	"github.com/tdhoang/escrow-be/internal/sweeper"
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

	defaultConfigPath := os.Getenv("SWEEPER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/sweeper-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateSweeperConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger := logger.New(&logger.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.EnableCaller,
	})

	appLogger.Info("Starting sweeper service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	rabbitClient, err := rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.RabbitMQ.Host,
		Port:               cfg.RabbitMQ.Port,
		User:               cfg.RabbitMQ.User,
		Password:           cfg.RabbitMQ.Password,
		VHost:              cfg.RabbitMQ.VHost,
		ExchangeName:       cfg.RabbitMQ.Exchange.Name,
		ExchangeType:       cfg.RabbitMQ.Exchange.Type,
		ExchangeDurable:    cfg.RabbitMQ.Exchange.Durable,
		ExchangeAutoDelete: cfg.RabbitMQ.Exchange.AutoDelete,
		RetryAttempts:      cfg.RabbitMQ.Connection.RetryAttempts,
		RetryInterval:      cfg.RabbitMQ.Connection.RetryInterval,
		Heartbeat:          cfg.RabbitMQ.Connection.Heartbeat,
		ConnectionTimeout:  cfg.RabbitMQ.Connection.ConnectionTimeout,
		PublishRetries:     cfg.RabbitMQ.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.RabbitMQ.Publish.RetryInterval,
		PublishBackoffMult: cfg.RabbitMQ.Publish.BackoffMultiplier,
	}, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	reg := registry.NewPostgres(dbClient.DB(), appLogger)

	native := custody.NewNativeHTTPLedger(custody.NewHTTPLedger(cfg.Ledger.NativeURL, cfg.Ledger.RequestTimeout))
	adapter := custody.NewAdapter(domain.Identity(cfg.Ledger.CustodyAccount), native, appLogger)
	for _, token := range cfg.Ledger.Tokens {
		adapter.RegisterToken(domain.Asset(token.Asset), custody.NewHTTPLedger(token.URL, cfg.Ledger.RequestTimeout))
	}

	engine := escrow.NewEngine(escrow.Config{
		Registry:          reg,
		Custody:           adapter,
		Events:            events.NewAMQPPublisher(rabbitClient, appLogger),
		Logger:            appLogger,
		GracePeriod:       cfg.Escrow.GracePeriod,
		MaxDeadlineWindow: cfg.Escrow.MaxDeadlineWindow,
	})

	sw := sweeper.New(&sweeper.Config{
		Logger:      appLogger,
		Engine:      engine,
		Registry:    reg,
		Actor:       domain.Identity(cfg.Sweeper.Actor),
		Interval:    cfg.Sweeper.Interval,
		Concurrency: cfg.Sweeper.Concurrency,
		BatchSize:   cfg.Sweeper.BatchSize,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sw.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down sweeper...")
	sw.Stop()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-time.After(cfg.Sweeper.ShutdownTimeout):
		appLogger.Warn("Sweeper shutdown timed out")
	}

	appLogger.Info("Sweeper shutdown complete")
	return nil
}
