package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/mpavao/ledgerflow-backend/internal/adapter/audit"
	"github.com/mpavao/ledgerflow-backend/internal/adapter/httpapi"
	"github.com/mpavao/ledgerflow-backend/internal/adapter/repository/postgres"
	"github.com/mpavao/ledgerflow-backend/internal/config"
	"github.com/mpavao/ledgerflow-backend/internal/domain"
	"github.com/mpavao/ledgerflow-backend/internal/usecase/account"
	"github.com/mpavao/ledgerflow-backend/internal/usecase/credit"
	"github.com/mpavao/ledgerflow-backend/internal/usecase/reversal"
	"github.com/mpavao/ledgerflow-backend/internal/usecase/transfer"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// 1. Database
	db, err := postgres.NewDB(cfg.GetDBConnectionString())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("migrations applied")

	// 2. Repositories and unit of work
	accountRepo := postgres.NewAccountRepository(db)
	transferRepo := postgres.NewTransferRepository(db)
	uow := postgres.NewUnitOfWork(db, cfg.TxMaxRetries, logger)

	// 3. Audit publisher (optional)
	var publisher domain.EventPublisher = audit.NewNopPublisher()
	if cfg.KafkaBrokerURL != "" {
		kafkaPublisher := audit.NewKafkaPublisher(cfg.GetKafkaBrokers(), cfg.KafkaAuditTopic, logger)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info("kafka audit publisher enabled", zap.String("topic", cfg.KafkaAuditTopic))
	}

	// 4. Services (use cases)
	accountService := account.NewService(accountRepo, logger)
	transferService := transfer.NewService(uow, transferRepo, publisher, cfg.AllowSelfTransfer, logger)
	reversalService := reversal.NewService(uow, publisher, logger)
	creditService := credit.NewService(uow, publisher, logger)

	// 5. HTTP server
	handler := httpapi.NewHandler(accountService, transferService, reversalService, creditService, logger)
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	waitForShutdown(server, logger)
}

func runMigrations(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.MigrationsPath, cfg.GetDBMigrationConnectionString())
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(server *http.Server, logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Info("shutting down gracefully", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("http server stopped")
}
