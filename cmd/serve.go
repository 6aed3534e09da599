package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"cycleworks/internal/auth"
	"cycleworks/internal/config"
	httpapi "cycleworks/internal/http"
	"cycleworks/internal/payment"
	"cycleworks/internal/repository"
	"cycleworks/internal/repository/mongostore"
	"cycleworks/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	gateway := newGateway(cfg, logger)
	tokens := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.TokenTTL)

	srv := httpapi.NewServer(httpapi.Services{
		Users:    service.NewUserService(store.Users, tokens),
		Products: service.NewProductService(store.Products),
		Orders:   service.NewOrderService(store.Orders),
		Reviews:  service.NewReviewService(store.Reviews),
		Payments: service.NewPaymentService(gateway, store.Orders, store.Payments, cfg.Payment.VerifyCharges, logger),
	}, tokens, httpapi.Options{Logger: logger, RequestTimeout: cfg.Server.RequestTimeout})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr, "storage", cfg.Storage.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	return nil
}

// openStore builds the repositories. A Mongo connection that cannot be
// established is logged and the server still starts; requests then fail
// until the driver reconnects.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, func(), error) {
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Warn("Using in-memory storage; data is lost on exit")
		return repository.NewMemoryStore().Repositories(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongostore.Connect(connectCtx, cfg.Mongo.ConnectionURI())
	if client == nil {
		return repository.Store{}, nil, err
	}
	if err != nil {
		logger.Error("Mongo unavailable at startup", "err", err)
	}

	db := client.Database(cfg.Mongo.Database)
	if err == nil {
		if err := mongostore.EnsureIndexes(connectCtx, db); err != nil {
			logger.Warn("Failed to ensure indexes", "err", err)
		}
	}

	return mongostore.New(db), func() { disconnect(client, logger) }, nil
}

func disconnect(client *mongo.Client, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.Error("Mongo disconnect failed", "err", err)
	}
}

func newGateway(cfg *config.Config, logger *slog.Logger) payment.Gateway {
	if cfg.Payment.SecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set; using the in-process payment fake")
		return payment.NewFake()
	}
	return payment.NewStripe(cfg.Payment.SecretKey)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
