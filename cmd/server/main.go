package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/wolls/internal/api"
	"github.com/mmynk/wolls/internal/auth"
	"github.com/mmynk/wolls/internal/config"
	"github.com/mmynk/wolls/internal/events"
	"github.com/mmynk/wolls/internal/service"
	"github.com/mmynk/wolls/internal/storage/sqlite"
	"github.com/mmynk/wolls/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logging.Configure(cfg.LogLevel, cfg.LogFormat)

	// Initialize SQLite storage (runs migrations)
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("failed to connect to AMQP broker: %w", err)
		}
		publisher = amqpPublisher
		slog.Info("Publishing events", "exchange", cfg.AMQPExchange)
	}
	defer publisher.Close()

	authenticator := auth.NewPasswordAuthenticator(store, cfg.MinPasswordLength)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	handler := api.NewServer(api.Services{
		Users:       service.NewUserService(store, authenticator, jwtManager, publisher),
		Groups:      service.NewGroupService(store, publisher),
		Memberships: service.NewMembershipService(store, publisher),
		Expenses:    service.NewExpenseService(store, publisher),
		Ledger:      service.NewLedgerService(store),
	}, jwtManager, store)

	srv := &http.Server{
		Addr: cfg.Addr,
		// h2c serves HTTP/2 without TLS alongside HTTP/1.1
		Handler:        h2c.NewHandler(handler, &http2.Server{}),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: 1 << 16,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server starting", "address", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down", "timeout", cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped gracefully")
	return nil
}
