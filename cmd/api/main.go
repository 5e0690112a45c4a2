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
	"time"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/homeswift/internal/alerts"
	"github.com/sudo-init-do/homeswift/internal/booking"
	"github.com/sudo-init-do/homeswift/internal/config"
	"github.com/sudo-init-do/homeswift/internal/events"
	"github.com/sudo-init-do/homeswift/internal/pricing"
	"github.com/sudo-init-do/homeswift/internal/store"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

const devJWTSecret = "homeswift-dev-secret"

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	catalog, err := pricing.Load()
	if err != nil {
		return err
	}

	mailer, err := alerts.NewMailer(cfg.Mail)
	if err != nil {
		return err
	}
	notifier, closeNotifier, err := newNotifier(cfg, mailer, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	publisher, closePublisher := newPublisher(cfg, logger)
	defer closePublisher()

	secret := cfg.JWT.Secret
	if secret == "" {
		logger.Warn("JWT_SECRET not set, using development secret")
		secret = devJWTSecret
	}

	svc := booking.New(st, st, catalog, notifier, publisher, logger, booking.Options{AdminAlertEmail: cfg.AdminAlertEmail})
	e := newServer(app{
		cfg:      cfg,
		store:    st,
		bookings: svc,
		catalog:  catalog,
		notifier: notifier,
		tokens:   utils.NewTokens(secret, cfg.JWT.TTL),
		logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "port", cfg.Port, "store", cfg.StoreType, "mail", cfg.Mail.Provider)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// newNotifier queues mail through Redis when it is configured and otherwise
// sends from an in-process pool. The returned func drains it.
func newNotifier(cfg *config.Config, mailer *alerts.Mailer, logger *slog.Logger) (alerts.Notifier, func(), error) {
	if cfg.Redis.Addr == "" {
		d := alerts.NewDispatcher(mailer, cfg.Mail.Workers, 256, logger)
		return d, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := d.Close(ctx); err != nil {
				logger.Warn("mail dispatcher did not drain", "error", err)
			}
		}, nil
	}

	opt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password}
	worker := alerts.NewWorker(opt, mailer, cfg.Mail.Workers, logger)
	if err := worker.Start(); err != nil {
		return nil, nil, fmt.Errorf("start mail worker: %w", err)
	}
	q := alerts.NewQueue(opt)
	logger.Info("mail queue enabled", "redis", cfg.Redis.Addr)
	return q, func() {
		_ = q.Close()
		worker.Shutdown()
	}, nil
}

func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, func()) {
	if cfg.Events.AMQPURL == "" {
		return events.Nop{}, func() {}
	}
	p, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
	if err != nil {
		logger.Warn("booking events disabled", "error", err)
		return events.Nop{}, func() {}
	}
	logger.Info("publishing booking events", "exchange", cfg.Events.Exchange)
	return p, func() { _ = p.Close() }
}
