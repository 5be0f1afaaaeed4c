package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/reciclamt/internal/balancecache"
	"github.com/dukerupert/reciclamt/internal/config"
	"github.com/dukerupert/reciclamt/internal/database"
	"github.com/dukerupert/reciclamt/internal/email"
	"github.com/dukerupert/reciclamt/internal/handler"
	"github.com/dukerupert/reciclamt/internal/ledger"
	"github.com/dukerupert/reciclamt/internal/server"
	"github.com/spf13/cobra"
)

const (
	cleanupInterval = time.Hour
	shutdownTimeout = 5 * time.Second
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(rootOpts)
			if err != nil {
				return err
			}
			defer env.Close()

			if port != "" {
				env.cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, env.cfg, env.logger)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides RECICLAMT_PORT)")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	logger.Info("database ready", "dialect", db.Dialect())

	cache, closeCache, err := newBalanceCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	var mailer handler.RedemptionMailer
	if ec := email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.BaseURL); ec.Configured() {
		mailer = ec
		logger.Info("redemption emails enabled", "from", cfg.FromEmail)
	}

	srv, err := server.New(db, cfg, cache, mailer, logger)
	if err != nil {
		return err
	}

	go runCleanup(ctx, srv, logger.With("component", "cleanup"))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("reciclamt server starting", "port", cfg.Port, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newBalanceCache picks Redis when RECICLAMT_REDIS_URL is set and the
// in-process LRU otherwise.
func newBalanceCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (ledger.BalanceCache, func(), error) {
	if cfg.RedisURL != "" {
		rc, err := balancecache.NewRedis(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("balance cache", "backend", "redis", "ttl", cfg.CacheTTL)
		return rc, func() { rc.Close() }, nil
	}

	lc, err := balancecache.NewLRU(cfg.CacheSize, cfg.CacheTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("create balance cache: %w", err)
	}
	logger.Info("balance cache", "backend", "lru", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	return lc, func() {}, nil
}

// runCleanup periodically removes expired sessions and stale rate-limit
// windows until ctx is cancelled.
func runCleanup(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := srv.SessionStore().DeleteExpired(ctx); err != nil {
				logger.Error("session cleanup", "error", err)
			} else if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
			if n := srv.RateLimiter().Cleanup(); n > 0 {
				logger.Debug("rate limit windows removed", "count", n)
			}
		}
	}
}
