package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/premiumpay/premium-pay-api/internal/handlers"
	"github.com/premiumpay/premium-pay-api/internal/logger"
	"github.com/premiumpay/premium-pay-api/internal/middleware"
	appvalidator "github.com/premiumpay/premium-pay-api/internal/validator"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	rdb := newRedis(a)
	if rdb != nil {
		defer rdb.Close()
	}

	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	appvalidator.ConfigureGin()

	r := gin.New()
	r.MaxMultipartMemory = a.cfg.MaxUploadBytes
	r.Use(gin.Recovery(), logger.RequestLogger(a.log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: !slices.Contains(a.cfg.AllowedOrigins, "*"),
	}))
	r.Use(middleware.NewRateLimiter(rdb, a.cfg.RateLimitRequests, a.cfg.RateLimitWindow, a.log).Middleware())

	if a.cfg.StorageDriver == "local" {
		r.Static("/static/uploads", a.cfg.UploadDir)
	}
	handlers.RegisterRoutes(r, handlers.NewHandler(a.accounts), middleware.NewAuth(a.tokens, a.accounts))

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("port", a.cfg.Port).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRedis returns nil when REDIS_URL is unset or invalid, which disables
// rate limiting.
func newRedis(a *app) *redis.Client {
	if a.cfg.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		a.log.WithError(err).Warn("invalid REDIS_URL, rate limiting disabled")
		return nil
	}
	return redis.NewClient(opts)
}
