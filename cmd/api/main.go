package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/booknest/booknest/internal/auth"
	"github.com/booknest/booknest/internal/config"
	"github.com/booknest/booknest/internal/db"
	httpx "github.com/booknest/booknest/internal/http"
	"github.com/booknest/booknest/internal/notifications"
	"github.com/booknest/booknest/internal/observability"
	"github.com/booknest/booknest/internal/queue/redisclient"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	ctx := context.Background()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, "booknest-api", cfg.OTLPEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}

		defer func() {
			shCtx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(shCtx)
		}()
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	if err := db.EnsureRoles(ctx, pool); err != nil {
		log.Error("role seeding failed", "err", err)
		os.Exit(1)
	}

	if err := db.EnsureAdminUser(ctx, pool, cfg); err != nil {
		log.Error("admin seeding failed", "err", err)
		os.Exit(1)
	}

	jwtManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL())

	if err != nil {
		log.Error("jwt manager init failed", "err", err)
		os.Exit(1)
	}

	var rdb *redisclient.Client

	if cfg.RedisAddr != "" {
		rdb = redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		defer rdb.Close()

		pingCtx, cancel := config.WithTimeout(2 * time.Second)

		if err := rdb.Ping(pingCtx); err != nil {
			// limiter fails open anyway, but surface the problem early
			log.Warn("redis unreachable at boot", "err", err)
		}
		cancel()
	}

	notifier := buildNotifier(cfg)

	router := httpx.NewRouter(httpx.Deps{
		Cfg:      cfg,
		Log:      log,
		Pool:     pool,
		Redis:    rdb,
		JWT:      jwtManager,
		Notifier: notifier,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		shCtx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(shCtx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

// buildNotifier picks log output in dev and the circuit-broken SMTP relay
// everywhere else.
func buildNotifier(cfg config.Config) notifications.Notifier {
	if cfg.Env == "dev" {
		return notifications.NewLogNotifier()
	}

	smtp := notifications.NewSMTPNotifier(notifications.SMTPConfig{
		Host:     cfg.MailHost,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
		From:     cfg.MailFrom,
	})

	return notifications.NewProtectedNotifier(smtp, notifications.ProtectedNotifierConfig{})
}
