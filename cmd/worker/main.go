package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/booknest/booknest/internal/config"
	"github.com/booknest/booknest/internal/db"
	"github.com/booknest/booknest/internal/notifications"
	"github.com/booknest/booknest/internal/observability"
	"github.com/booknest/booknest/internal/queue/worker"
	"github.com/booknest/booknest/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, "booknest-worker", cfg.OTLPEndpoint)

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

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	jobsRepo := postgres.NewJobsRepo(pool, prom)
	tokensRepo := postgres.NewTokensRepo(pool, prom)
	usersRepo := postgres.NewUsersRepo(pool, prom)
	deliveriesRepo := postgres.NewEmailDeliveriesRepo(pool, prom)

	notifier := buildNotifier(cfg)

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		PollInterval:  200 * time.Millisecond,
		WorkerID:      workerID,
		Concurrency:   4,
		ShutdownGrace: 10 * time.Second,
		LockTTL:       60 * time.Second,
		ActivationURL: cfg.ActivationURL,
	}, jobsRepo, tokensRepo, usersRepo, deliveriesRepo, notifier, log, prom)

	// probe + metrics server
	mux := http.NewServeMux()
	mux.Handle("/", w.HealthHandler())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	probeSrv := &http.Server{
		Addr:              ":9091",
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := probeSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("probe server failed", "err", err)
		}
	}()

	log.Info("worker started", "worker_id", workerID)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	shCtx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()
	_ = probeSrv.Shutdown(shCtx)

	log.Info("worker shutdown complete")
}

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
