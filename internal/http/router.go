package http

import (
	"log/slog"
	"time"

	"github.com/booknest/booknest/internal/auth"
	"github.com/booknest/booknest/internal/config"
	"github.com/booknest/booknest/internal/http/handlers"
	"github.com/booknest/booknest/internal/http/middlewares"
	"github.com/booknest/booknest/internal/notifications"
	"github.com/booknest/booknest/internal/observability"
	"github.com/booknest/booknest/internal/queue/redisclient"
	"github.com/booknest/booknest/internal/repo/postgres"
	"github.com/booknest/booknest/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Cfg      config.Config
	Log      *slog.Logger
	Pool     *pgxpool.Pool
	Redis    *redisclient.Client
	JWT      *auth.Manager
	Notifier notifications.Notifier
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	prom := observability.NewProm(reg)

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("booknest-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware([]string{"http://localhost:4200"}))
	r.Use(middlewares.MaxBodyBytes(5 << 20))
	r.Use(prom.GinHandleMiddleware())

	// repositories
	usersRepo := postgres.NewUsersRepo(d.Pool, prom)
	rolesRepo := postgres.NewRolesRepo(d.Pool, prom)
	tokensRepo := postgres.NewTokensRepo(d.Pool, prom)
	booksRepo := postgres.NewBooksRepo(d.Pool, prom)
	historyRepo := postgres.NewHistoryRepo(d.Pool, prom)
	jobsRepo := postgres.NewJobsRepo(d.Pool, prom)

	covers := storage.NewFileStore(d.Cfg.UploadDir)

	// handlers
	healthHandler := handlers.NewHealthHandler(d.Pool)
	authHandler := handlers.NewAuthHandler(usersRepo, rolesRepo, tokensRepo, jobsRepo, d.Notifier, d.JWT, d.Cfg, d.Log)
	booksHandler := handlers.NewBooksHandler(booksRepo, covers, d.Log)
	lendingHandler := handlers.NewLendingHandler(historyRepo, d.Log)
	adminJobsHandler := handlers.NewAdminJobsHandler(jobsRepo)

	authMW := middlewares.NewAuthMiddleware(d.JWT, usersRepo)

	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/readyz", healthHandler.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// identity is resolved once, enforcement happens per group
	r.Use(authMW.Authenticate())

	// /auth is open but rate limited by client IP
	authGroup := r.Group("/auth")
	authGroup.Use(middlewares.RequireJSON())

	if d.Redis != nil {
		limiter := middlewares.NewRateLimiter(
			d.Redis.Raw(),
			d.Cfg.RateLimit,
			time.Duration(d.Cfg.RateWindowSeconds)*time.Second,
			d.Log,
		)
		authGroup.Use(limiter.Middleware(middlewares.KeyByIP))
	}

	authGroup.POST("/register", authHandler.Register)
	authGroup.GET("/activate-account", authHandler.Activate)
	authGroup.POST("/authenticate", authHandler.Authenticate)

	books := r.Group("/books")
	books.Use(authMW.RequireUser(), middlewares.RequireJSON())

	books.POST("", booksHandler.Create)
	books.GET("", booksHandler.ListFeed)
	books.GET("/owner", booksHandler.ListOwned)
	books.GET("/borrowed", lendingHandler.ListBorrowed)
	books.GET("/returned", lendingHandler.ListReturned)
	books.GET("/:id", booksHandler.GetByID)
	books.PATCH("/:id/shareable", booksHandler.ToggleShareable)
	books.PATCH("/:id/archived", booksHandler.ToggleArchived)
	books.POST("/:id/cover", booksHandler.UploadCover)
	books.POST("/:id/borrow", lendingHandler.Borrow)
	books.PATCH("/:id/borrow/return", lendingHandler.Return)
	books.PATCH("/:id/borrow/return/approve", lendingHandler.ApproveReturn)

	admin := r.Group("/admin")
	admin.Use(authMW.RequireUser(), authMW.RequireRole("ADMIN"))

	admin.GET("/jobs", adminJobsHandler.List)
	admin.GET("/jobs/:id", adminJobsHandler.GetByID)
	admin.POST("/jobs/:id/retry", adminJobsHandler.Retry)
	admin.POST("/jobs/reprocess-dead", adminJobsHandler.RetryManyFailed)

	return r
}
