package http

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rcalder/taskhub/internal/cache"
	"github.com/rcalder/taskhub/internal/config"
	"github.com/rcalder/taskhub/internal/http/handlers"
	"github.com/rcalder/taskhub/internal/http/middlewares"
	"github.com/rcalder/taskhub/internal/observability"
	"github.com/rcalder/taskhub/internal/redisclient"
	"github.com/rcalder/taskhub/internal/repo/postgres"
	"github.com/rcalder/taskhub/internal/session"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// SessionStore is everything the router needs from a session backend.
type SessionStore interface {
	middlewares.SessionValidator
	handlers.SessionWriter
}

// NewRouter wires the production stack: postgres repositories and the
// redis session store.
func NewRouter(log *slog.Logger, pool *pgxpool.Pool, rds *redisclient.Client, cfg config.Config) *gin.Engine {
	// a private registry per router so tests can build several routers
	// without double-registering collectors
	registry := prometheus.NewRegistry()
	prom := observability.NewProm(registry)

	usersRepo := postgres.NewUsersRepo(pool, prom)
	tasksRepo := postgres.NewTasksRepo(pool, prom)
	sessions := session.NewRedisStore(rds.Raw(), cfg.SessionTTL)

	pingDB := func(ctx context.Context) error {
		if pool == nil {
			return nil
		}
		return pool.Ping(ctx)
	}

	pingSession := func(ctx context.Context) error {
		if rds == nil {
			return nil
		}
		return rds.Ping(ctx)
	}

	return NewRouterWithStores(log, cfg, prom, registry, usersRepo, tasksRepo, sessions, pingDB, pingSession)
}

// NewRouterWithStores assembles the full middleware chain and routes on
// top of caller-supplied stores. Tests run it against the in-memory
// implementations.
func NewRouterWithStores(
	log *slog.Logger,
	cfg config.Config,
	prom *observability.Prom,
	registry *prometheus.Registry,
	users handlers.UserStore,
	tasks handlers.TaskStore,
	sessions SessionStore,
	pingDB func(context.Context) error,
	pingSession func(context.Context) error,
) *gin.Engine {
	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(middlewares.RequireJSON())
	r.Use(otelgin.Middleware("taskhub"))
	r.Use(prom.GinHandleMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// wire up handlers
	authHandler := handlers.NewAuthHandler(users, sessions, prom)
	tasksHandler := handlers.NewTasksHandlerWithCache(tasks, cache.New(cfg.CacheTTL))
	healthHandler := handlers.NewHealthHandler(pingDB, pingSession)

	authGate := middlewares.NewAuthMiddleware(sessions, prom).RequireAuth()

	api := r.Group("/api")

	api.GET("/health", healthHandler.Health)
	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(authGate)

	protected.GET("/verify", authHandler.Verify)
	protected.POST("/logout", authHandler.Logout)
	protected.GET("/tasks", tasksHandler.ListTasks)
	protected.POST("/tasks", tasksHandler.CreateTask)
	protected.PUT("/tasks/:id", tasksHandler.UpdateTask)
	protected.DELETE("/tasks/:id", tasksHandler.DeleteTask)

	return r
}
