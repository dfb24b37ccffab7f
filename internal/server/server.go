// Package server is the gateway's HTTP surface: it resolves the caller's
// session, routes screen actions to that session's controllers and renders
// their views as JSON.
package server

import (
	"context"
	"fmt"
	"time"

	"synerthree/internal/cache"
	"synerthree/internal/config"
	"synerthree/internal/detail"
	"synerthree/internal/featureflags"
	"synerthree/internal/insight"
	"synerthree/internal/middleware"
	"synerthree/internal/models"
	"synerthree/internal/observability"
	"synerthree/internal/remote"
	"synerthree/internal/session"
	"synerthree/internal/workspace"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

// workspaceIdle is how long an untouched workspace is kept.
const workspaceIdle = 2 * time.Hour

// Backend is everything the gateway needs from the remote backend.
type Backend interface {
	workspace.Backend
	session.Authenticator
}

// Deps are the already-built collaborators of a Server.
type Deps struct {
	Backend  Backend
	Insights detail.Asker
	Store    session.Store
	// Redis is optional; without it rate limits fail open and readiness
	// reports redis as unused.
	Redis *redis.Client
}

// Server holds all dependencies and provides handlers.
type Server struct {
	config         *config.Config
	redis          *redis.Client
	backend        Backend
	sessions       *session.Manager
	tokens         *session.Issuer
	workspaces     *workspace.Registry
	flags          *featureflags.Set
	auth           *middleware.Auth
	limiter        *middleware.RateLimiter
	promMiddleware *fiberprometheus.FiberPrometheus

	shutdownCtx context.Context
	shutdownFn  context.CancelFunc
}

// NewServer builds a Server from configuration: the remote and insight
// clients, and the session store selected by SESSION_STORE.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	deps := Deps{
		Backend:  remote.NewClient(cfg.BackendURL, cfg.RemoteTimeout()),
		Insights: insight.NewClient(cfg.InsightURL, cfg.InsightAPIKey, cfg.RemoteTimeout()),
	}

	switch cfg.SessionStore {
	case "redis":
		rdb, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		deps.Redis = rdb
		deps.Store = session.NewRedisStore(rdb)
	default:
		deps.Store = session.NewMemoryStore()
	}

	return NewServerWithDeps(cfg, deps), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
func NewServerWithDeps(cfg *config.Config, deps Deps) *Server {
	sessions := session.NewManager(deps.Store, deps.Backend, cfg.SessionTTL())
	tokens := session.NewIssuer(cfg.JWTSecret)

	var limiterRedis redis.Cmdable
	if deps.Redis != nil {
		limiterRedis = deps.Redis
	}

	shutdownCtx, shutdownFn := context.WithCancel(context.Background())
	return &Server{
		config:         cfg,
		redis:          deps.Redis,
		backend:        deps.Backend,
		sessions:       sessions,
		tokens:         tokens,
		workspaces:     workspace.NewRegistry(deps.Backend, deps.Insights),
		flags:          featureflags.Parse(cfg.FeatureFlags),
		auth:           middleware.NewAuth(tokens, sessions),
		limiter:        middleware.NewRateLimiter(limiterRedis, cfg.RateLimitEnabled()),
		promMiddleware: middleware.InitMetrics("synerthree-gateway"),
		shutdownCtx:    shutdownCtx,
		shutdownFn:     shutdownFn,
	}
}

// NewApp creates the fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Synerthree Gateway",
		BodyLimit: 1 * 1024 * 1024,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.RateLimitEnabled()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the gateway.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{Title: "Synerthree Gateway Metrics"}))

	auth := api.Group("/auth")
	auth.Post("/login", s.limiter.Handler("login", 10, 5*time.Minute, middleware.FailOpen), s.Login)
	auth.Post("/signup", s.limiter.Handler("signup", 3, 10*time.Minute, middleware.FailOpen), s.Signup)
	auth.Post("/logout", s.auth.Required(), s.Logout)
	auth.Get("/me", s.auth.Required(), s.Me)

	api.Get("/flags", s.auth.Optional(), s.GetFeatureFlags)

	feed := api.Group("/feed", s.auth.Optional())
	feed.Get("/", s.GetFeed)
	feed.Post("/focus", s.FocusFeed)
	feed.Post("/posts", s.auth.Required(), s.SubmitPost)
	s.voteRoutes(feed.Group("/posts/:id"), s.feedCard)

	ideas := api.Group("/ideas/:id", s.auth.Optional())
	ideas.Get("/", s.GetIdea)
	ideas.Post("/reload", s.ReloadIdea)
	ideas.Post("/edit", s.BeginEdit)
	ideas.Put("/edit", s.SubmitEdit)
	ideas.Delete("/edit", s.CancelEdit)
	ideas.Post("/delete", s.RequestDelete)
	ideas.Post("/delete/confirm", s.ConfirmDelete)
	ideas.Delete("/delete", s.AbortDelete)
	ideas.Post("/comments", s.AddComment)
	ideas.Delete("/comments/:commentId", s.DeleteComment)
	ideas.Post("/insight", s.limiter.Handler("insight", 10, time.Minute, middleware.FailOpen), s.RequestInsight)
	s.voteRoutes(ideas, s.ideaCard)

	profile := api.Group("/profile", s.auth.Required())
	profile.Get("/", s.GetProfile)
	profile.Put("/picture", s.UpdateProfilePicture)
	profile.Post("/posts/:id/edit", s.BeginProfileEdit)
	profile.Put("/edit", s.SubmitProfileEdit)
	profile.Delete("/edit", s.CancelProfileEdit)
	profile.Post("/posts/:id/delete", s.RequestProfileDelete)
	profile.Post("/delete/confirm", s.ConfirmProfileDelete)
	profile.Delete("/delete", s.AbortProfileDelete)
}

// Start runs background maintenance until Shutdown is called.
func (s *Server) Start() {
	go s.sweepWorkspaces()
}

func (s *Server) sweepWorkspaces() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdownCtx.Done():
			return
		case now := <-ticker.C:
			if n := s.workspaces.Sweep(now, workspaceIdle); n > 0 {
				observability.Logger.Info("dropped idle workspaces", "count", n)
			}
		}
	}
}

// Shutdown stops background work and releases the Redis connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownFn()
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			return fmt.Errorf("close redis: %w", err)
		}
	}
	return nil
}

// LivenessCheck handles liveness probe requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	redisStatus := "unused"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}
	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"redis":      redisStatus,
			"workspaces": s.workspaces.Len(),
		},
		"time": time.Now(),
	})
}
