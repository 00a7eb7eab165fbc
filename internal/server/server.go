// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"opinara/internal/cache"
	"opinara/internal/config"
	"opinara/internal/database"
	"opinara/internal/llm"
	"opinara/internal/middleware"
	"opinara/internal/models"
	"opinara/internal/moderation"
	"opinara/internal/notifications"
	"opinara/internal/ranking"
	"opinara/internal/repository"
	"opinara/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// tokenTTL is the lifetime of access tokens issued at signup and login.
const tokenTTL = 7 * 24 * time.Hour

// Dependencies are the model-backed collaborators. Either may be nil, in
// which case the endpoints that need it answer with an upstream error.
type Dependencies struct {
	Classifier service.TextClassifier
	Summarizer service.Summarizer
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	store          repository.Store
	notifier       *notifications.Notifier
	userService    *service.UserService
	waveService    *service.WaveService
	postService    *service.PostService
	commentService *service.CommentService
	voteService    *service.VoteService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient(), ModelDependencies(cfg))
}

// ModelDependencies builds the LLM client and moderation aggregator from
// configuration. Without an API key both stay nil.
func ModelDependencies(cfg *config.Config) Dependencies {
	if cfg.LLMAPIKey == "" {
		middleware.Logger.Warn("LLM_API_KEY not set, moderation and summaries are disabled")
		return Dependencies{}
	}
	client := llm.NewClient(llm.Config{
		APIKey:            cfg.LLMAPIKey,
		BaseURL:           cfg.LLMBaseURL,
		Model:             cfg.LLMModel,
		RequestsPerSecond: cfg.LLMRequestsPerSecond,
		MaxRetries:        cfg.LLMMaxRetries,
	})
	return Dependencies{
		Classifier: moderation.NewAggregator(client, cfg.ModerationTimeout()),
		Summarizer: client,
	}
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, deps Dependencies) (*Server, error) {
	defaultSort, err := ranking.ParseMode(cfg.RankingMode, ranking.ModeHot)
	if err != nil {
		return nil, err
	}

	store := repository.NewStore(db)
	notifier := notifications.NewNotifier(redisClient)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("opinara-api"),
		store:          store,
		notifier:       notifier,
	}
	s.userService = service.NewUserService(store, 0)
	s.waveService = service.NewWaveService(store, defaultSort)
	s.postService = service.NewPostService(store, deps.Classifier, deps.Summarizer, notifier, service.PostServiceOptions{
		ClassifyOnCreate: cfg.ModerationOnCreate,
		ClassifyTimeout:  cfg.ModerationTimeout() + 10*time.Second,
	})
	s.commentService = service.NewCommentService(store, notifier, defaultSort)
	s.voteService = service.NewVoteService(store, notifier)

	return s, nil
}

// NewApp builds a Fiber app with the server's middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Opinara API",
		BodyLimit: 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				switch fe.Code {
				case fiber.StatusNotFound:
					return models.RespondWithError(c, &models.AppError{Code: models.ErrCodeNotFound, Message: "Route not found"})
				case fiber.StatusMethodNotAllowed:
					return models.RespondWithError(c, &models.AppError{Code: models.ErrCodeNotFound, Message: "Method not allowed"})
				case fiber.StatusRequestEntityTooLarge, fiber.StatusBadRequest:
					return models.RespondWithError(c, models.NewValidationError(fe.Message))
				}
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
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

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, models.NewRateLimitedError("Too many requests, please try again later"))
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/health/live", s.LivenessCheck)
	api.Get("/health/ready", s.ReadinessCheck)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)

	protected := api.Group("", middleware.AuthRequired(s.config.JWTSecret))

	users := protected.Group("/users")
	users.Get("/me", s.GetMe)
	users.Patch("/me", middleware.RateLimit(s.redis, 10, time.Minute, "update_profile"), s.UpdateMe)
	users.Delete("/me", s.DeleteMe)

	waves := protected.Group("/waves")
	waves.Post("/", middleware.RateLimit(s.redis, 5, time.Hour, "create_wave"), s.CreateWave)
	waves.Get("/:id/posts", s.GetWavePosts)
	waves.Get("/:id", s.GetWave)
	waves.Delete("/:id", s.DeleteWave)

	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/", s.GetMyPosts)
	// Specific /:id/:resource routes before the generic /:id route.
	posts.Post("/:id/classify", middleware.RateLimit(s.redis, 10, time.Minute, "classify"), s.ClassifyPost)
	posts.Post("/:id/summary", middleware.RateLimit(s.redis, 10, time.Minute, "summary"), s.SummarizePost)
	posts.Patch("/:id/vote", middleware.RateLimit(s.redis, 60, time.Minute, "vote"), s.VotePost)
	posts.Post("/:id/comments", middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Get("/:id/comments", s.GetComments)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", s.DeletePost)

	comments := protected.Group("/comments")
	comments.Get("/:id/replies", s.GetReplies)
	comments.Patch("/:id/vote", middleware.RateLimit(s.redis, 60, time.Minute, "vote"), s.VoteComment)
	comments.Delete("/:id", s.DeleteComment)

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Post("/posts/:id/recount", s.RecountPost)
}

// LivenessCheck handles liveness check requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness check requests. Redis is optional: an
// absent client is reported but does not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return models.RespondWithError(c, err)
		}
		user, err := s.userService.GetUser(c.UserContext(), userID)
		if err != nil {
			if models.HasCode(err, models.ErrCodeNotFound) {
				return models.RespondWithError(c, models.NewUnauthorizedError("Account no longer exists"))
			}
			return models.RespondWithError(c, err)
		}
		if !user.IsAdmin {
			return models.RespondWithError(c, models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.NewApp()
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown drains HTTP traffic, waits for background moderation and closes
// the database and Redis connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	done := make(chan struct{})
	go func() {
		s.postService.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		middleware.Logger.Warn("background moderation still running at shutdown")
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
