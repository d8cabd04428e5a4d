// Package server exposes the feed data-access layer over HTTP.
package server

import (
	"context"
	"fmt"
	"time"

	"glimpse/internal/blob"
	"glimpse/internal/cache"
	"glimpse/internal/config"
	"glimpse/internal/gateway"
	"glimpse/internal/middleware"
	"glimpse/internal/observability"
	"glimpse/internal/session"

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

// Server holds all dependencies and provides handlers.
type Server struct {
	config   *config.Config
	db       *gorm.DB
	redis    *redis.Client
	app      *fiber.App
	prom     *fiberprometheus.FiberPrometheus
	gw       gateway.Gateway
	bus      cache.Bus
	blobs    blob.Store
	sessions *session.Manager
	log      *observability.Logger
}

// NewServer creates a server instance with all dependencies.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := gateway.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := gateway.Migrate(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
	}

	blobs, err := blob.NewLocalStore(cfg.UploadDir, cfg.MediaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("blob store init failed: %w", err)
	}

	return NewServerWithDeps(cfg, gateway.NewGormGateway(db), db, redisClient, blobs)
}

// NewServerWithDeps creates a Server from already-initialized dependencies.
// Used by tests and bootstrap layers that establish their own DB or store.
func NewServerWithDeps(
	cfg *config.Config,
	gw gateway.Gateway,
	db *gorm.DB,
	redisClient *redis.Client,
	blobs blob.Store,
) (*Server, error) {
	log := observability.GlobalLogger

	var bus cache.Bus
	if redisClient != nil {
		bus = cache.NewRedisBus(redisClient, log)
	} else {
		bus = cache.NewLocalBus()
	}

	s := &Server{
		config:   cfg,
		db:       db,
		redis:    redisClient,
		prom:     fiberprometheus.New("glimpse"),
		gw:       gw,
		bus:      bus,
		blobs:    blobs,
		sessions: session.NewManager(gw, cache.DefaultConfig(), bus, blobs, log),
		log:      log,
	}
	return s, nil
}

// session returns the data-access session bound to the request's identity;
// anonymous requests share the anonymous session.
func (s *Server) session(c *fiber.Ctx) *session.Session {
	return s.sessions.Session(middleware.UserID(c))
}

// SetupMiddleware configures the global middleware stack.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger(s.log))

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))

	s.prom.RegisterAt(app, "/metrics")
	app.Use(s.prom.Middleware)
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	app.Static(s.config.MediaBaseURL, s.config.UploadDir)

	api := app.Group("/api")
	secret := s.config.JWTSecret

	// Feed; readable anonymously, the viewer-liked flag just stays false.
	feed := api.Group("/feed", middleware.AuthOptional(secret))
	feed.Get("/", s.GetFeed)
	feed.Post("/more", s.LoadMoreFeed)

	// Posts. Reads are public, writes need an identity.
	posts := api.Group("/posts")
	posts.Get("/:id/comments", middleware.AuthOptional(secret), s.GetComments)
	posts.Get("/:id", middleware.AuthOptional(secret), s.GetPost)
	posts.Post("/", middleware.AuthRequired(secret), s.CreatePost)
	posts.Delete("/:id", middleware.AuthRequired(secret), s.DeletePost)
	posts.Post("/:id/like", middleware.AuthRequired(secret), s.ToggleLike)
	posts.Post("/:id/comments", middleware.AuthRequired(secret), s.AddComment)

	// Profiles.
	profiles := api.Group("/profiles")
	profiles.Get("/me", middleware.AuthRequired(secret), s.GetMyProfile)
	profiles.Put("/me", middleware.AuthRequired(secret), s.UpdateMyProfile)
	profiles.Post("/me/avatar", middleware.AuthRequired(secret), s.UploadAvatar)
	profiles.Get("/search", s.SearchProfiles)
	profiles.Get("/:username", s.GetProfileByUsername)

	// Per-user derived views and the follow edge.
	users := api.Group("/users")
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id/follow-counts", s.GetFollowCounts)
	users.Get("/:id/is-following", middleware.AuthOptional(secret), s.GetIsFollowing)
	users.Post("/:id/follow", middleware.AuthRequired(secret), s.ToggleFollow)

	// Notification inbox.
	notifications := api.Group("/notifications", middleware.AuthRequired(secret))
	notifications.Get("/", s.GetNotifications)
	notifications.Post("/read", s.MarkNotificationsRead)
}

// HealthCheck reports service liveness.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Start builds the fiber app and listens on the configured port.
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName:   "Glimpse API",
		BodyLimit: 10 * 1024 * 1024,
	})
	s.app = app
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.log.Info("server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops the HTTP listener and closes every session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.Close()
	if s.app == nil {
		return nil
	}
	return s.app.ShutdownWithContext(ctx)
}
