// Package server contains the HTTP handlers and wiring for the posts API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/7930navid/posts-server/internal/cache"
	"github.com/7930navid/posts-server/internal/config"
	"github.com/7930navid/posts-server/internal/database"
	"github.com/7930navid/posts-server/internal/keepalive"
	"github.com/7930navid/posts-server/internal/middleware"
	"github.com/7930navid/posts-server/internal/models"
	"github.com/7930navid/posts-server/internal/observability"
	"github.com/7930navid/posts-server/internal/repository"
	"github.com/7930navid/posts-server/internal/service"
	"github.com/7930navid/posts-server/internal/shard"
)

const serviceName = "posts-server"

type Server struct {
	config         *config.Config
	stores         []*database.Store
	usersDB        *gorm.DB
	redis          *redis.Client
	router         *shard.Router
	monitor        *keepalive.Monitor
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	postService    *service.PostService
	authService    *service.AuthService
}

// NewServer connects every store, creates the posts table where it can and
// wires the HTTP layer.
func NewServer(cfg *config.Config) (*Server, error) {
	stores, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("posts store connection failed: %w", err)
	}

	usersDB, err := database.ConnectUsers(cfg)
	if err != nil {
		_ = database.Close(stores)
		return nil, fmt.Errorf("users store connection failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(len(stores)+1)*cfg.QueryTimeout)
	defer cancel()
	if err := database.InitStores(ctx, stores, cfg.DBInitFailFast); err != nil {
		_ = database.Close(stores)
		return nil, fmt.Errorf("posts table initialization failed: %w", err)
	}

	cache.PostsListTTL = cfg.CacheTTL
	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, stores, usersDB, cache.GetClient())
}

// NewServerWithDeps wires a server over already opened stores. usersDB and
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, stores []*database.Store, usersDB *gorm.DB, redisClient *redis.Client) (*Server, error) {
	router, err := shard.NewRouter(shard.RouterConfig{
		Strategy:     cfg.PartitionStrategy,
		Stores:       len(stores),
		RingReplicas: cfg.RingReplicas,
		QueryTimeout: cfg.QueryTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("shard router: %w", err)
	}

	var userRepo repository.UserRepository
	if usersDB != nil {
		userRepo = repository.NewUserRepository(usersDB)
	}

	targets := make([]keepalive.Target, len(stores))
	for i, st := range stores {
		targets[i] = keepalive.Target{Index: st.Index, Name: st.Name, Ping: st.Ping}
	}

	s := &Server{
		config:         cfg,
		stores:         stores,
		usersDB:        usersDB,
		redis:          redisClient,
		router:         router,
		monitor:        keepalive.NewMonitor(targets, cfg.KeepAliveInterval, keepalive.WithTimeout(cfg.QueryTimeout)),
		promMiddleware: observability.HTTPMetrics(serviceName),
	}
	s.postService = service.NewPostService(repository.NewPostRepository(database.DBs(stores), router))
	s.authService = service.NewAuthService(userRepo)

	middleware.Logger.Info("Shard router ready",
		slog.String("strategy", router.Strategy()),
		slog.Int("stores", router.Size()),
	)
	return s, nil
}

// NewApp builds the Fiber app with middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      serviceName,
		UnescapePath: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Message: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "Unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "https://7930navid.github.io"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: strings.Join([]string{
			fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete, fiber.MethodOptions,
		}, ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       86400,
	}))

	perMinute := s.config.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 100
	}
	app.Use(limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), "/health") || c.Path() == "/metrics"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Message: "Too many requests, please try again later.",
			})
		},
	}))
}

func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/", s.Root)

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health/stores", s.StoresCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Post("/post", s.CreatePost)
	app.Get("/post", s.GetPosts)
	app.Get("/posts", s.GetUserPosts)
	app.Put("/post/:email/:id", s.UpdatePost)
	app.Delete("/post/:email/:id", s.DeletePost)

	app.Put("/edituserposts/:email", s.EditUserPosts)
	app.Delete("/deleteuserposts/:email", s.DeleteUserPosts)
	app.Delete("/deleteuser/:email", s.DeleteUser)

	app.Post("/verify-password", s.VerifyPassword)
}

// Start runs the keep-alive monitor and serves HTTP until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()
	s.monitor.Start(s.shutdownCtx)

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}
	s.monitor.Stop()

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := database.Close(s.stores); err != nil {
		middleware.Logger.Error("error closing posts stores", slog.String("error", err.Error()))
	}
	if s.usersDB != nil {
		if sqlDB, err := s.usersDB.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				middleware.Logger.Error("error closing users store", slog.String("error", cerr.Error()))
			}
		}
	}

	cache.Close()

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
