package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/IlyacloudDev/QuickTalk/app/config"
	"github.com/IlyacloudDev/QuickTalk/internal/adapters"
	"github.com/IlyacloudDev/QuickTalk/internal/handlers"
	"github.com/IlyacloudDev/QuickTalk/internal/realtime"
	"github.com/IlyacloudDev/QuickTalk/internal/repositories"
	"github.com/IlyacloudDev/QuickTalk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"
)

type Container struct {
	isShuttingDown bool

	GinEngine   *gin.Engine
	Config      *config.Config
	Redis       *redis.Client
	RateLimiter *RateLimiter

	Metrics         *Metrics
	RealtimeMetrics *realtime.Metrics
	Logger          *slog.Logger
	TracerProvider  *tracesdk.TracerProvider
	Tracer          trace.Tracer

	Server *http.Server

	Repository *repositories.RepositoryAdapter

	AuthService *services.AuthService
	ChatService *services.ChatService
	UserService *services.UserService

	Registry *realtime.Registry
	Router   *realtime.Router

	AuthHandler    *handlers.AuthHandler
	ChatHandler    *handlers.ChatHandler
	UserHandler    *handlers.UserHandler
	GatewayHandler *handlers.GatewayHandler
}

func NewContainer() (*Container, error) {
	container := &Container{}

	if err := container.initCore(); err != nil {
		return nil, err
	}

	if err := container.initProductionFeatures(); err != nil {
		return nil, err
	}

	return container, nil
}

func (c *Container) initCore() error {
	var cfg, err = config.LoadConfig()
	if err != nil {
		return err
	}
	c.Config = &cfg

	c.Logger = c.initLogger()
	c.Redis = c.initRedis()

	if err = c.initTracing(); err != nil {
		return err
	}

	c.Repository, err = repositories.NewRepositoryAdapter(cfg.Database, c.Logger)
	if err != nil {
		c.Logger.Error("repository initialize error", "error", err.Error())
		return err
	}

	c.RealtimeMetrics = realtime.NewMetrics()

	c.Registry = realtime.NewRegistry(c.RealtimeMetrics, c.Logger)
	c.Router = realtime.NewRouter(c.Repository.Chat, c.Repository.Message, c.RealtimeMetrics, c.Logger)

	c.ChatService = services.NewChatService(c.Repository.Chat, c.Repository.Message, c.Repository.User, c.Logger)
	c.ChatService.SetRealtimeBridge(realtime.NewBridge(c.Registry, c.Router))

	c.UserService = services.NewUserService(c.Repository.User, &services.BcryptHasher{}, c.Logger)
	c.AuthService = services.NewAuthService(c.Repository.User, &services.BcryptHasher{}, adapters.NewRedisTokenRepository(c.Redis), []byte(cfg.JWT.SecretKey), c.Logger)

	c.RateLimiter = NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)

	c.AuthHandler = handlers.NewAuthHandler(c.AuthService, c.Logger, c.Tracer)
	c.ChatHandler = handlers.NewChatHandler(c.ChatService, c.Logger, c.Tracer)
	c.UserHandler = handlers.NewUserHandler(c.UserService, c.Logger)
	c.GatewayHandler = handlers.NewGatewayHandler(c.Router, c.Registry, c.AuthService, c.Logger)

	c.Server = c.initServer()
	c.GinEngine = c.initGinEngine()
	c.Server.Handler = c.GinEngine

	return nil
}

func (c *Container) initProductionFeatures() error {
	c.initMetrics()

	c.initHealthRoutes(c.GinEngine)

	c.GinEngine.Use(services.SecurityMiddleware())
	c.GinEngine.Use(services.RequestIDMiddleware())

	return nil
}

func (c *Container) initMetrics() {
	c.Metrics = &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request duration",
			},
			[]string{"method", "endpoint"},
		),
	}
	prometheus.MustRegister(c.Metrics.RequestsTotal, c.Metrics.RequestDuration)

	c.RealtimeMetrics.Register(prometheus.DefaultRegisterer)

	c.GinEngine.Use(MetricsMiddleware(c.Metrics))
	c.GinEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (c *Container) initTracing() error {
	if !c.Config.Tracing.Enabled {
		c.Logger.Info("tracing disabled")
		return nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(c.Config.Tracing.Endpoint)))
	if err != nil {
		return err
	}

	c.TracerProvider = tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(c.Config.Tracing.ServiceName),
			attribute.String("environment", c.Config.Environment.Current),
		)),
	)

	otel.SetTracerProvider(c.TracerProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	c.Tracer = c.TracerProvider.Tracer("quicktalk-app")

	c.Logger.Info("tracing initialized", "endpoint", c.Config.Tracing.Endpoint)
	return nil
}

func (c *Container) initHealthRoutes(eng *gin.Engine) {
	eng.GET("/health", func(ctx *gin.Context) {
		health := map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		if err := c.Repository.HealthCheck(ctx); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			ctx.JSON(503, health)
			return
		}

		if err := c.Redis.Ping().Err(); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			ctx.JSON(503, health)
			return
		}

		health["database"] = "healthy"
		health["redis"] = "healthy"
		ctx.JSON(200, health)
	})

	eng.GET("/ready", func(ctx *gin.Context) {
		if c.isShuttingDown {
			ctx.JSON(503, gin.H{"status": "shutting down"})
			return
		}
		ctx.JSON(200, gin.H{"status": "ready"})
	})

	eng.GET("/live", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "live"})
	})
}

func (c *Container) initGinEngine() *gin.Engine {
	var eng = gin.Default()

	eng.Use(otelgin.Middleware(c.Config.Tracing.ServiceName))

	api := eng.Group("/api")

	api.Use(RateLimitMiddleware(c.RateLimiter))
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", c.AuthHandler.Register)
			authGroup.POST("/login", c.AuthHandler.Login)
			authGroup.POST("/logout", c.AuthHandler.AuthMiddleware(), c.AuthHandler.Logout)
		}

		usersGroup := api.Group("/users")
		usersGroup.Use(c.AuthHandler.AuthMiddleware())
		{
			usersGroup.GET("/me", c.UserHandler.Me)
			usersGroup.PUT("/me", c.UserHandler.UpdateMe)
			usersGroup.GET("/search", c.UserHandler.Search)
		}

		chatsGroup := api.Group("/chats")
		chatsGroup.Use(c.AuthHandler.AuthMiddleware())
		{
			chatsGroup.POST("/group", c.ChatHandler.CreateGroupChat)
			chatsGroup.POST("/personal", c.ChatHandler.CreatePersonalChat)
			chatsGroup.GET("", c.ChatHandler.GetUserChats)
			chatsGroup.GET("/search", c.ChatHandler.Search)
			chatsGroup.GET("/:chatId", c.ChatHandler.GetChatDetail)
			chatsGroup.GET("/:chatId/messages", c.ChatHandler.GetChatMessages)
			chatsGroup.PUT("/:chatId", c.ChatHandler.UpdateChat)
			chatsGroup.DELETE("/:chatId", c.ChatHandler.DeleteChat)
			chatsGroup.POST("/:chatId/join", c.ChatHandler.JoinChat)
		}

		api.GET("/ws/chats/:chatId", c.GatewayHandler.HandleWebSocket)
	}

	return eng
}

func (c *Container) initLogger() *slog.Logger {
	var logger *slog.Logger
	if c.Config.Environment.Current == "development" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	slog.SetDefault(logger)
	return logger
}

func (c *Container) initRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
}

func (c *Container) initServer() *http.Server {
	return &http.Server{
		Addr:         ":" + c.Config.Server.Port,
		ReadTimeout:  time.Duration(c.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(c.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(c.Config.Server.IdleTimeout) * time.Second,
	}
}

func (c *Container) Close() error {
	c.isShuttingDown = true

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Error("failed to close redis client", "error", err)
		}
	}

	if c.Repository != nil {
		if err := c.Repository.Close(); err != nil {
			c.Logger.Error("failed to close repository", "error", err)
		}
	}

	if c.TracerProvider != nil {
		if err := c.TracerProvider.Shutdown(context.Background()); err != nil {
			c.Logger.Error("failed to shutdown tracer provider", "error", err)
		}
	}

	return nil
}
