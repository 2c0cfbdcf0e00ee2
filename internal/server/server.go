package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"localmart/config"
	"localmart/internal/handler"
	"localmart/internal/middleware"
	"localmart/internal/notify"
	localredis "localmart/internal/redis"
	"localmart/internal/transport/httpdto"
	"localmart/pkg/database"
	"localmart/pkg/logger"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Booking *handler.BookingHandler
	Events  *notify.Handler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, limiter *localredis.RateLimiter, redisClient *goredis.Client) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		if redisClient != nil {
			if err := localredis.HealthCheck(c.Request.Context(), redisClient); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	authn := middleware.AuthMiddleware(s.config.JWTSecret)

	// SSE stream of invalidation events for the authenticated user.
	s.engine.GET("/api/events", authn, handlers.Events.Events)

	bookings := s.engine.Group("/v1/bookings", authn)
	{
		bookings.GET("", handlers.Booking.ListMine)
		bookings.GET("/:id", handlers.Booking.GetByID)

		mutations := bookings.Group("")
		if limiter != nil {
			mutations.Use(middleware.BookingRateLimitMiddleware(limiter))
		}
		mutations.POST("", handlers.Booking.Create)
		mutations.POST("/:id/accept", handlers.Booking.Accept)
		mutations.POST("/:id/reject", handlers.Booking.Reject)
		mutations.POST("/:id/reschedule", handlers.Booking.Reschedule)
		mutations.POST("/:id/reschedule/answer", handlers.Booking.AnswerReschedule)
		mutations.POST("/:id/en-route", handlers.Booking.MarkEnRoute)
		mutations.POST("/:id/complete", handlers.Booking.Complete)
		mutations.POST("/:id/dispute", handlers.Booking.Dispute)
		mutations.POST("/:id/cancel", handlers.Booking.Cancel)
		mutations.POST("/:id/payment", handlers.Booking.StartPayment)
		mutations.POST("/:id/payment/settle", middleware.RequireRole("admin"), handlers.Booking.SettlePayment)
		mutations.POST("/:id/resolve", middleware.RequireRole("admin"), handlers.Booking.ResolveDispute)
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}
