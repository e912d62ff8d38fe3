package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"sprinter/internal/infra/config"
	"sprinter/internal/infra/metrics"
	"sprinter/internal/infra/obs"
)

const (
	apiName    = "Sprinter Prediction API"
	apiVersion = "2.0.0"
)

type Handlers struct {
	Auth         AuthHTTP
	Prediction   PredictionHTTP
	Authenticate gin.HandlerFunc
	AuthLimiter  *RateLimiter
	Metrics      *metrics.Metrics
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.AccessLog())
	if h.Metrics != nil {
		router.Use(h.Metrics.Middleware())
	}
	router.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", "X-Request-ID"},
		AllowCredentials: true,
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "X-Request-ID"},
		MaxAge:           12 * time.Hour,
	}))

	registerSwaggerRoutes(router)

	router.GET("/", root)
	router.GET("/health", health.Health)
	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}

	if h.Auth != nil {
		limited := router.Group("/", h.AuthLimiter.Middleware())
		limited.POST("/signup", h.Auth.Signup)
		limited.POST("/signin", h.Auth.Signin)
	}

	protected := router.Group("/")
	if h.Authenticate != nil {
		protected.Use(h.Authenticate)
	}
	if h.Auth != nil {
		protected.GET("/me", h.Auth.Me)
	}
	if h.Prediction != nil {
		protected.POST("/predict", h.Prediction.Predict)
		history := protected.Group("/predictions")
		history.GET("/history", h.Prediction.History)
		history.GET("/history/:user_id", h.Prediction.UserHistory)
	}
	return router
}

func root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": apiName,
		"status":  "running",
		"version": apiVersion,
	})
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
