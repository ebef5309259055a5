package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/duetapp/notify-api/internal/handler"
	"github.com/duetapp/notify-api/internal/middleware"
	"github.com/duetapp/notify-api/pkg/metrics"
)

// Handler registers its routes on a group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
}

type Router struct {
	engine        *gin.Engine
	auth          *middleware.AuthMiddleware
	notificationH Handler
	subscriptionH Handler
	presenceH     Handler
	wsH           Handler
	healthH       *handler.HealthHandler
	metrics       *metrics.Metrics
	config        Config
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	notificationH Handler,
	subscriptionH Handler,
	presenceH Handler,
	wsH Handler,
	healthH *handler.HealthHandler,
	m *metrics.Metrics,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	return &Router{
		engine:        gin.New(),
		auth:          auth,
		notificationH: notificationH,
		subscriptionH: subscriptionH,
		presenceH:     presenceH,
		wsH:           wsH,
		healthH:       healthH,
		metrics:       m,
		config:        config,
	}
}

func (r *Router) Setup() {
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger())
	r.engine.Use(middleware.Recovery())
	if r.metrics != nil {
		r.engine.Use(middleware.Metrics(r.metrics))
	}

	if r.config.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  r.config.RateLimit,
			Burst: r.config.RateBurst,
		})
		r.engine.Use(limiter.RateLimit())
	}

	r.engine.GET("/healthz", r.healthH.Health)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")
	api.Use(r.auth.Authenticate())

	r.notificationH.RegisterRoutes(api)
	r.subscriptionH.RegisterRoutes(api)
	r.presenceH.RegisterRoutes(api)
	r.wsH.RegisterRoutes(api)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
