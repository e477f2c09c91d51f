package router

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/meucuidador/care-api/internal/handler/health"
	"github.com/meucuidador/care-api/internal/handler/prometheus"
	"github.com/meucuidador/care-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine      *gin.Engine
	auth        *middleware.AuthMiddleware
	resolver    middleware.ContextResolver
	authH       Handler
	caregiverH  Handler
	userH       Handler
	notifH      Handler
	healthH     *health.Handler
	prometheusH *prometheus.Handler
	config      RouterConfig
	logger      zerolog.Logger
}

type RouterConfig struct {
	Mode             string
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	MetricsEnabled   bool
}

type Handlers struct {
	Auth         Handler
	Caregiver    Handler
	User         Handler
	Notification Handler
	Health       *health.Handler
	Prometheus   *prometheus.Handler
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	resolver middleware.ContextResolver,
	handlers Handlers,
	config RouterConfig,
	logger zerolog.Logger,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New() // Use New() instead of Default() for more control

	r := &Router{
		engine:      engine,
		auth:        auth,
		resolver:    resolver,
		authH:       handlers.Auth,
		caregiverH:  handlers.Caregiver,
		userH:       handlers.User,
		notifH:      handlers.Notification,
		healthH:     handlers.Health,
		prometheusH: handlers.Prometheus,
		config:      config,
		logger:      logger,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logger(logger),
		middleware.ErrorHandler(logger),
	)
	if config.MetricsEnabled && r.prometheusH != nil {
		engine.Use(r.prometheusH.Middleware())
	}
	engine.Use(
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
	)

	return r
}

func (r *Router) Setup() *gin.Engine {
	if r.healthH != nil {
		r.healthH.RegisterRoutes(r.engine)
	}
	if r.config.MetricsEnabled && r.prometheusH != nil {
		r.engine.GET("/metrics", r.prometheusH.Handler())
	}

	api := r.engine.Group("/api")
	api.Use(middleware.SizeLimit(middleware.DefaultSizeLimitConfig()))
	if r.config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  r.config.RateLimit,
			Burst: r.config.RateBurst,
		})
		api.Use(rateLimiter.RateLimit())
	}

	// Public routes
	r.authH.RegisterRoutes(api)

	// Protected routes; responses depend on who is asking and whose
	// records they are viewing.
	protected := api.Group("")
	protected.Use(
		r.auth.Authenticate(),
		middleware.PatientContext(r.resolver),
		middleware.Cache(middleware.PatientScopedCacheConfig()),
	)
	r.caregiverH.RegisterRoutes(protected)
	r.userH.RegisterRoutes(protected)
	r.notifH.RegisterRoutes(protected)

	return r.engine
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
