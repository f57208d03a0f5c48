package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	healthHandler "github.com/waflow/waflow/internal/handler/health"
	"github.com/waflow/waflow/internal/middleware"
	"github.com/waflow/waflow/pkg/auth"
)

// Handler is anything that mounts routes on a group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
}

type Router struct {
	engine   *gin.Engine
	tokens   *auth.TokenService
	healthH  *healthHandler.Handler
	authH    Handler
	webhookH Handler
	// protected mounts behind the auth middleware
	protected []Handler
}

func New(
	tokens *auth.TokenService,
	healthH *healthHandler.Handler,
	authH Handler,
	webhookH Handler,
	config Config,
	protected ...Handler,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	)

	if config.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	return &Router{
		engine:    engine,
		tokens:    tokens,
		healthH:   healthH,
		authH:     authH,
		webhookH:  webhookH,
		protected: protected,
	}
}

func (r *Router) Setup() {
	r.healthH.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")

	// Public: login, registration and the provider webhook endpoint.
	r.authH.RegisterRoutes(api)
	r.webhookH.RegisterRoutes(api)

	authed := api.Group("")
	authed.Use(middleware.Auth(r.tokens))
	for _, h := range r.protected {
		h.RegisterRoutes(authed)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
