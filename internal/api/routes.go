package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger *slog.Logger

	// RateLimit is the sustained requests per second; 0 disables limiting.
	RateLimit float64
	RateBurst int

	// Metrics, when set, is served at /metrics.
	Metrics http.Handler
}

// RegisterRoutes adds the zoning endpoints to rg.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.GET("/health", h.HandleHealth)
	rg.GET("/zoning", h.HandleZoning)
}

// NewRouter builds the HTTP handler for the service.
func NewRouter(h *Handlers, opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(opts.Logger))

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	rg := r.Group("/")
	if opts.RateLimit > 0 {
		burst := max(opts.RateBurst, 1)
		rg.Use(RateLimitMiddleware(rate.NewLimiter(rate.Limit(opts.RateLimit), burst)))
	}
	RegisterRoutes(rg, h)
	return r
}
