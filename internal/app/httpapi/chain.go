package httpapi

import (
	"net/http"

	"github.com/R3E-Network/microblog/internal/app/metrics"
	"github.com/R3E-Network/microblog/internal/middleware"
	"github.com/R3E-Network/microblog/pkg/logger"
)

// ChainOptions configures the middleware applied around the router.
type ChainOptions struct {
	Logger      *logger.Logger
	CORSOrigins []string
	RateLimiter *middleware.RateLimiter
}

// Wrap applies recovery, tracing, metrics, CORS and rate limiting around h.
// Recovery is the outermost layer.
func Wrap(h http.Handler, opts ChainOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("http")
	}

	if opts.RateLimiter != nil {
		h = opts.RateLimiter.Handler(h)
	}
	if len(opts.CORSOrigins) > 0 {
		h = middleware.NewCORSMiddleware(opts.CORSOrigins).Handler(h)
	}
	h = metrics.InstrumentHandler(h)
	h = middleware.NewTracingMiddleware(log).Handler(h)
	return middleware.Recovery(log)(h)
}
