package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/groundwatch/groundwatch/internal/api/models"
)

// RateLimitConfig allows RequestLimit requests per client in each
// WindowLength.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Per-route limits.
var (
	// EstimateRateLimit applies to batch estimates and transects (30 req/min).
	EstimateRateLimit = RateLimitConfig{
		RequestLimit: 30,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to single estimates and lookups (120 req/min).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 120,
		WindowLength: time.Minute,
	}
)

// PerMinute returns a config allowing n requests per minute.
func PerMinute(n int) RateLimitConfig {
	return RateLimitConfig{RequestLimit: n, WindowLength: time.Minute}
}

// RateLimitByIP limits requests per client address. Behind a proxy it relies
// on chi's RealIP having rewritten RemoteAddr.
//
// Rejected requests get a 429 problem with Retry-After set to the whole
// window, since httprate does not expose when the current window resets.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(cfg.WindowLength.Seconds())))

	onLimited := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", retryAfter)
		models.NewTooManyRequests(GetRequestID(r.Context()), "rate limit exceeded, retry after "+retryAfter+"s").
			WithInstance(r.URL.Path).
			Write(w)
	}

	return httprate.Limit(cfg.RequestLimit, cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(onLimited),
	)
}
