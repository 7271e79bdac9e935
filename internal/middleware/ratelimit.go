package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/logger"
	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/ratelimit"
	"github.com/zhanikpanik/restaurant-checklist-sub001/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RateLimit applies one rate limit policy to a route. Requests are counted
// per restaurant when the restaurant cookie is present, per client IP
// otherwise. Every response carries the X-RateLimit-* headers; rejections get
// a 429 with machine-readable retry timing.
func RateLimit(limiter *ratelimit.Limiter, cfg ratelimit.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identifier := rateLimitIdentifier(c)
			endpoint := c.Path()

			result := limiter.Check(c.Request().Context(), identifier, endpoint, cfg)

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			header.Set("X-RateLimit-Reset", result.ResetAt.UTC().Format(time.RFC3339))

			if !result.Allowed {
				retryAfter := int(time.Until(result.ResetAt).Seconds()) + 1
				if retryAfter < 1 {
					retryAfter = 1
				}
				header.Set("Retry-After", strconv.Itoa(retryAfter))

				prometheus.RateLimitHitsCounter.WithLabelValues(endpoint).Inc()
				logger.FromContext(c).Warn("Rate limit exceeded",
					zap.String("identifier", identifier),
					zap.String("endpoint", endpoint),
					zap.Time("reset_at", result.ResetAt))

				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"success":     false,
					"error":       "Too many requests",
					"message":     "Rate limit exceeded, retry later",
					"retry_after": retryAfter,
					"reset_at":    result.ResetAt.UTC().Format(time.RFC3339),
				})
			}

			return next(c)
		}
	}
}

// rateLimitIdentifier prefers the restaurant identity over the client IP so
// one busy restaurant cannot eat another's quota behind a shared NAT
func rateLimitIdentifier(c echo.Context) string {
	if cookie, err := c.Cookie(RestaurantCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return c.RealIP()
}
