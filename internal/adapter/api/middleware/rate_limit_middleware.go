package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"recipehub/internal/infrastructure/ratelimit"
	"recipehub/pkg/errors"
	"recipehub/pkg/logger"
	"recipehub/pkg/response"
)

// RateLimit throttles a route per user and action. It must run after
// Authenticate. Anonymous requests fall back to the client IP.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil {
				return next(c)
			}

			key := UserID(c)
			if key == "" {
				key = c.RealIP()
			}

			allowed, wait := limiter.Allow(key, action)
			if !allowed {
				logger.Warn("RATE LIMIT: %s blocked on %s (retry in %v)", key, action, wait)
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded"))
			}
			return next(c)
		}
	}
}
