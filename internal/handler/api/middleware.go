package api

import (
	drepo "SybilScan/internal/domain/repository"
	"SybilScan/internal/service/auth"
	"SybilScan/internal/service/ratelimit"
	xhttp "SybilScan/pkg/http"
	applogger "SybilScan/pkg/logger"

	"github.com/labstack/echo/v4"
)

const ctxAPIKey = "api_key"

// APIKeyAuth validates a bearer key when present and counts its usage. With
// required set, requests without a key are rejected too.
func APIKeyAuth(keys drepo.KeyStore, required bool, l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			key := auth.FromHeader(header)
			if key == "" {
				if required || header != "" {
					return xhttp.UnauthorizedResponse(c, "missing or malformed API key")
				}
				return next(c)
			}

			ctx := c.Request().Context()
			k, ok, err := keys.Get(ctx, key)
			if err != nil {
				l.Error("api key lookup", applogger.Error(err))
				return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("key store unavailable"))
			}
			if !ok {
				return xhttp.UnauthorizedResponse(c, "invalid API key")
			}
			if err := keys.TrackUsage(ctx, key); err != nil {
				l.Warn("api key usage", applogger.String("name", k.Name), applogger.Error(err))
			}
			c.Set(ctxAPIKey, key)
			return next(c)
		}
	}
}

// RateLimit throttles each client with a token bucket keyed by API key, or
// by client IP for anonymous callers.
func RateLimit(limiter *ratelimit.Limiter, l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			client := c.RealIP()
			if key, ok := c.Get(ctxAPIKey).(string); ok && key != "" {
				client = key
			}
			if !limiter.Allow(client) {
				l.Warn("rate limited",
					applogger.String("path", c.Path()),
					applogger.String("ip", c.RealIP()),
					applogger.Bool("keyed", client != c.RealIP()),
				)
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests"))
			}
			return next(c)
		}
	}
}
