package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type LoggerConfig struct {
	// Skip suppresses the line for matching requests.
	Skip func(c echo.Context) bool
}

// Logger writes one line per request and leaves health probes out.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return LoggerWithConfig(logger, LoggerConfig{Skip: isProbe})
}

func LoggerWithConfig(logger zerolog.Logger, cfg LoggerConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skip != nil && cfg.Skip(c) {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := statusOf(c, err)
			evt := logger.WithLevel(levelFor(status, err))
			if err != nil {
				evt = evt.Err(err)
			}
			withRequest(evt, c).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")
			return err
		}
	}
}

func isProbe(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/health")
}

// statusOf reports the status the error handler is about to write, which is
// not on the response yet when a handler returns an *echo.HTTPError.
func statusOf(c echo.Context, err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return c.Response().Status
}

// levelFor logs client mistakes at Warn and failures at Error. A plain error
// with a success status is still a failure.
func levelFor(status int, err error) zerolog.Level {
	switch {
	case status >= 500, err != nil && status < 400:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
