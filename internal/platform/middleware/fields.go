package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebook/booking/internal/platform/auth"
)

// withRequest adds the fields shared by every per-request log line. The
// caller is only known once the auth middleware inside the group has run.
func withRequest(evt *zerolog.Event, c echo.Context) *zerolog.Event {
	req := c.Request()
	rid, _ := c.Get("request_id").(string)
	evt = evt.Str("request_id", rid).Str("method", req.Method).Str("path", req.URL.Path)
	if route := c.Path(); route != "" && route != req.URL.Path {
		evt = evt.Str("route", route)
	}
	if u, ok := auth.UserFromContext(req.Context()); ok {
		evt = evt.Str("user_id", u.ID.String()).Str("role", u.Role.String())
	}
	return evt
}
