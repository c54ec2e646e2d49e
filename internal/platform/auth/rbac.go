package auth

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Role is the closed set of account roles.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string { return string(r) }

// Capability is something a role may do.
type Capability string

const (
	CapBookAppointment    Capability = "appointment:book"
	CapViewOwnSchedule    Capability = "schedule:view-own"
	CapAcceptAppointments Capability = "appointment:accept"
)

var capabilities = map[Role]map[Capability]bool{
	RolePatient: {CapBookAppointment: true},
	RoleDoctor:  {CapViewOwnSchedule: true, CapAcceptAppointments: true},
	// Admins act on behalf of others but are never booked themselves.
	RoleAdmin: {CapBookAppointment: true, CapViewOwnSchedule: true},
}

func (r Role) Can(c Capability) bool {
	return capabilities[r][c]
}

// RequireCapability rejects requests without an authenticated user (401) or
// whose role lacks c (403).
func RequireCapability(c Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			u, ok := UserFromContext(ec.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !u.Role.Can(c) {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("role %s lacks capability %s", u.Role, c))
			}
			return next(ec)
		}
	}
}
