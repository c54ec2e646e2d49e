package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const userKey contextKey = "auth_user"

// User is the authenticated caller.
type User struct {
	ID   uuid.UUID
	Role Role
}

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
}

// DevUserID is the caller assumed by DevAuthMiddleware when no identity is given.
var DevUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

func (cfg JWTConfig) parse(tokenStr string) (User, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return User{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return User{}, echo.NewHTTPError(http.StatusUnauthorized, "token subject is not a user id")
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return User{}, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return User{ID: id, Role: role}, nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return token, nil
}

// JWTMiddleware authenticates HS256 bearer tokens whose subject is the user
// id and whose role claim is one of the known roles.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := bearerToken(c.Request().Header.Get("Authorization"))
			if err != nil {
				return err
			}
			u, err := cfg.parse(tokenStr)
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(WithUser(c.Request().Context(), u)))
			return next(c)
		}
	}
}

// DevAuthMiddleware validates a bearer token when one is sent. Otherwise the
// caller is taken from X-Dev-User and X-Dev-Role, defaulting to DevUserID as
// a patient.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	strict := JWTMiddleware(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		checked := strict(next)
		return func(c echo.Context) error {
			req := c.Request()
			if req.Header.Get("Authorization") != "" {
				return checked(c)
			}

			u := User{ID: DevUserID, Role: RolePatient}
			if v := req.Header.Get("X-Dev-User"); v != "" {
				id, err := uuid.Parse(v)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "X-Dev-User is not a user id")
				}
				u.ID = id
			}
			if v := req.Header.Get("X-Dev-Role"); v != "" {
				role, err := ParseRole(v)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
				}
				u.Role = role
			}
			c.SetRequest(req.WithContext(WithUser(req.Context(), u)))
			return next(c)
		}
	}
}
