package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebook/booking/internal/platform/auth"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid := c.Get("request_id").(string)
		if rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if rid := c.Get("request_id").(string); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}

	RequestID()(handler)(c)
	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_ReplacesOversized(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	RequestID()(func(c echo.Context) error { return nil })(c)
	if _, err := uuid.Parse(rec.Header().Get(RequestIDHeader)); err != nil {
		t.Errorf("expected generated uuid, got %q", rec.Header().Get(RequestIDHeader))
	}
}

func logLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return line
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/booking", nil)
	userID := uuid.New()
	req = req.WithContext(auth.WithUser(req.Context(), auth.User{ID: userID, Role: auth.RolePatient}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-123")

	err := Logger(zerolog.New(&buf))(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := logLine(t, &buf)
	if line["level"] != "info" {
		t.Errorf("expected info level, got %v", line["level"])
	}
	if line["request_id"] != "req-123" || line["path"] != "/api/v1/booking" {
		t.Errorf("unexpected log line %v", line)
	}
	if line["user_id"] != userID.String() || line["role"] != "patient" {
		t.Errorf("expected user fields, got %v", line)
	}
	if line["status"] != float64(200) {
		t.Errorf("expected status 200, got %v", line["status"])
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
		wantCode  float64
	}{
		{"client error", echo.NewHTTPError(http.StatusConflict, "taken"), "warn", 409},
		{"server error", echo.NewHTTPError(http.StatusInternalServerError, "boom"), "error", 500},
		{"plain error", errors.New("boom"), "error", 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			e := echo.New()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())

			Logger(zerolog.New(&buf))(func(c echo.Context) error { return tt.err })(c)

			line := logLine(t, &buf)
			if line["level"] != tt.wantLevel {
				t.Errorf("expected level %s, got %v", tt.wantLevel, line["level"])
			}
			if line["status"] != tt.wantCode {
				t.Errorf("expected status %v, got %v", tt.wantCode, line["status"])
			}
		})
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/panic", nil), httptest.NewRecorder())
	c.Set("request_id", "req-9")

	err := Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("test panic")
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
	line := logLine(t, &buf)
	if line["panic"] != "test panic" || line["request_id"] != "req-9" {
		t.Errorf("unexpected log line %v", line)
	}
	if stack, _ := line["stack"].(string); !strings.Contains(stack, "goroutine") {
		t.Errorf("expected stack trace, got %q", stack)
	}
}

func TestLogger_SkipsHealthProbes(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/db", nil), httptest.NewRecorder())

	Logger(zerolog.New(&buf))(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	if buf.Len() != 0 {
		t.Errorf("expected no log line for health probe, got %s", buf.String())
	}
}

func TestLogger_RouteTemplate(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	id := uuid.NewString()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/appointments/"+id, nil), httptest.NewRecorder())
	c.SetPath("/api/v1/appointments/:id")

	Logger(zerolog.New(&buf))(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)

	line := logLine(t, &buf)
	if line["route"] != "/api/v1/appointments/:id" {
		t.Errorf("expected route template, got %v", line["route"])
	}
	if line["path"] != "/api/v1/appointments/"+id {
		t.Errorf("expected concrete path, got %v", line["path"])
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		status int
		err    error
		want   zerolog.Level
	}{
		{200, nil, zerolog.InfoLevel},
		{201, nil, zerolog.InfoLevel},
		{404, echo.ErrNotFound, zerolog.WarnLevel},
		{422, nil, zerolog.WarnLevel},
		{503, nil, zerolog.ErrorLevel},
		{200, errors.New("write failed"), zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := levelFor(tt.status, tt.err); got != tt.want {
			t.Errorf("levelFor(%d, %v) = %s, want %s", tt.status, tt.err, got, tt.want)
		}
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ok", nil), httptest.NewRecorder())

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
