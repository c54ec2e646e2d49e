package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testCookie = CookieConfig{Name: "booking_session", TTL: 2 * time.Hour}

func serve(t *testing.T, cookie *http.Cookie) (string, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	err := Middleware(testCookie)(func(c echo.Context) error {
		seen = IDFromContext(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})(c)
	if err != nil {
		t.Fatalf("middleware error: %v", err)
	}
	return seen, rec
}

func TestMiddleware_IssuesCookie(t *testing.T) {
	id, rec := serve(t, nil)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected uuid session id, got %q", id)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	ck := cookies[0]
	if ck.Name != "booking_session" || ck.Value != id {
		t.Errorf("unexpected cookie %s=%s", ck.Name, ck.Value)
	}
	if !ck.HttpOnly {
		t.Error("expected HttpOnly cookie")
	}
	if ck.MaxAge != 7200 {
		t.Errorf("expected MaxAge 7200, got %d", ck.MaxAge)
	}
}

func TestMiddleware_ReusesCookie(t *testing.T) {
	existing := uuid.NewString()
	id, _ := serve(t, &http.Cookie{Name: "booking_session", Value: existing})
	if id != existing {
		t.Errorf("expected %s, got %s", existing, id)
	}
}

func TestMiddleware_ReplacesMalformedCookie(t *testing.T) {
	id, _ := serve(t, &http.Cookie{Name: "booking_session", Value: "'; DROP TABLE"})
	if id == "'; DROP TABLE" {
		t.Fatal("malformed cookie must not be used as session id")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("expected fresh uuid, got %q", id)
	}
}

func TestIDFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := IDFromContext(req.Context()); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
}
