package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medq/medq/pkg/models"
)

func newTestHandler(dev bool) (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	svc.CreateUser(context.Background(), "drsmith", "smith@example.com", "secret1", models.RoleDoctor)
	return NewHandler(svc, dev), echo.New()
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_Login(t *testing.T) {
	h, e := newTestHandler(true)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(`{"username":"drsmith","password":"secret1"}`), rec)

	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res models.LoginResult
	env := models.Envelope{Data: &res}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Message != "Login successful" || res.Token == "" || res.User.Username != "drsmith" {
		t.Errorf("unexpected response %+v %+v", env, res)
	}
	if strings.Contains(rec.Body.String(), "hashed_password") || strings.Contains(rec.Body.String(), "$2a$") {
		t.Error("password hash must never be serialised")
	}
}

func TestHandler_Login_WrongPassword(t *testing.T) {
	h, e := newTestHandler(true)
	c := e.NewContext(jsonRequest(`{"username":"drsmith","password":"nope"}`), httptest.NewRecorder())

	err := h.Login(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
	if httpErr.Message != "Incorrect username or password" {
		t.Errorf("unexpected message %v", httpErr.Message)
	}
}

func TestHandler_Me(t *testing.T) {
	h, e := newTestHandler(true)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.Set("username", "drsmith")

	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "User information retrieved") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_Me_Unauthenticated(t *testing.T) {
	h, e := newTestHandler(true)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := h.Me(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestHandler_Logout(t *testing.T) {
	h, e := newTestHandler(true)
	rec := httptest.NewRecorder()
	if err := h.Logout(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Logged out successfully") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_CreateAdmin(t *testing.T) {
	h, e := newTestHandler(false)
	err := h.CreateAdmin(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 outside development, got %v", err)
	}

	h, e = newTestHandler(true)
	rec := httptest.NewRecorder()
	if err := h.CreateAdmin(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Admin user created successfully") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.CreateAdmin(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec))
	if !strings.Contains(rec.Body.String(), "Admin user already exists") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
