package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func contextWithRoles(req *http.Request, roles ...string) *http.Request {
	return req.WithContext(WithIdentity(req.Context(), uuid.New(), roles))
}

func TestRequireRole_Allowed(t *testing.T) {
	e := echo.New()
	req := contextWithRoles(httptest.NewRequest(http.MethodGet, "/", nil), RoleDoctor)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequireRole(RoleDoctor)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	e := echo.New()
	req := contextWithRoles(httptest.NewRequest(http.MethodGet, "/", nil), RolePatient)
	c := e.NewContext(req, httptest.NewRecorder())

	h := RequireRole(RoleDoctor)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	err := h(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireRole_AnyOf(t *testing.T) {
	e := echo.New()
	req := contextWithRoles(httptest.NewRequest(http.MethodPost, "/", nil), RolePatient)
	c := e.NewContext(req, httptest.NewRecorder())

	h := RequireRole(RoleDoctor, RolePatient)(func(c echo.Context) error { return nil })
	if err := h(c); err != nil {
		t.Errorf("expected patient to satisfy doctor-or-patient, got %v", err)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	e := echo.New()
	req := contextWithRoles(httptest.NewRequest(http.MethodGet, "/", nil), RoleAdmin)
	c := e.NewContext(req, httptest.NewRecorder())

	h := RequireRole(RoleDoctor)(func(c echo.Context) error { return nil })
	if err := h(c); err != nil {
		t.Error("admin should bypass role checks")
	}
}

func TestRequireRole_NoIdentity(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	h := RequireRole(RolePatient)(func(c echo.Context) error { return nil })
	if err := h(c); err == nil {
		t.Error("expected anonymous request to be denied")
	}
}

func TestHasRoleAndIsAdmin(t *testing.T) {
	ctx := WithIdentity(context.Background(), uuid.New(), []string{RoleDoctor})
	if !HasRole(ctx, RoleDoctor) {
		t.Error("expected doctor role")
	}
	if HasRole(ctx, RolePatient) {
		t.Error("doctor must not hold patient role")
	}
	if IsAdmin(ctx) {
		t.Error("doctor is not admin")
	}
	if !IsPublicPath("/metrics") || IsPublicPath("/api/v1/appointments") {
		t.Error("unexpected public path classification")
	}
}
