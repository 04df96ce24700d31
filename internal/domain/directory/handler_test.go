package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/curesync/curesync/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func TestHandler_SearchDoctors(t *testing.T) {
	h, e := newTestHandler()
	mustCreate(t, h.svc, &User{Role: RoleDoctor, Name: "Dr. Meera", Email: "m@c.test", Specialization: strPtr("Cardiology")})

	req := httptest.NewRequest(http.MethodGet, "/?specialization=cardiology", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.SearchDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data  []User `json:"data"`
		Total int    `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || len(body.Data) != 1 {
		t.Errorf("expected 1 doctor, got %+v", body)
	}
}

func TestHandler_GetDoctor(t *testing.T) {
	h, e := newTestHandler()
	doc := mustCreate(t, h.svc, &User{Role: RoleDoctor, Name: "Dr. K", Email: "k@c.test", Specialization: strPtr("ENT")})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(doc.ID.String())
	if err := h.GetDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetDoctor_Errors(t *testing.T) {
	h, e := newTestHandler()
	tests := []struct {
		id   string
		code int
	}{
		{"not-a-uuid", http.StatusBadRequest},
		{uuid.NewString(), http.StatusNotFound},
	}
	for _, tt := range tests {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(tt.id)
		err := h.GetDoctor(c)
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != tt.code {
			t.Errorf("id %s: expected %d, got %v", tt.id, tt.code, err)
		}
	}
}

func TestHandler_CreateUser(t *testing.T) {
	h, e := newTestHandler()
	body := `{"role":"doctor","name":"Dr. Neha","email":"neha@c.test","specialization":"Pediatrics","experience_years":7}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateUser(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_CreateUser_Invalid(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"role":"doctor","name":"X","email":"x@c.test"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreateUser(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_SetActive(t *testing.T) {
	h, e := newTestHandler()
	pat := mustCreate(t, h.svc, &User{Role: RolePatient, Name: "P", Email: "p@c.test"})

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"active":false}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(context.Background(), uuid.New(), []string{auth.RoleAdmin}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(pat.ID.String())

	if err := h.SetActive(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_SetActive_MissingField(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.SetActive(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestRegisterRoutes_AdminOnly(t *testing.T) {
	h, e := newTestHandler()
	api := e.Group("/api/v1")
	api.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), uuid.New(), []string{c.Request().Header.Get("X-Role")})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	h.RegisterRoutes(api)

	for role, want := range map[string]int{auth.RolePatient: http.StatusForbidden, auth.RoleAdmin: http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
		req.Header.Set("X-Role", role)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("role %s: expected %d, got %d", role, want, rec.Code)
		}
	}
}
