package billing

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

func invoiceContext(e *echo.Echo, id string, actor uuid.UUID, roles ...string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(context.Background(), actor, roles))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func TestHandler_GetInvoice(t *testing.T) {
	f := newBillingFixture(t, "0.18")
	h, e := NewHandler(f.svc), echo.New()

	c, rec := invoiceContext(e, f.appt.ID.String(), f.patient.ID, auth.RolePatient)
	if err := h.GetInvoice(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["invoice_number"] != "INV-20260309-3F2A9C10" || body["total"] != "885" {
		t.Errorf("unexpected invoice %v", body)
	}
}

func TestHandler_GetInvoicePDF(t *testing.T) {
	f := newBillingFixture(t, "0")
	h, e := NewHandler(f.svc), echo.New()

	c, rec := invoiceContext(e, f.appt.ID.String(), uuid.New(), auth.RoleAdmin)
	if err := h.GetInvoicePDF(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %s", ct)
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), "INV-20260309-3F2A9C10.pdf") {
		t.Errorf("unexpected disposition %s", rec.Header().Get(echo.HeaderContentDisposition))
	}
}

func TestHandler_GetInvoice_Errors(t *testing.T) {
	f := newBillingFixture(t, "0")
	h, e := NewHandler(f.svc), echo.New()
	tests := []struct {
		id    string
		actor uuid.UUID
		code  int
	}{
		{"bad", f.patient.ID, http.StatusBadRequest},
		{uuid.NewString(), f.patient.ID, http.StatusNotFound},
		{f.appt.ID.String(), uuid.New(), http.StatusForbidden},
	}
	for _, tt := range tests {
		c, _ := invoiceContext(e, tt.id, tt.actor, auth.RolePatient)
		err := h.GetInvoice(c)
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != tt.code {
			t.Errorf("id %s: expected %d, got %v", tt.id, tt.code, err)
		}
	}
}
