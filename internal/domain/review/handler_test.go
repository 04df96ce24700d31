package review

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/curesync/curesync/internal/domain/booking"
	"github.com/curesync/curesync/internal/platform/auth"
)

func TestHandler_Create(t *testing.T) {
	f := newReviewFixture()
	h, e := NewHandler(f.svc), echo.New()
	a := f.appointment(booking.StatusCompleted)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":5,"comment":"great"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(context.Background(), f.patientID, []string{auth.RolePatient}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_Create_NotCompleted(t *testing.T) {
	f := newReviewFixture()
	h, e := NewHandler(f.svc), echo.New()
	a := f.appointment(booking.StatusScheduled)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":5}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(context.Background(), f.patientID, []string{auth.RolePatient}))
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	err := h.Create(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestHandler_ListForDoctor(t *testing.T) {
	f := newReviewFixture()
	h, e := NewHandler(f.svc), echo.New()
	a := f.appointment(booking.StatusCompleted)
	_, _ = f.svc.Create(context.Background(), f.patient(), a.ID, Input{Rating: 3})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(f.doctorID.String())
	if err := h.ListForDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Total   int     `json:"total"`
		Summary Summary `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || body.Summary.Average != 3 {
		t.Errorf("unexpected body %+v", body)
	}
}
