package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStatusOf(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.Response().Status = http.StatusCreated

	if got := StatusOf(c, nil); got != http.StatusCreated {
		t.Errorf("expected 201, got %d", got)
	}
	if got := StatusOf(c, echo.NewHTTPError(http.StatusConflict, "slot taken")); got != http.StatusConflict {
		t.Errorf("expected 409, got %d", got)
	}
	if got := StatusOf(c, errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", got)
	}
}

func TestMetricsMiddleware_CountsByRoute(t *testing.T) {
	m := NewMetrics("curesync_test")
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/doctors/:id/slots", func(c echo.Context) error {
		return c.JSON(http.StatusOK, []string{})
	})
	e.POST("/api/v1/appointments", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "slot taken")
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/doctors/"+id+"/slots", nil))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil))

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/doctors/:id/slots", "200")); got != 2 {
		t.Errorf("expected 2 slot requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodPost, "/api/v1/appointments", "409")); got != 1 {
		t.Errorf("expected 1 conflict, got %v", got)
	}
	if got := testutil.ToFloat64(m.InFlight); got != 0 {
		t.Errorf("expected in-flight back to 0, got %v", got)
	}
}

func TestMetrics_DomainCounters(t *testing.T) {
	m := NewMetrics("curesync_test")
	m.ObserveBooking("booked")
	m.ObserveBooking("conflict")
	m.ObserveBooking("conflict")
	m.ObserveSlotCache("hit")
	m.ObserveEvent("appointment.booked", nil)
	m.ObserveEvent("appointment.booked", errors.New("channel closed"))
	m.ObserveTxRetry()

	if got := testutil.ToFloat64(m.BookingsTotal.WithLabelValues("conflict")); got != 2 {
		t.Errorf("expected 2 conflicts, got %v", got)
	}
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("appointment.booked", "error")); got != 1 {
		t.Errorf("expected 1 failed publish, got %v", got)
	}
	if got := testutil.ToFloat64(m.TxRetries); got != 1 {
		t.Errorf("expected 1 retry, got %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveBooking("booked")
	m.ObserveSlotCache("miss")
	m.ObserveTransition("confirmed")
	m.ObserveEvent("appointment.cancelled", nil)
	m.ObserveTxRetry()

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := m.Middleware()(func(c echo.Context) error { return nil })(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMetricsHandler_Exposition(t *testing.T) {
	m := NewMetrics("curesync_test")
	m.ObserveBooking("booked")

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/metrics", nil), rec)
	if err := m.Handler()(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `curesync_test_booking_attempts_total{outcome="booked"} 1`) {
		t.Errorf("booking counter missing from exposition:\n%s", rec.Body.String())
	}
}

func TestTracingMiddleware_RecordsServerSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	e := echo.New()
	e.Use(TracingMiddleware())
	e.GET("/api/v1/appointments/:id", func(c echo.Context) error {
		return errors.New("storage unavailable")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments/42", nil))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "GET /api/v1/appointments/:id" {
		t.Errorf("unexpected span name %q", spans[0].Name)
	}
	if spans[0].Status.Code.String() != "Error" {
		t.Errorf("expected error status, got %s", spans[0].Status.Code)
	}
}

func TestInitTracer_Disabled(t *testing.T) {
	tp, err := InitTracer(context.Background(), TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tp.Shutdown(context.Background())

	_, span := Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsSampled() {
		t.Error("expected spans to be unsampled when tracing is disabled")
	}
	span.End()
}
