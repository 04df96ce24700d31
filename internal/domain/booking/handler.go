package booking

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/curesync/curesync/internal/platform/auth"
	"github.com/curesync/curesync/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors/:id/slots", h.GetAvailableSlots)
	api.GET("/doctors/:id/schedules", h.ListSchedules)

	sched := api.Group("/schedules", auth.RequireRole(auth.RoleDoctor))
	sched.POST("", h.CreateSchedule)
	sched.PUT("/:id", h.UpdateSchedule)
	sched.DELETE("/:id", h.DeactivateSchedule)

	api.POST("/appointments", h.BookAppointment, auth.RequireRole(auth.RolePatient))
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.POST("/appointments/:id/cancel", h.CancelAppointment)
	api.PATCH("/appointments/:id/status", h.UpdateStatus, auth.RequireRole(auth.RoleDoctor))
	api.PATCH("/appointments/:id/payment", h.UpdatePayment, auth.RequireRole(auth.RoleAdmin))
}

// -- Availability --

func (h *Handler) GetAvailableSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	slots, err := h.svc.GetAvailableSlots(c.Request().Context(), doctorID, date)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, slots)
}

// -- Schedules --

func (h *Handler) ListSchedules(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	items, err := h.svc.ListSchedules(c.Request().Context(), doctorID)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateSchedule(c echo.Context) error {
	var in ScheduleInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	e, err := h.svc.CreateSchedule(ctx, ActorFromContext(ctx), in)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) UpdateSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in ScheduleInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	e, err := h.svc.UpdateSchedule(ctx, ActorFromContext(ctx), id, in)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeactivateSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := h.svc.DeactivateSchedule(ctx, ActorFromContext(ctx), id); err != nil {
		return HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Appointments --

// BookAppointment books for the calling patient. Admins must name the patient.
func (h *Handler) BookAppointment(c echo.Context) error {
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	actor := ActorFromContext(ctx)
	switch {
	case !actor.IsAdmin():
		req.PatientID = actor.ID
	case req.PatientID == uuid.Nil:
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	a, err := h.svc.BookAppointment(ctx, req)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := AppointmentFilter{Status: c.QueryParam("status")}
	if v := c.QueryParam("date"); v != "" {
		d, err := ParseDate(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Date = &d
	}
	for param, dst := range map[string]**uuid.UUID{"patient_id": &f.PatientID, "doctor_id": &f.DoctorID} {
		if v := c.QueryParam(param); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
			}
			*dst = &id
		}
	}
	ctx := c.Request().Context()
	items, total, err := h.svc.ListAppointments(ctx, ActorFromContext(ctx), f, pg.Limit, pg.Offset)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	a, err := h.svc.GetAppointment(ctx, ActorFromContext(ctx), id)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	a, err := h.svc.CancelAppointment(ctx, ActorFromContext(ctx), id, req.Reason)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	a, err := h.svc.UpdateStatus(ctx, ActorFromContext(ctx), id, req.Status)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type paymentRequest struct {
	PaymentStatus string `json:"payment_status"`
}

func (h *Handler) UpdatePayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdatePayment(c.Request().Context(), id, req.PaymentStatus)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// HTTPError maps booking error kinds to HTTP responses. Shared by the
// packages built on top of appointments.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
