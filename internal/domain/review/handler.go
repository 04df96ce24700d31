package review

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/curesync/curesync/internal/domain/booking"
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
	api.POST("/appointments/:id/review", h.Create, auth.RequireRole(auth.RolePatient))
	api.GET("/doctors/:id/reviews", h.ListForDoctor)
}

func (h *Handler) Create(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	rv, err := h.svc.Create(ctx, booking.ActorFromContext(ctx), id, in)
	if err != nil {
		return booking.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, rv)
}

type listResponse struct {
	*pagination.Response
	Summary Summary `json:"summary"`
}

func (h *Handler) ListForDoctor(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	pg := pagination.FromContext(c)
	items, total, summary, err := h.svc.ListForDoctor(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return booking.HTTPError(err)
	}
	return c.JSON(http.StatusOK, listResponse{Response: pagination.NewResponse(items, total, pg), Summary: summary})
}
