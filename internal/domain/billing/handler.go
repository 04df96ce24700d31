package billing

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/curesync/curesync/internal/domain/booking"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments/:id/invoice", h.GetInvoice)
	api.GET("/appointments/:id/invoice.pdf", h.GetInvoicePDF)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	inv, err := h.invoice(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) GetInvoicePDF(c echo.Context) error {
	inv, err := h.invoice(c)
	if err != nil {
		return err
	}
	doc, err := RenderPDF(inv)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not render invoice").SetInternal(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`inline; filename="%s.pdf"`, inv.Number))
	return c.Blob(http.StatusOK, "application/pdf", doc)
}

func (h *Handler) invoice(c echo.Context) (*Invoice, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	inv, err := h.svc.Invoice(ctx, booking.ActorFromContext(ctx), id)
	if err != nil {
		return nil, booking.HTTPError(err)
	}
	return inv, nil
}
