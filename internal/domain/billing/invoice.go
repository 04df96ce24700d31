package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curesync/curesync/internal/domain/booking"
)

// Invoice is derived from an appointment's booking snapshot. It is computed
// on request and never stored.
type Invoice struct {
	Number            string            `json:"invoice_number"`
	AppointmentID     uuid.UUID         `json:"appointment_id"`
	IssuedAt          time.Time         `json:"issued_at"`
	Patient           Party             `json:"patient"`
	Doctor            Party             `json:"doctor"`
	HospitalName      string            `json:"hospital_name"`
	HospitalAddress   *string           `json:"hospital_address,omitempty"`
	AppointmentDate   booking.Date      `json:"appointment_date"`
	AppointmentTime   booking.TimeOfDay `json:"appointment_time"`
	AppointmentStatus string            `json:"appointment_status"`
	PaymentStatus     string            `json:"payment_status"`
	Items             []LineItem        `json:"items"`
	Subtotal          decimal.Decimal   `json:"subtotal"`
	TaxRate           decimal.Decimal   `json:"tax_rate"`
	Tax               decimal.Decimal   `json:"tax"`
	Total             decimal.Decimal   `json:"total"`
}

type Party struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Detail string    `json:"detail,omitempty"`
}

type LineItem struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// InvoiceNumber is INV-<appointment date YYYYMMDD>-<first 8 hex of the id>.
func InvoiceNumber(a *booking.Appointment) string {
	return "INV-" + a.Date.Format("20060102") + "-" + strings.ToUpper(a.ID.String()[:8])
}

// computeTotals fills subtotal, tax and total from the line items. Tax is
// rounded half away from zero to two places.
func (inv *Invoice) computeTotals(rate decimal.Decimal) {
	subtotal := decimal.Zero
	for _, item := range inv.Items {
		subtotal = subtotal.Add(item.Amount)
	}
	inv.Subtotal = subtotal.Round(2)
	inv.TaxRate = rate
	inv.Tax = subtotal.Mul(rate).Round(2)
	inv.Total = inv.Subtotal.Add(inv.Tax)
}
