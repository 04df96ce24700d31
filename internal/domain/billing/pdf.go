package billing

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// RenderPDF lays the invoice out on a single A4 page.
func RenderPDF(inv *Invoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle(inv.Number, false)
	pdf.SetCreator("CureSync", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "CureSync", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, inv.HospitalName, "", 1, "C", false, 0, "")
	if inv.HospitalAddress != nil {
		pdf.CellFormat(0, 6, *inv.HospitalAddress, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 10, "Invoice", "1", 1, "C", false, 0, "")
	detailRow(pdf, "Invoice No.", inv.Number)
	detailRow(pdf, "Issued", inv.IssuedAt.Format("2006-01-02"))
	detailRow(pdf, "Patient", inv.Patient.Name)
	detailRow(pdf, "Doctor", doctorLine(inv.Doctor))
	detailRow(pdf, "Appointment", fmt.Sprintf("%s %s", inv.AppointmentDate, inv.AppointmentTime))
	detailRow(pdf, "Status", inv.AppointmentStatus)
	detailRow(pdf, "Payment", inv.PaymentStatus)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(140, 8, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(0, 8, "Amount", "1", 1, "R", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, item := range inv.Items {
		pdf.CellFormat(140, 8, item.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, item.Amount.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	totalRow(pdf, "Subtotal", inv.Subtotal.StringFixed(2), false)
	totalRow(pdf, fmt.Sprintf("Tax (%s%%)", inv.TaxRate.Shift(2).String()), inv.Tax.StringFixed(2), false)
	totalRow(pdf, "Total", inv.Total.StringFixed(2), true)

	pdf.SetY(pdf.GetY() + 12)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "This is a computer generated invoice.", "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", inv.Number, err)
	}
	return buf.Bytes(), nil
}

func detailRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 8, label, "1", 0, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 8, value, "1", 1, "", false, 0, "")
}

func totalRow(pdf *gofpdf.Fpdf, label, value string, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Arial", style, 10)
	pdf.CellFormat(140, 8, label, "1", 0, "R", false, 0, "")
	pdf.CellFormat(0, 8, value, "1", 1, "R", false, 0, "")
}

func doctorLine(p Party) string {
	if p.Detail == "" {
		return p.Name
	}
	return p.Name + " (" + p.Detail + ")"
}
