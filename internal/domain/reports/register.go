package reports

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"payrollsync/internal/domain/payroll"
)

// Register renders the payroll register for one period as a PDF. The bytes
// are attached to the ledger expense as its evidence.
func Register(summary payroll.Summary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payroll Register")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s",
		summary.Period.Start.Format("2006-01-02"), summary.Period.End.Format("2006-01-02")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(50, 8, "Employee", "1", 0, "L", false, 0, "")
	pdf.CellFormat(35, 8, "Hours", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, "Rate", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, "Amount", "1", 0, "R", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	for _, total := range summary.Totals {
		pdf.CellFormat(50, 8, total.EmployeeID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 8, total.Hours.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 8, total.Rate.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 8, total.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(8)
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(120, 8, "GRAND TOTAL", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, summary.GrandTotal.StringFixed(2), "1", 0, "R", false, 0, "")

	var buffer bytes.Buffer
	if err := pdf.Output(&buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
