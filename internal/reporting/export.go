package reporting

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSales = "Sales"
	sheetDaily = "Daily"
)

// ExportXLSX writes the report as a workbook with a Sales and a Daily sheet.
func ExportXLSX(rep *SalesReport, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSales); err != nil {
		return err
	}
	if _, err := f.NewSheet(sheetDaily); err != nil {
		return err
	}

	header := []interface{}{"Sale ID", "Date", "Cashier", "Customer", "Items", "Total", "Paid", "Change"}
	if err := f.SetSheetRow(sheetSales, "A1", &header); err != nil {
		return err
	}
	for i, s := range rep.Sales {
		customer := ""
		if s.CustomerName != nil {
			customer = *s.CustomerName
		}
		units := 0
		for _, it := range s.Items {
			units += it.Quantity
		}
		total, _ := s.TotalAmount.Float64()
		paid, _ := s.PaidAmount.Float64()
		change, _ := s.ChangeGiven.Float64()
		row := []interface{}{
			s.ID,
			s.CreatedAt.Format("2006-01-02 15:04"),
			s.Cashier,
			customer,
			units,
			total,
			paid,
			change,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetSales, cell, &row); err != nil {
			return fmt.Errorf("write sale row %d: %w", s.ID, err)
		}
	}

	daily := []interface{}{"Day", "Transactions", "Amount"}
	if err := f.SetSheetRow(sheetDaily, "A1", &daily); err != nil {
		return err
	}
	for i, d := range rep.DailySummary {
		amount, _ := d.TotalAmount.Float64()
		row := []interface{}{d.Day, d.TotalSales, amount}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetDaily, cell, &row); err != nil {
			return fmt.Errorf("write day %s: %w", d.Day, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
