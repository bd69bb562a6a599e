package services

import (
	"context"
	"fmt"
	"io"

	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/xuri/excelize/v2"
)

// ExportSheet is the worksheet holding exported sales.
const ExportSheet = "Sheet1"

var exportHeader = []any{"ID", "Date", "Client", "Seller", "Payment", "Status", "Items", "Subtotal", "Tax", "Total"}

// ExportSales writes the filtered sales as an xlsx workbook to w, one row per
// sale followed by a totals row.
func (s *ReportService) ExportSales(ctx context.Context, f SaleFilter, w io.Writer) error {
	var sales []models.Sale
	err := applySaleFilter(s.db.WithContext(ctx), f).
		Preload("Client").Preload("User").Preload("Lines").
		Order("sold_at, id").
		Find(&sales).Error
	if err != nil {
		return wrapStore("export sales", err)
	}

	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetRow(ExportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	sum := PeriodTotals{}
	for i, sale := range sales {
		client := ""
		if sale.Client != nil {
			client = sale.Client.FullName()
		}
		seller := ""
		if sale.User != nil {
			seller = sale.User.Name
		}
		row := []any{
			sale.ID,
			sale.SoldAt.Format("2006-01-02 15:04"),
			client,
			seller,
			string(sale.PaymentMethod),
			string(sale.Status),
			sale.ItemCount(),
			sale.Subtotal.InexactFloat64(),
			sale.Tax.InexactFloat64(),
			sale.Total.InexactFloat64(),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(ExportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
		sum.Count++
		sum.Total = sum.Total.Add(sale.Total)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(sales)+2)
	if err != nil {
		return err
	}
	footer := []any{"TOTAL", "", "", "", "", "", sum.Count, "", "", sum.Total.InexactFloat64()}
	if err := book.SetSheetRow(ExportSheet, cell, &footer); err != nil {
		return fmt.Errorf("write totals: %w", err)
	}
	if err := book.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
