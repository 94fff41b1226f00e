package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteCreditUtilizationXlsx streams the credit utilization report as an
// xlsx workbook.
func WriteCreditUtilizationXlsx(w io.Writer, data []*CreditUtilizationResponse) error {
	f := excelize.NewFile()
	defer f.Close()
	sheetName := "Sheet1"

	headings := []string{"Distributor", "Status", "CreditLimit", "CreditUsed", "Available", "UtilizationPct", "OpenInvoices"}
	for i, h := range headings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	for i, d := range data {
		row := i + 2
		f.SetCellValue(sheetName, "A"+fmt.Sprint(row), d.DistributorName)
		f.SetCellValue(sheetName, "B"+fmt.Sprint(row), d.CreditStatus)
		f.SetCellValue(sheetName, "C"+fmt.Sprint(row), d.CreditLimit.StringFixed(2))
		f.SetCellValue(sheetName, "D"+fmt.Sprint(row), d.CreditUsed.StringFixed(2))
		f.SetCellValue(sheetName, "E"+fmt.Sprint(row), d.AvailableCredit.StringFixed(2))
		f.SetCellValue(sheetName, "F"+fmt.Sprint(row), d.UtilizationPct.StringFixed(2))
		f.SetCellValue(sheetName, "G"+fmt.Sprint(row), d.OpenInvoices)
	}

	return f.Write(w)
}

// WriteStockSummaryXlsx streams the stock summary report as an xlsx
// workbook.
func WriteStockSummaryXlsx(w io.Writer, data []*StockSummaryResponse) error {
	f := excelize.NewFile()
	defer f.Close()
	sheetName := "Sheet1"

	headings := []string{"Product", "Sku", "Warehouse", "Quantity", "Reserved", "Available", "AverageCost", "TotalValue"}
	for i, h := range headings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	for i, d := range data {
		row := i + 2
		f.SetCellValue(sheetName, "A"+fmt.Sprint(row), d.ProductName)
		f.SetCellValue(sheetName, "B"+fmt.Sprint(row), d.Sku)
		f.SetCellValue(sheetName, "C"+fmt.Sprint(row), d.WarehouseName)
		f.SetCellValue(sheetName, "D"+fmt.Sprint(row), d.Quantity.String())
		f.SetCellValue(sheetName, "E"+fmt.Sprint(row), d.Reserved.String())
		f.SetCellValue(sheetName, "F"+fmt.Sprint(row), d.Available.String())
		f.SetCellValue(sheetName, "G"+fmt.Sprint(row), d.AverageCost.String())
		f.SetCellValue(sheetName, "H"+fmt.Sprint(row), d.TotalValue.String())
	}

	return f.Write(w)
}
