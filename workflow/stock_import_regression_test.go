package workflow_test

import (
	"bytes"
	"fmt"
	"testing"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func buildImportSheet(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	header := []interface{}{"sku", "qty", "unit_cost", "reference"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("write row %d: %v", i+2, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf
}

// A receipt file posts in one transaction: a good file lands every row,
// a file with one bad row lands nothing.
func TestStockImportAllOrNothing(t *testing.T) {
	ctx, db := setupEngineTest(t)
	logger := config.GetLogger()

	warehouse, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Import Warehouse"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	rice, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      "Rice Bag 25kg",
		Sku:       "RICE-25",
		SalePrice: decimal.NewFromInt(60000),
	})
	if err != nil {
		t.Fatalf("CreateProduct(rice): %v", err)
	}
	sugar, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      "Sugar Bag 50kg",
		Sku:       "SUGAR-50",
		SalePrice: decimal.NewFromInt(90000),
	})
	if err != nil {
		t.Fatalf("CreateProduct(sugar): %v", err)
	}

	good := buildImportSheet(t, [][]interface{}{
		{"RICE-25", 40, 52000, "PO-100"},
		{"SUGAR-50", 15, 78000, "PO-100"},
		{"RICE-25", 10, 53000, "PO-101"},
	})
	summary, err := workflow.ImportStockReceipts(ctx, db, logger, warehouse.ID, good)
	if err != nil {
		t.Fatalf("ImportStockReceipts: %v", err)
	}
	if summary.RowsImported != 3 {
		t.Fatalf("rows imported = %d, want 3", summary.RowsImported)
	}
	if len(summary.ProductIds) != 2 {
		t.Fatalf("product ids = %v, want 2 distinct", summary.ProductIds)
	}
	if len(summary.References) != 2 {
		t.Fatalf("references = %v, want 2 distinct", summary.References)
	}

	var riceItem models.StockItem
	if err := db.Where("product_id = ? AND warehouse_id = ?", rice.ID, warehouse.ID).First(&riceItem).Error; err != nil {
		t.Fatalf("reload rice stock: %v", err)
	}
	if !riceItem.Quantity.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("rice quantity = %s, want 50", riceItem.Quantity)
	}
	// 40 at 52000 blended with 10 at 53000.
	if !riceItem.AverageCost.Equal(decimal.NewFromInt(52200)) {
		t.Fatalf("rice average cost = %s, want 52200", riceItem.AverageCost)
	}

	// Unknown sku in the middle of an otherwise good file.
	bad := buildImportSheet(t, [][]interface{}{
		{"SUGAR-50", 5, 78000, "PO-102"},
		{"NO-SUCH-SKU", 5, 1000, "PO-102"},
	})
	if _, err := workflow.ImportStockReceipts(ctx, db, logger, warehouse.ID, bad); err == nil {
		t.Fatalf("import with unknown sku must fail")
	}
	var sugarItem models.StockItem
	if err := db.Where("product_id = ? AND warehouse_id = ?", sugar.ID, warehouse.ID).First(&sugarItem).Error; err != nil {
		t.Fatalf("reload sugar stock: %v", err)
	}
	if !sugarItem.Quantity.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("sugar quantity = %s after failed import, want 15", sugarItem.Quantity)
	}

	// Unknown warehouse is refused outright.
	again := buildImportSheet(t, [][]interface{}{
		{"RICE-25", 1, 52000, "PO-103"},
	})
	if _, err := workflow.ImportStockReceipts(ctx, db, logger, warehouse.ID+999, again); err == nil {
		t.Fatalf("import into unknown warehouse must fail")
	}
}
