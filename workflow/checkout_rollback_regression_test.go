package workflow_test

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"bitbucket.org/mmdatafocus/distro_backend/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// A shortfall on any checkout line must unwind the whole transaction:
// the invoice, the credit charge and its ledger entry, and every stock
// deduction taken for earlier lines.
func TestCheckoutRollbackOnStockShortfall(t *testing.T) {
	ctx, db := setupEngineTest(t)
	logger := config.GetLogger()

	distributor, err := models.CreateDistributor(ctx, &models.NewDistributor{Name: "Shwe Min Distribution"})
	if err != nil {
		t.Fatalf("CreateDistributor: %v", err)
	}
	err = workflow.RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		_, err := workflow.SetLimit(tx, distributor.ID, decimal.NewFromInt(100000), "initial limit", "Test")
		return err
	})
	if err != nil {
		t.Fatalf("SetLimit: %v", err)
	}

	warehouse, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Main Warehouse"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}

	stocked, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      "Instant Noodles Carton",
		Sku:       "NOODLE-001",
		SalePrice: decimal.NewFromInt(12000),
	})
	if err != nil {
		t.Fatalf("CreateProduct(stocked): %v", err)
	}
	unstocked, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      "Cooking Oil Carton",
		Sku:       "OIL-001",
		SalePrice: decimal.NewFromInt(30000),
	})
	if err != nil {
		t.Fatalf("CreateProduct(unstocked): %v", err)
	}

	err = workflow.RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		_, err := workflow.Receive(tx, stocked.ID, warehouse.ID, decimal.NewFromInt(10), decimal.NewFromInt(9000), "PO-1", "Test")
		return err
	})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}

	_, err = workflow.Checkout(ctx, db, logger, nil, &workflow.CheckoutInput{
		CustomerKind:  "DISTRIBUTOR",
		CustomerId:    distributor.ID,
		PaymentMethod: "CREDIT",
		Lines: []models.NewOrderLine{
			{ProductId: stocked.ID, Qty: decimal.NewFromInt(2)},
			{ProductId: unstocked.ID, Qty: decimal.NewFromInt(1)},
		},
	})
	var stockErr *utils.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if stockErr.ProductId != unstocked.ID {
		t.Fatalf("shortfall reported for product %d, want %d", stockErr.ProductId, unstocked.ID)
	}

	// Credit is untouched.
	var after models.Distributor
	if err := db.First(&after, distributor.ID).Error; err != nil {
		t.Fatalf("reload distributor: %v", err)
	}
	if !after.CurrentCreditUsed.IsZero() {
		t.Fatalf("credit used = %s after rollback, want 0", after.CurrentCreditUsed)
	}
	var usedEntries int64
	if err := db.Model(&models.CreditLedgerEntry{}).
		Where("distributor_id = ? AND action = ?", distributor.ID, models.CreditActionUsed).
		Count(&usedEntries).Error; err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	if usedEntries != 0 {
		t.Fatalf("found %d CREDIT_USED ledger entries after rollback, want 0", usedEntries)
	}

	// Stock from the first line is back too.
	var item models.StockItem
	if err := db.Where("product_id = ? AND warehouse_id = ?", stocked.ID, warehouse.ID).First(&item).Error; err != nil {
		t.Fatalf("reload stock item: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(10)) || !item.Available.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("stock item after rollback: qty=%s available=%s, want 10/10", item.Quantity, item.Available)
	}
	var movements int64
	if err := db.Model(&models.StockMovement{}).
		Where("product_id = ? AND type = ?", stocked.ID, models.StockMovementTypeSale).
		Count(&movements).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if movements != 0 {
		t.Fatalf("found %d SALE movements after rollback, want 0", movements)
	}
	var invoices int64
	if err := db.Model(&models.SalesInvoice{}).Count(&invoices).Error; err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if invoices != 0 {
		t.Fatalf("found %d invoices after rollback, want 0", invoices)
	}

	// A checkout of only the stocked line goes through, and the ledger,
	// the live balance and the movement trail all agree.
	invoice, err := workflow.Checkout(ctx, db, logger, nil, &workflow.CheckoutInput{
		CustomerKind:  "DISTRIBUTOR",
		CustomerId:    distributor.ID,
		PaymentMethod: "CREDIT",
		Lines: []models.NewOrderLine{
			{ProductId: stocked.ID, Qty: decimal.NewFromInt(2)},
		},
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if invoice.Status != models.InvoiceStatusUnpaid {
		t.Fatalf("credit invoice status = %s, want UNPAID", invoice.Status)
	}
	wantTotal := decimal.NewFromInt(24000)
	if !invoice.TotalAmount.Equal(wantTotal) {
		t.Fatalf("invoice total = %s, want %s", invoice.TotalAmount, wantTotal)
	}

	if err := db.First(&after, distributor.ID).Error; err != nil {
		t.Fatalf("reload distributor: %v", err)
	}
	if !after.CurrentCreditUsed.Equal(wantTotal) {
		t.Fatalf("credit used = %s, want %s", after.CurrentCreditUsed, wantTotal)
	}
	ledgerUsed, err := models.LedgerUsedBalance(db, distributor.ID)
	if err != nil {
		t.Fatalf("LedgerUsedBalance: %v", err)
	}
	if !ledgerUsed.Equal(after.CurrentCreditUsed) {
		t.Fatalf("ledger balance %s != live balance %s", ledgerUsed, after.CurrentCreditUsed)
	}

	if err := db.Where("product_id = ? AND warehouse_id = ?", stocked.ID, warehouse.ID).First(&item).Error; err != nil {
		t.Fatalf("reload stock item: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("stock quantity = %s after sale, want 8", item.Quantity)
	}
	var movementSum decimal.NullDecimal
	if err := db.Model(&models.StockMovement{}).
		Where("stock_item_id = ?", item.ID).
		Select("SUM(qty)").Scan(&movementSum).Error; err != nil {
		t.Fatalf("sum movements: %v", err)
	}
	if !movementSum.Valid || !movementSum.Decimal.Equal(item.Quantity) {
		t.Fatalf("movement sum %v != on-hand quantity %s", movementSum, item.Quantity)
	}
}
