package workflow_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Full credit-order walkthrough: placing charges credit, confirming
// reserves stock without writing movements, delivering consumes the
// reservation and records the sale. A second order cancelled while
// reserved must give both the stock and the credit back.
func TestCreditOrderLifecycle(t *testing.T) {
	ctx, db := setupEngineTest(t)
	logger := config.GetLogger()

	distributor, err := models.CreateDistributor(ctx, &models.NewDistributor{Name: "Ayeyar Distribution"})
	if err != nil {
		t.Fatalf("CreateDistributor: %v", err)
	}
	err = workflow.RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		_, err := workflow.SetLimit(tx, distributor.ID, decimal.NewFromInt(500000), "initial limit", "Test")
		return err
	})
	if err != nil {
		t.Fatalf("SetLimit: %v", err)
	}

	warehouse, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Central Warehouse"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      "Green Tea Box",
		Sku:       "TEA-001",
		SalePrice: decimal.NewFromInt(5000),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	err = workflow.RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		_, err := workflow.Receive(tx, product.ID, warehouse.ID, decimal.NewFromInt(20), decimal.NewFromInt(3500), "PO-10", "Test")
		return err
	})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}

	newOrder := &models.NewSalesOrder{
		CustomerKind:  "DISTRIBUTOR",
		CustomerId:    distributor.ID,
		PaymentMethod: "CREDIT",
		Lines: []models.NewOrderLine{
			{ProductId: product.ID, Qty: decimal.NewFromInt(4)},
		},
	}

	order, err := workflow.PlaceOrder(ctx, db, logger, nil, newOrder)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.Status != models.SalesOrderStatusPending {
		t.Fatalf("placed order status = %s, want PENDING", order.Status)
	}
	orderTotal := decimal.NewFromInt(20000)
	if !order.TotalAmount.Equal(orderTotal) {
		t.Fatalf("order total = %s, want %s", order.TotalAmount, orderTotal)
	}

	var d models.Distributor
	if err := db.First(&d, distributor.ID).Error; err != nil {
		t.Fatalf("reload distributor: %v", err)
	}
	if !d.CurrentCreditUsed.Equal(orderTotal) {
		t.Fatalf("credit used after place = %s, want %s", d.CurrentCreditUsed, orderTotal)
	}

	// Confirm reserves. Availability drops, on-hand quantity does not,
	// and no movement rows appear yet.
	if _, err := workflow.ConfirmOrder(ctx, db, logger, order.ID); err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}
	var item models.StockItem
	if err := db.Where("product_id = ? AND warehouse_id = ?", product.ID, warehouse.ID).First(&item).Error; err != nil {
		t.Fatalf("reload stock item: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("quantity after reserve = %s, want 20", item.Quantity)
	}
	if !item.Reserved.Equal(decimal.NewFromInt(4)) || !item.Available.Equal(decimal.NewFromInt(16)) {
		t.Fatalf("reserved/available after reserve = %s/%s, want 4/16", item.Reserved, item.Available)
	}
	var saleMovements int64
	if err := db.Model(&models.StockMovement{}).
		Where("product_id = ? AND type = ?", product.ID, models.StockMovementTypeSale).
		Count(&saleMovements).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if saleMovements != 0 {
		t.Fatalf("reservation wrote %d SALE movements, want 0", saleMovements)
	}

	// Deliver consumes the reservation and records the outgoing movement.
	delivered, err := workflow.DeliverOrder(ctx, db, logger, order.ID)
	if err != nil {
		t.Fatalf("DeliverOrder: %v", err)
	}
	if delivered.Status != models.SalesOrderStatusDelivered {
		t.Fatalf("delivered order status = %s", delivered.Status)
	}
	if err := db.Where("product_id = ? AND warehouse_id = ?", product.ID, warehouse.ID).First(&item).Error; err != nil {
		t.Fatalf("reload stock item: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(16)) || !item.Reserved.IsZero() {
		t.Fatalf("after delivery: qty=%s reserved=%s, want 16/0", item.Quantity, item.Reserved)
	}
	if err := db.Model(&models.StockMovement{}).
		Where("product_id = ? AND type = ?", product.ID, models.StockMovementTypeSale).
		Count(&saleMovements).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if saleMovements == 0 {
		t.Fatalf("delivery wrote no SALE movement")
	}

	// The movement rows are the audit trail for the lot: receipt minus sale
	// must sum back to the on-hand quantity.
	movementSum, err := models.MovementSum(db, item.ID)
	if err != nil {
		t.Fatalf("MovementSum: %v", err)
	}
	if !movementSum.Equal(item.Quantity) {
		t.Fatalf("movement sum %s != on-hand quantity %s", movementSum, item.Quantity)
	}

	// Second order: cancel while reserved. Stock and credit both return.
	second, err := workflow.PlaceOrder(ctx, db, logger, nil, newOrder)
	if err != nil {
		t.Fatalf("PlaceOrder(second): %v", err)
	}
	if _, err := workflow.ConfirmOrder(ctx, db, logger, second.ID); err != nil {
		t.Fatalf("ConfirmOrder(second): %v", err)
	}
	cancelled, err := workflow.CancelOrder(ctx, db, logger, second.ID, "customer request")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cancelled.Status != models.SalesOrderStatusCancelled {
		t.Fatalf("cancelled order status = %s", cancelled.Status)
	}
	if err := db.Where("product_id = ? AND warehouse_id = ?", product.ID, warehouse.ID).First(&item).Error; err != nil {
		t.Fatalf("reload stock item: %v", err)
	}
	if !item.Reserved.IsZero() || !item.Available.Equal(decimal.NewFromInt(16)) {
		t.Fatalf("after cancel: reserved=%s available=%s, want 0/16", item.Reserved, item.Available)
	}
	movementSum, err = models.MovementSum(db, item.ID)
	if err != nil {
		t.Fatalf("MovementSum after cancel: %v", err)
	}
	if !movementSum.Equal(item.Quantity) {
		t.Fatalf("movement sum %s != on-hand quantity %s after cancel", movementSum, item.Quantity)
	}
	if err := db.First(&d, distributor.ID).Error; err != nil {
		t.Fatalf("reload distributor: %v", err)
	}
	if !d.CurrentCreditUsed.Equal(orderTotal) {
		t.Fatalf("credit used after cancel = %s, want %s (first order only)", d.CurrentCreditUsed, orderTotal)
	}
	ledgerUsed, err := models.LedgerUsedBalance(db, distributor.ID)
	if err != nil {
		t.Fatalf("LedgerUsedBalance: %v", err)
	}
	if !ledgerUsed.Equal(d.CurrentCreditUsed) {
		t.Fatalf("ledger balance %s != live balance %s", ledgerUsed, d.CurrentCreditUsed)
	}

	// A DELIVERED order can no longer be cancelled.
	if _, err := workflow.CancelOrder(ctx, db, logger, order.ID, "too late"); err == nil {
		t.Fatalf("cancelling a delivered order must fail")
	}
}
