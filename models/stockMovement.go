package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockMovement is the append-only record of one quantity change to a lot.
// Qty is signed: negative = outflow. The signed sum of all movements for a
// lot equals its current quantity minus its initial quantity.
type StockMovement struct {
	ID           int               `gorm:"primary_key" json:"id"`
	ProductId    int               `gorm:"index;not null" json:"product_id"`
	StockItemId  int               `gorm:"index;not null" json:"stock_item_id"`
	WarehouseId  int               `gorm:"index;not null" json:"warehouse_id"`
	Type         StockMovementType `gorm:"type:enum('RECEIPT','SALE','ADJUSTMENT','TRANSFER_IN','TRANSFER_OUT');not null" json:"type"`
	Qty          decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"qty"`
	UnitCost     decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	TotalCost    decimal.Decimal   `gorm:"type:decimal(20,2);default:0" json:"total_cost"`
	Reference    string            `gorm:"size:100;index" json:"reference"`
	Reason       string            `gorm:"type:text" json:"reason"`
	PerformedBy  string            `gorm:"size:100;not null" json:"performed_by"`
	MovementDate time.Time         `gorm:"not null;index" json:"movement_date"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// BeforeSave keeps the sign convention honest: outflow types carry negative
// qty, inflow types positive. A mismatch is a programming error upstream.
func (m *StockMovement) BeforeSave(tx *gorm.DB) error {
	_ = tx
	if m == nil || m.Qty.IsZero() {
		return nil
	}
	switch m.Type {
	case StockMovementTypeSale, StockMovementTypeTransferOut:
		if m.Qty.IsPositive() {
			m.Qty = m.Qty.Neg()
		}
	case StockMovementTypeReceipt, StockMovementTypeTransferIn:
		if m.Qty.IsNegative() {
			m.Qty = m.Qty.Neg()
		}
	}
	return nil
}

// AppendStockMovement writes one movement row inside the caller's
// transaction. Movements are never updated or deleted.
func AppendStockMovement(tx *gorm.DB, movement *StockMovement) error {
	if movement.MovementDate.IsZero() {
		movement.MovementDate = time.Now().UTC()
	}
	return tx.Create(movement).Error
}

func GetStockMovements(ctx context.Context, productId int, limit int) ([]*StockMovement, error) {
	db := config.GetDB()
	if limit <= 0 {
		limit = 100
	}
	var movements []*StockMovement
	err := db.WithContext(ctx).
		Where("product_id = ?", productId).
		Order("id DESC").
		Limit(limit).
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}

// MovementSum is the signed qty total of all movements for one lot.
func MovementSum(tx *gorm.DB, stockItemId int) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&StockMovement{}).
		Select("SUM(qty)").
		Where("stock_item_id = ?", stockItemId).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
