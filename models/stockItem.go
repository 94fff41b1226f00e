package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockItem is one lot: the quantity of one product held at one warehouse.
//
// Invariants, enforced by BeforeSave and by the allocator's row-locked
// read-modify-write:
// - Available = Quantity - Reserved, always
// - Quantity >= 0, Available >= 0
type StockItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	ProductId   int             `gorm:"index:idx_stock_items_product_warehouse,unique;not null" json:"product_id"`
	WarehouseId int             `gorm:"index:idx_stock_items_product_warehouse,unique;not null" json:"warehouse_id"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Reserved    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reserved"`
	Available   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"available"`
	AverageCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"average_cost"`
	TotalValue  decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_value"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeSave enforces lot invariants.
//
// Available is derived, never trusted from the caller: it is recomputed from
// Quantity - Reserved on every save, and a save that would persist a
// negative quantity or negative availability is rejected here as the last
// line of defense (the allocator checks first and returns typed errors).
func (s *StockItem) BeforeSave(tx *gorm.DB) error {
	_ = tx // signature required by gorm; tx may be nil in tests
	if s == nil {
		return nil
	}
	s.Available = s.Quantity.Sub(s.Reserved)
	if s.Quantity.IsNegative() {
		return &utils.NegativeStockError{StockItemId: s.ID, Quantity: s.Quantity, Delta: decimal.Zero}
	}
	if s.Available.IsNegative() {
		return &utils.NegativeStockError{StockItemId: s.ID, Quantity: s.Available, Delta: decimal.Zero}
	}
	return nil
}

// FetchOrCreateStockItem returns the lot for product+warehouse, creating a
// zero-quantity row on first reference. The returned row is locked FOR UPDATE
// for the remainder of the caller's transaction.
func FetchOrCreateStockItem(tx *gorm.DB, productId int, warehouseId int) (*StockItem, error) {
	var item StockItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND warehouse_id = ?", productId, warehouseId).
		First(&item).Error
	if err == nil {
		return &item, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	item = StockItem{
		ProductId:   productId,
		WarehouseId: warehouseId,
		Quantity:    decimal.Zero,
		Reserved:    decimal.Zero,
		Available:   decimal.Zero,
		AverageCost: decimal.Zero,
		TotalValue:  decimal.Zero,
	}
	if err := tx.Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FetchStockItemsForAllocation returns all lots for a product with
// available > 0, locked FOR UPDATE, in ascending available order: the
// allocator drains partially-depleted lots before touching fuller ones.
func FetchStockItemsForAllocation(tx *gorm.DB, productId int) ([]*StockItem, error) {
	var items []*StockItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND available > 0", productId).
		Order("available ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func FetchStockItemForUpdate(tx *gorm.DB, stockItemId int) (*StockItem, error) {
	var item StockItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, stockItemId).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &item, nil
}

func GetStockItems(ctx context.Context, productId int) ([]*StockItem, error) {
	db := config.GetDB()
	var items []*StockItem
	err := db.WithContext(ctx).Where("product_id = ?", productId).Order("warehouse_id ASC").Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// TotalAvailable sums available quantity for a product across warehouses.
func TotalAvailable(tx *gorm.DB, productId int) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&StockItem{}).
		Select("SUM(available)").
		Where("product_id = ?", productId).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
