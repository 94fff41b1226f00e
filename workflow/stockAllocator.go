package workflow

import (
	"sort"

	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllocationMode selects how an allocation consumes a lot.
type AllocationMode string

const (
	// AllocationModeReserve holds stock for a confirmed order: available
	// drops, on-hand quantity is untouched. No movement rows are written,
	// the quantity has not changed yet; the movement is recorded when the
	// reservation is consumed at delivery.
	AllocationModeReserve AllocationMode = "RESERVE"
	// AllocationModeDeduct is an immediate sale: on-hand quantity and
	// available both drop and one outgoing movement per lot is recorded.
	AllocationModeDeduct AllocationMode = "DEDUCT"
)

type stockLot struct {
	StockItemId int
	Available   decimal.Decimal
}

type lotTake struct {
	StockItemId int
	Take        decimal.Decimal
}

// planAllocation decides how much to take from each lot. Candidates are
// tried in ascending available quantity, smallest lot first, draining
// partially-depleted lots before touching fuller ones. A lot that cannot
// cover the remaining need contributes what it has; the remainder is sought
// from the next lot. Returns the unsatisfied shortfall; never plans a take
// past a lot's availability.
func planAllocation(lots []stockLot, qty decimal.Decimal) ([]lotTake, decimal.Decimal) {
	sorted := make([]stockLot, len(lots))
	copy(sorted, lots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Available.LessThan(sorted[j].Available)
	})

	remaining := qty
	takes := make([]lotTake, 0, len(sorted))
	for _, lot := range sorted {
		if !remaining.IsPositive() {
			break
		}
		if !lot.Available.IsPositive() {
			continue
		}
		take := decimal.Min(remaining, lot.Available)
		takes = append(takes, lotTake{StockItemId: lot.StockItemId, Take: take})
		remaining = remaining.Sub(take)
	}
	return takes, remaining
}

// AllocationRequest is one stock draw against a product.
type AllocationRequest struct {
	ProductId   int
	WarehouseId *int // pinned warehouse, or nil for all warehouses
	Qty         decimal.Decimal
	Mode        AllocationMode
	Type        models.StockMovementType
	Reference   string
	Reason      string
	Actor       string
	// RequireFull aborts with InsufficientStock on any shortfall. Checkout
	// and invoice conversion always set it; order confirmation honors the
	// partial-allocation flag.
	RequireFull bool
}

type AllocationResult struct {
	Movements []*models.StockMovement
	Shortfall decimal.Decimal
}

// Allocate selects lots for a product and consumes them per the request
// mode, inside the caller's transaction. Candidate rows are locked FOR
// UPDATE before reading availability, so concurrent allocations against the
// same lot serialize and can never both succeed past zero.
func Allocate(tx *gorm.DB, req AllocationRequest) (*AllocationResult, error) {
	if !req.Qty.IsPositive() {
		return nil, utils.NewValidationError("allocation quantity must be positive")
	}

	var items []*models.StockItem
	if req.WarehouseId != nil {
		item, err := models.FetchOrCreateStockItem(tx, req.ProductId, *req.WarehouseId)
		if err != nil {
			return nil, err
		}
		items = []*models.StockItem{item}
	} else {
		var err error
		items, err = models.FetchStockItemsForAllocation(tx, req.ProductId)
		if err != nil {
			return nil, err
		}
	}

	byId := make(map[int]*models.StockItem, len(items))
	lots := make([]stockLot, 0, len(items))
	totalAvailable := decimal.Zero
	for _, item := range items {
		byId[item.ID] = item
		lots = append(lots, stockLot{StockItemId: item.ID, Available: item.Available})
		totalAvailable = totalAvailable.Add(item.Available)
	}

	takes, shortfall := planAllocation(lots, req.Qty)
	if shortfall.IsPositive() && req.RequireFull {
		return nil, &utils.InsufficientStockError{
			ProductId: req.ProductId,
			Requested: req.Qty,
			Available: totalAvailable,
			Shortfall: shortfall,
		}
	}

	result := &AllocationResult{Shortfall: shortfall}
	for _, take := range takes {
		item := byId[take.StockItemId]

		switch req.Mode {
		case AllocationModeReserve:
			item.Reserved = item.Reserved.Add(take.Take)
		case AllocationModeDeduct:
			item.Quantity = item.Quantity.Sub(take.Take)
			item.TotalValue = utils.RoundCurrency(item.Quantity.Mul(item.AverageCost))
		default:
			return nil, utils.NewValidationError("invalid allocation mode %q", req.Mode)
		}
		if err := tx.Save(item).Error; err != nil {
			return nil, err
		}

		if req.Mode == AllocationModeDeduct {
			movement := &models.StockMovement{
				ProductId:   item.ProductId,
				StockItemId: item.ID,
				WarehouseId: item.WarehouseId,
				Type:        req.Type,
				Qty:         take.Take.Neg(),
				UnitCost:    item.AverageCost,
				TotalCost:   utils.RoundCurrency(take.Take.Mul(item.AverageCost)),
				Reference:   req.Reference,
				Reason:      req.Reason,
				PerformedBy: req.Actor,
			}
			if err := models.AppendStockMovement(tx, movement); err != nil {
				return nil, err
			}
			result.Movements = append(result.Movements, movement)
		}
	}
	return result, nil
}

// ConsumeReservation turns previously reserved stock into an actual outflow
// at delivery: reserved and on-hand both drop, availability is unchanged,
// and the SALE movement is recorded now that the quantity changes.
func ConsumeReservation(tx *gorm.DB, productId int, qty decimal.Decimal, reference string, actor string) ([]*models.StockMovement, error) {
	if !qty.IsPositive() {
		return nil, utils.NewValidationError("consume quantity must be positive")
	}

	var items []*models.StockItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND reserved > 0", productId).
		Order("reserved ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	remaining := qty
	movements := make([]*models.StockMovement, 0, len(items))
	for _, item := range items {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, item.Reserved)
		item.Reserved = item.Reserved.Sub(take)
		item.Quantity = item.Quantity.Sub(take)
		item.TotalValue = utils.RoundCurrency(item.Quantity.Mul(item.AverageCost))
		if err := tx.Save(item).Error; err != nil {
			return nil, err
		}

		movement := &models.StockMovement{
			ProductId:   item.ProductId,
			StockItemId: item.ID,
			WarehouseId: item.WarehouseId,
			Type:        models.StockMovementTypeSale,
			Qty:         take.Neg(),
			UnitCost:    item.AverageCost,
			TotalCost:   utils.RoundCurrency(take.Mul(item.AverageCost)),
			Reference:   reference,
			Reason:      "reserved stock delivered",
			PerformedBy: actor,
		}
		if err := models.AppendStockMovement(tx, movement); err != nil {
			return nil, err
		}
		movements = append(movements, movement)
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return nil, &utils.InsufficientStockError{
			ProductId: productId,
			Requested: qty,
			Available: qty.Sub(remaining),
			Shortfall: remaining,
		}
	}
	return movements, nil
}

// ReleaseReservation puts reserved stock back (order cancelled before
// delivery). Quantity is untouched, so no movement is written.
func ReleaseReservation(tx *gorm.DB, productId int, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return utils.NewValidationError("release quantity must be positive")
	}

	var items []*models.StockItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND reserved > 0", productId).
		Order("reserved DESC, id ASC").
		Find(&items).Error
	if err != nil {
		return err
	}

	remaining := qty
	for _, item := range items {
		if !remaining.IsPositive() {
			break
		}
		release := decimal.Min(remaining, item.Reserved)
		item.Reserved = item.Reserved.Sub(release)
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		remaining = remaining.Sub(release)
	}
	return nil
}

// Receive books incoming stock into a lot and recomputes its weighted
// average cost. Receiving is additive, it never shortfalls.
func Receive(tx *gorm.DB, productId int, warehouseId int, qty decimal.Decimal, unitCost decimal.Decimal, reference string, actor string) (*models.StockMovement, error) {
	if !qty.IsPositive() {
		return nil, utils.NewValidationError("receive quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, utils.NewValidationError("unit cost must not be negative")
	}

	item, err := models.FetchOrCreateStockItem(tx, productId, warehouseId)
	if err != nil {
		return nil, err
	}

	item.AverageCost = weightedAverageCost(item.Quantity, item.AverageCost, qty, unitCost)
	item.Quantity = item.Quantity.Add(qty)
	item.TotalValue = utils.RoundCurrency(item.Quantity.Mul(item.AverageCost))
	if err := tx.Save(item).Error; err != nil {
		return nil, err
	}

	movement := &models.StockMovement{
		ProductId:   productId,
		StockItemId: item.ID,
		WarehouseId: warehouseId,
		Type:        models.StockMovementTypeReceipt,
		Qty:         qty,
		UnitCost:    unitCost,
		TotalCost:   utils.RoundCurrency(qty.Mul(unitCost)),
		Reference:   reference,
		Reason:      "stock received",
		PerformedBy: actor,
	}
	if err := models.AppendStockMovement(tx, movement); err != nil {
		return nil, err
	}
	return movement, nil
}

// weightedAverageCost blends the incoming cost into the running average.
// A zero combined quantity keeps the old average rather than dividing by
// zero.
func weightedAverageCost(oldQty decimal.Decimal, oldAvg decimal.Decimal, inQty decimal.Decimal, inCost decimal.Decimal) decimal.Decimal {
	newQty := oldQty.Add(inQty)
	if newQty.IsZero() {
		return oldAvg
	}
	total := oldAvg.Mul(oldQty).Add(inCost.Mul(inQty))
	return total.Div(newQty).Round(4)
}

// Adjust applies a signed correction to a lot's on-hand quantity. An
// adjustment that would push the quantity negative is rejected before
// anything is written.
func Adjust(tx *gorm.DB, stockItemId int, delta decimal.Decimal, reason string, actor string) (*models.StockMovement, error) {
	if delta.IsZero() {
		return nil, utils.NewValidationError("adjustment delta must not be zero")
	}

	item, err := models.FetchStockItemForUpdate(tx, stockItemId)
	if err != nil {
		return nil, err
	}

	newQty := item.Quantity.Add(delta)
	if newQty.IsNegative() || newQty.Sub(item.Reserved).IsNegative() {
		return nil, &utils.NegativeStockError{
			StockItemId: stockItemId,
			Quantity:    item.Quantity,
			Delta:       delta,
		}
	}

	item.Quantity = newQty
	item.TotalValue = utils.RoundCurrency(item.Quantity.Mul(item.AverageCost))
	if err := tx.Save(item).Error; err != nil {
		return nil, err
	}

	movement := &models.StockMovement{
		ProductId:   item.ProductId,
		StockItemId: item.ID,
		WarehouseId: item.WarehouseId,
		Type:        models.StockMovementTypeAdjustment,
		Qty:         delta,
		UnitCost:    item.AverageCost,
		TotalCost:   utils.RoundCurrency(delta.Abs().Mul(item.AverageCost)),
		Reason:      reason,
		PerformedBy: actor,
	}
	if err := models.AppendStockMovement(tx, movement); err != nil {
		return nil, err
	}
	return movement, nil
}
