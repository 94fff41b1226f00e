package workflow

import (
	"context"
	"fmt"
	"io"
	"strings"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type receiptRow struct {
	Sku       string
	Qty       decimal.Decimal
	UnitCost  decimal.Decimal
	Reference string
}

type ImportSummary struct {
	RowsImported int      `json:"rows_imported"`
	ProductIds   []int    `json:"product_ids"`
	References   []string `json:"references"`
}

func populateReceiptRow(row []string) (*receiptRow, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	qty, err := decimal.NewFromString(cell(1))
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %q", cell(1))
	}
	unitCost, err := decimal.NewFromString(cell(2))
	if err != nil {
		return nil, fmt.Errorf("invalid unit cost %q", cell(2))
	}
	return &receiptRow{
		Sku:       cell(0),
		Qty:       qty,
		UnitCost:  unitCost,
		Reference: cell(3),
	}, nil
}

func validateReceiptRows(rows [][]string) ([]receiptRow, error) {
	if len(rows) < 2 {
		return nil, utils.NewValidationError("import file has no data rows")
	}
	parsed := make([]receiptRow, 0, len(rows)-1)
	for idx, row := range rows[1:] {
		receipt, err := populateReceiptRow(row)
		if err != nil {
			return nil, utils.NewValidationError("error in row %d: %v", idx+2, err)
		}
		if len(receipt.Sku) == 0 {
			return nil, utils.NewValidationError("product sku is null in row %d", idx+2)
		}
		if !receipt.Qty.IsPositive() {
			return nil, utils.NewValidationError("quantity must be positive in row %d", idx+2)
		}
		if receipt.UnitCost.IsNegative() {
			return nil, utils.NewValidationError("unit cost cannot be negative in row %d", idx+2)
		}
		parsed = append(parsed, *receipt)
	}
	return parsed, nil
}

// ImportStockReceipts loads an xlsx of incoming stock into one warehouse.
// Expected columns: sku, qty, unit_cost, reference, header row first. The
// whole file posts in a single transaction, so a bad row anywhere imports
// nothing. An advisory lock serializes imports per warehouse across
// instances.
func ImportStockReceipts(ctx context.Context, db *gorm.DB, logger *logrus.Logger, warehouseId int, file io.Reader) (*ImportSummary, error) {

	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, utils.NewValidationError("cannot read xlsx file: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, err
	}
	receipts, err := validateReceiptRows(rows)
	if err != nil {
		return nil, err
	}

	actor := utils.ActorFromContext(ctx)
	summary := ImportSummary{}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireImportLock(tx, warehouseId); err != nil {
			return err
		}
		defer ReleaseImportLock(tx, warehouseId)

		var warehouse models.Warehouse
		if err := tx.First(&warehouse, warehouseId).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		seen := make(map[int]bool)
		for idx, receipt := range receipts {
			var product models.Product
			err := tx.Where("sku = ? AND is_active = ?", receipt.Sku, true).First(&product).Error
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return utils.NewValidationError("unknown product sku %q in row %d", receipt.Sku, idx+2)
				}
				return err
			}

			if _, err := Receive(tx, product.ID, warehouseId, receipt.Qty, receipt.UnitCost, receipt.Reference, actor); err != nil {
				return err
			}

			summary.RowsImported++
			if !seen[product.ID] {
				seen[product.ID] = true
				summary.ProductIds = append(summary.ProductIds, product.ID)
			}
			if receipt.Reference != "" {
				summary.References = append(summary.References, receipt.Reference)
			}
		}
		summary.References = utils.UniqueSlice(summary.References)

		return models.EnqueueNotification(ctx, tx, models.EventTypeStockImportCompleted, map[string]interface{}{
			"warehouse_id":  warehouseId,
			"rows_imported": summary.RowsImported,
			"imported_by":   actor,
		})
	})
	if err != nil {
		config.LogError(logger, "bulkReceiving.go", "ImportStockReceipts", "import", map[string]interface{}{
			"warehouseId": warehouseId,
		}, err)
		return nil, err
	}
	return &summary, nil
}
