package reports

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"github.com/shopspring/decimal"
)

type StockSummaryResponse struct {
	ProductId     int             `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Sku           string          `json:"sku"`
	WarehouseId   int             `json:"warehouse_id"`
	WarehouseName string          `json:"warehouse_name"`
	Quantity      decimal.Decimal `json:"quantity"`
	Reserved      decimal.Decimal `json:"reserved"`
	Available     decimal.Decimal `json:"available"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// GetStockSummaryReport lists every stocked lot with its on-hand, reserved
// and valuation figures.
func GetStockSummaryReport(ctx context.Context) ([]*StockSummaryResponse, error) {
	start := time.Now()
	defer logSlowReport(ctx, "stock_summary_report", start, nil)

	if reportCacheEnabled() {
		key := "report:stock_summary"
		var cached []*StockSummaryResponse
		if ok, err := cacheGet(key, &cached); err == nil && ok && cached != nil {
			return cached, nil
		}
		rows, err := queryStockSummary(ctx)
		if err != nil {
			return nil, err
		}
		_ = cacheSet(key, rows, reportCacheTTL())
		return rows, nil
	}

	return queryStockSummary(ctx)
}

func queryStockSummary(ctx context.Context) ([]*StockSummaryResponse, error) {
	sql := `
SELECT
    si.product_id,
    p.name AS product_name,
    p.sku,
    si.warehouse_id,
    w.name AS warehouse_name,
    si.quantity,
    si.reserved,
    si.available,
    si.average_cost,
    si.total_value
FROM
    stock_items si
    LEFT JOIN products p ON p.id = si.product_id
    LEFT JOIN warehouses w ON w.id = si.warehouse_id
WHERE
    si.quantity > 0 OR si.reserved > 0
ORDER BY
    p.name ASC, w.name ASC;
`
	var records []*StockSummaryResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
