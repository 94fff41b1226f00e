package reports

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"github.com/shopspring/decimal"
)

type CreditUtilizationResponse struct {
	DistributorId   int             `json:"distributor_id"`
	DistributorName string          `json:"distributor_name"`
	CreditStatus    string          `json:"credit_status"`
	CreditLimit     decimal.Decimal `json:"credit_limit"`
	CreditUsed      decimal.Decimal `json:"credit_used"`
	AvailableCredit decimal.Decimal `json:"available_credit"`
	UtilizationPct  decimal.Decimal `json:"utilization_pct"`
	OpenInvoices    int             `json:"open_invoices"`
}

// GetCreditUtilizationReport lists every active distributor with their
// current credit position, highest utilization first.
func GetCreditUtilizationReport(ctx context.Context) ([]*CreditUtilizationResponse, error) {
	start := time.Now()
	defer logSlowReport(ctx, "credit_utilization_report", start, nil)

	if reportCacheEnabled() {
		key := "report:credit_utilization"
		var cached []*CreditUtilizationResponse
		if ok, err := cacheGet(key, &cached); err == nil && ok && cached != nil {
			return cached, nil
		}
		rows, err := queryCreditUtilization(ctx)
		if err != nil {
			return nil, err
		}
		_ = cacheSet(key, rows, reportCacheTTL())
		return rows, nil
	}

	return queryCreditUtilization(ctx)
}

func queryCreditUtilization(ctx context.Context) ([]*CreditUtilizationResponse, error) {
	sql := `
SELECT
    d.id AS distributor_id,
    d.name AS distributor_name,
    d.credit_status,
    d.credit_limit,
    d.current_credit_used AS credit_used,
    GREATEST(d.credit_limit - d.current_credit_used, 0) AS available_credit,
    CASE WHEN d.credit_limit > 0
         THEN ROUND(d.current_credit_used / d.credit_limit * 100, 2)
         ELSE 0 END AS utilization_pct,
    COALESCE(inv.open_invoices, 0) AS open_invoices
FROM
    distributors d
    LEFT JOIN (
        SELECT
            customer_id,
            COUNT(id) AS open_invoices
        FROM
            sales_invoices
        WHERE
            customer_kind = 'DISTRIBUTOR'
            AND payment_method = 'CREDIT'
            AND status IN ('UNPAID', 'PARTIALLY_PAID')
        GROUP BY
            customer_id
    ) AS inv ON inv.customer_id = d.id
WHERE
    d.is_active = 1
ORDER BY
    utilization_pct DESC, d.id ASC;
`
	var records []*CreditUtilizationResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
