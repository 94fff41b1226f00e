package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const creditScanLockKey = "distro:credit-utilization-scan"

type AlertEvent struct {
	DistributorId  int                 `json:"distributor_id"`
	AlertType      models.CreditAction `json:"alert_type"`
	UtilizationPct decimal.Decimal     `json:"utilization_pct"`
}

// alertTypeFor classifies a distributor's utilization: at or over the limit
// is CREDIT_LIMIT_EXCEEDED, at or over the configured threshold is
// HIGH_CREDIT_UTILIZATION, below is no alert.
func alertTypeFor(utilizationPct decimal.Decimal, thresholdPct decimal.Decimal) (models.CreditAction, bool) {
	hundred := decimal.NewFromInt(100)
	if utilizationPct.GreaterThanOrEqual(hundred) {
		return models.CreditActionLimitExceeded, true
	}
	if utilizationPct.GreaterThanOrEqual(thresholdPct) {
		return models.CreditActionHighCreditUtilization, true
	}
	return "", false
}

// ScanUtilizationAlerts walks every active credit distributor and raises an
// alert for each one at or above the utilization threshold. A redis lock
// keeps overlapping scans (cron plus manual trigger) from double-alerting.
// Each alert is a ledger entry plus an outbox event; a rerun of the scan
// re-raises standing alerts unless the cooldown flag suppresses repeats.
func ScanUtilizationAlerts(ctx context.Context, db *gorm.DB, logger *logrus.Logger) ([]AlertEvent, error) {

	lock, err := config.GetRedisLock().Obtain(ctx, creditScanLockKey, 2*time.Minute, nil)
	if err == redislock.ErrNotObtained {
		logger.WithField("module", "creditMonitor").Info("utilization scan already running, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer lock.Release(context.WithoutCancel(ctx))

	distributors, err := models.GetActiveCreditDistributors(db.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	var settings models.OrderSettings
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settings, err = models.ResolveOrderSettings(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	actor := utils.ActorFromContext(ctx)
	cooldown := time.Duration(config.CreditAlertCooldownMinutes()) * time.Minute
	var alerts []AlertEvent

	for _, distributor := range distributors {
		utilization := distributor.UtilizationPct()
		alertType, alerting := alertTypeFor(utilization, settings.AlertThresholdPct)
		if !alerting {
			continue
		}

		// Per-distributor transaction: one failed alert does not roll
		// back the rest of the scan.
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if cooldown > 0 {
				lastAt, err := models.LastAlertEntryAt(tx, distributor.ID, alertType)
				if err != nil {
					return err
				}
				if lastAt != nil && time.Since(*lastAt) < cooldown {
					return nil
				}
			}

			overdue, err := overdueInvoiceCount(tx, distributor.ID, settings.OverdueDays)
			if err != nil {
				return err
			}

			entry := models.CreditLedgerEntry{
				DistributorId: distributor.ID,
				Action:        alertType,
				PreviousLimit: distributor.CreditLimit,
				NewLimit:      distributor.CreditLimit,
				PreviousUsed:  distributor.CurrentCreditUsed,
				NewUsed:       distributor.CurrentCreditUsed,
				Reason:        fmt.Sprintf("utilization %s%%, %d overdue invoice(s)", utilization.StringFixed(2), overdue),
				PerformedBy:   actor,
				PerformedAt:   time.Now().UTC(),
			}
			if err := models.AppendCreditLedgerEntry(tx, &entry); err != nil {
				return err
			}

			if err := models.EnqueueNotification(ctx, tx, models.EventTypeCreditAlert, models.CreditAlertPayload{
				DistributorId:  distributor.ID,
				AlertType:      string(alertType),
				UtilizationPct: utilization.StringFixed(2),
				CreditLimit:    distributor.CreditLimit.StringFixed(2),
				CreditUsed:     distributor.CurrentCreditUsed.StringFixed(2),
			}); err != nil {
				return err
			}

			alerts = append(alerts, AlertEvent{
				DistributorId:  distributor.ID,
				AlertType:      alertType,
				UtilizationPct: utilization,
			})
			return nil
		})
		if err != nil {
			config.LogError(logger, "creditMonitor.go", "ScanUtilizationAlerts", "alert", map[string]interface{}{
				"distributorId": distributor.ID,
			}, err)
		}
	}

	return alerts, nil
}

// overdueInvoiceCount counts unpaid credit invoices older than the overdue
// window, for alert context.
func overdueInvoiceCount(tx *gorm.DB, distributorId int, overdueDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -overdueDays)
	var count int64
	err := tx.Model(&models.SalesInvoice{}).
		Where("customer_kind = ? AND customer_id = ? AND payment_method = ? AND status IN ? AND invoice_date < ?",
			models.CustomerKindDistributor, distributorId, models.PaymentMethodCredit,
			[]models.InvoiceStatus{models.InvoiceStatusUnpaid, models.InvoiceStatusPartiallyPaid}, cutoff).
		Count(&count).Error
	return count, err
}
