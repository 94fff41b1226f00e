package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreditLedgerEntry is the append-only audit trail of every credit-limit and
// credit-usage change. Rows are written in the same transaction as the
// distributor mutation they record. There is no update or delete path.
type CreditLedgerEntry struct {
	ID            int             `gorm:"primary_key" json:"id"`
	DistributorId int             `gorm:"index;not null" json:"distributor_id"`
	Action        CreditAction    `gorm:"type:enum('CREDIT_USED','CREDIT_LIMIT_INCREASED','CREDIT_LIMIT_DECREASED','CREDIT_LIMIT_SET','PAYMENT_RECEIVED','CREDIT_LIMIT_EXCEEDED','HIGH_CREDIT_UTILIZATION','CREDIT_REVIEWED');not null;index" json:"action"`
	PreviousLimit decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"previous_limit"`
	NewLimit      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"new_limit"`
	PreviousUsed  decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"previous_used"`
	NewUsed       decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"new_used"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"amount"`
	Reason        string          `gorm:"type:text" json:"reason"`
	Reference     string          `gorm:"size:100;index" json:"reference"`
	PerformedBy   string          `gorm:"size:100;not null" json:"performed_by"`
	PerformedAt   time.Time       `gorm:"not null;index" json:"performed_at"`
}

// AppendCreditLedgerEntry writes one ledger row inside the caller's
// transaction. Every credit mutation goes through here.
func AppendCreditLedgerEntry(tx *gorm.DB, entry *CreditLedgerEntry) error {
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = time.Now().UTC()
	}
	return tx.Create(entry).Error
}

func GetCreditLedger(ctx context.Context, distributorId int, limit int) ([]*CreditLedgerEntry, error) {
	db := config.GetDB()
	if limit <= 0 {
		limit = 100
	}
	var entries []*CreditLedgerEntry
	err := db.WithContext(ctx).
		Where("distributor_id = ?", distributorId).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// LedgerUsedBalance recomputes current usage from the ledger alone:
// sum of CREDIT_USED amounts minus sum of PAYMENT_RECEIVED amounts.
// The live Distributor.CurrentCreditUsed must always equal this.
func LedgerUsedBalance(tx *gorm.DB, distributorId int) (decimal.Decimal, error) {
	type row struct {
		Action CreditAction
		Total  decimal.Decimal
	}
	var rows []row
	err := tx.Model(&CreditLedgerEntry{}).
		Select("action, COALESCE(SUM(amount), 0) AS total").
		Where("distributor_id = ? AND action IN ?", distributorId,
			[]CreditAction{CreditActionUsed, CreditActionPaymentReceived}).
		Group("action").
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, r := range rows {
		switch r.Action {
		case CreditActionUsed:
			balance = balance.Add(r.Total)
		case CreditActionPaymentReceived:
			balance = balance.Sub(r.Total)
		}
	}
	return balance, nil
}

// LastAlertEntryAt returns when the given alert action was last recorded for
// a distributor. Used only by the optional alert cooldown.
func LastAlertEntryAt(tx *gorm.DB, distributorId int, action CreditAction) (*time.Time, error) {
	var entry CreditLedgerEntry
	err := tx.Where("distributor_id = ? AND action = ?", distributorId, action).
		Order("id DESC").
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entry.PerformedAt, nil
}
