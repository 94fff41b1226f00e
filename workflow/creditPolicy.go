package workflow

import (
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditDecision is the outcome of a side-effect-free admission check.
type CreditDecision struct {
	Admit     bool            `json:"admit"`
	Available decimal.Decimal `json:"available"`
	Limit     decimal.Decimal `json:"limit"`
	Used      decimal.Decimal `json:"used"`
	Reason    string          `json:"reason,omitempty"`
}

// evaluateChargeAgainst is the pure admission rule. Fails closed: a
// suspended distributor or an amount beyond the remaining line is denied.
func evaluateChargeAgainst(distributor *models.Distributor, amount decimal.Decimal) CreditDecision {
	decision := CreditDecision{
		Available: distributor.AvailableCredit(),
		Limit:     distributor.CreditLimit,
		Used:      distributor.CurrentCreditUsed,
	}
	if distributor.CreditStatus == models.CreditStatusSuspended {
		decision.Reason = "credit is suspended"
		return decision
	}
	if amount.GreaterThan(decision.Available) {
		decision.Reason = "amount exceeds available credit"
		return decision
	}
	decision.Admit = true
	return decision
}

// EvaluateCharge checks whether a distributor may take a proposed charge.
// Pure evaluation, no side effects; used as a pre-check before commit. An
// unknown distributor denies rather than errors (fail closed).
func EvaluateCharge(tx *gorm.DB, distributorId int, amount decimal.Decimal) (CreditDecision, error) {
	if amount.IsNegative() {
		return CreditDecision{}, utils.NewValidationError("charge amount must not be negative")
	}
	var distributor models.Distributor
	err := tx.First(&distributor, distributorId).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return CreditDecision{Reason: "distributor not found"}, nil
		}
		return CreditDecision{}, err
	}
	return evaluateChargeAgainst(&distributor, amount), nil
}

// ApplyCharge consumes credit atomically: the conditional UPDATE admits the
// charge only if it still fits the limit at commit time, so two concurrent
// charges can never both slip past it on a stale read. Exactly one
// CREDIT_USED ledger entry is written in the caller's transaction; if the
// transaction rolls back, both the balance and the entry roll back with it.
func ApplyCharge(tx *gorm.DB, distributorId int, amount decimal.Decimal, reference string, actor string) (*models.CreditLedgerEntry, error) {
	if amount.IsNegative() {
		return nil, utils.NewValidationError("charge amount must not be negative")
	}
	amount = utils.RoundCurrency(amount)

	res := tx.Model(&models.Distributor{}).
		Where("id = ? AND credit_status = ? AND current_credit_used + ? <= credit_limit",
			distributorId, models.CreditStatusActive, amount).
		Update("current_credit_used", gorm.Expr("current_credit_used + ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Denied: re-read for the numbers the caller needs to explain why.
		decision, err := EvaluateCharge(tx, distributorId, amount)
		if err != nil {
			return nil, err
		}
		if decision.Reason == "distributor not found" {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, &utils.CreditDeniedError{
			DistributorId: distributorId,
			Requested:     amount,
			Available:     decision.Available,
			Limit:         decision.Limit,
			Used:          decision.Used,
			Reason:        decision.Reason,
		}
	}

	var distributor models.Distributor
	if err := tx.First(&distributor, distributorId).Error; err != nil {
		return nil, err
	}

	entry := &models.CreditLedgerEntry{
		DistributorId: distributorId,
		Action:        models.CreditActionUsed,
		PreviousLimit: distributor.CreditLimit,
		NewLimit:      distributor.CreditLimit,
		PreviousUsed:  distributor.CurrentCreditUsed.Sub(amount),
		NewUsed:       distributor.CurrentCreditUsed,
		Amount:        amount,
		Reason:        "credit order",
		Reference:     reference,
		PerformedBy:   actor,
	}
	if err := models.AppendCreditLedgerEntry(tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ForceApplyCharge is the admin override: it bypasses admission and may push
// usage past the limit. The ledger entry is tagged so the audit trail shows
// the override.
func ForceApplyCharge(tx *gorm.DB, distributorId int, amount decimal.Decimal, reference string, reason string, actor string) (*models.CreditLedgerEntry, error) {
	if amount.IsNegative() {
		return nil, utils.NewValidationError("charge amount must not be negative")
	}
	amount = utils.RoundCurrency(amount)

	distributor, err := lockDistributor(tx, distributorId)
	if err != nil {
		return nil, err
	}

	newUsed := distributor.CurrentCreditUsed.Add(amount)
	err = tx.Model(distributor).Update("current_credit_used", newUsed).Error
	if err != nil {
		return nil, err
	}

	if reason == "" {
		reason = "admin override"
	}
	entry := &models.CreditLedgerEntry{
		DistributorId: distributorId,
		Action:        models.CreditActionUsed,
		PreviousLimit: distributor.CreditLimit,
		NewLimit:      distributor.CreditLimit,
		PreviousUsed:  distributor.CurrentCreditUsed,
		NewUsed:       newUsed,
		Amount:        amount,
		Reason:        "override: " + reason,
		Reference:     reference,
		PerformedBy:   actor,
	}
	if err := models.AppendCreditLedgerEntry(tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ReleaseCharge pays credit usage down (payment received, order cancelled).
// The balance floors at zero; the ledger entry records the actual delta.
func ReleaseCharge(tx *gorm.DB, distributorId int, amount decimal.Decimal, reference string, reason string, actor string) (*models.CreditLedgerEntry, error) {
	if amount.IsNegative() {
		return nil, utils.NewValidationError("release amount must not be negative")
	}
	amount = utils.RoundCurrency(amount)

	distributor, err := lockDistributor(tx, distributorId)
	if err != nil {
		return nil, err
	}

	release := amount
	if release.GreaterThan(distributor.CurrentCreditUsed) {
		release = distributor.CurrentCreditUsed
	}
	newUsed := distributor.CurrentCreditUsed.Sub(release)
	err = tx.Model(distributor).Update("current_credit_used", newUsed).Error
	if err != nil {
		return nil, err
	}

	entry := &models.CreditLedgerEntry{
		DistributorId: distributorId,
		Action:        models.CreditActionPaymentReceived,
		PreviousLimit: distributor.CreditLimit,
		NewLimit:      distributor.CreditLimit,
		PreviousUsed:  distributor.CurrentCreditUsed,
		NewUsed:       newUsed,
		Amount:        release,
		Reason:        reason,
		Reference:     reference,
		PerformedBy:   actor,
	}
	if err := models.AppendCreditLedgerEntry(tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// limitActionFor picks the ledger tag by comparing the new limit to the old.
func limitActionFor(previous decimal.Decimal, next decimal.Decimal) models.CreditAction {
	switch {
	case next.GreaterThan(previous):
		return models.CreditActionLimitIncreased
	case next.LessThan(previous):
		return models.CreditActionLimitDecreased
	default:
		return models.CreditActionLimitSet
	}
}

// SetLimit changes a distributor's credit limit. Lowering the limit below
// current usage is allowed: historical usage is never rewritten, the
// over-limit state persists and the monitor flags it. Only future charges
// see the new limit.
func SetLimit(tx *gorm.DB, distributorId int, newLimit decimal.Decimal, reason string, actor string) (*models.CreditLedgerEntry, error) {
	if newLimit.IsNegative() {
		return nil, utils.NewValidationError("credit limit must not be negative")
	}
	newLimit = utils.RoundCurrency(newLimit)

	distributor, err := lockDistributor(tx, distributorId)
	if err != nil {
		return nil, err
	}

	action := limitActionFor(distributor.CreditLimit, newLimit)
	err = tx.Model(distributor).Update("credit_limit", newLimit).Error
	if err != nil {
		return nil, err
	}

	entry := &models.CreditLedgerEntry{
		DistributorId: distributorId,
		Action:        action,
		PreviousLimit: distributor.CreditLimit,
		NewLimit:      newLimit,
		PreviousUsed:  distributor.CurrentCreditUsed,
		NewUsed:       distributor.CurrentCreditUsed,
		Amount:        newLimit.Sub(distributor.CreditLimit).Abs(),
		Reason:        reason,
		Reference:     "",
		PerformedBy:   actor,
	}
	if err := models.AppendCreditLedgerEntry(tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ReviewCredit annotates the ledger without touching balances, so the
// monitoring surface can show when a human last looked at an over-limit
// distributor.
func ReviewCredit(tx *gorm.DB, distributorId int, notes string, actor string) (*models.CreditLedgerEntry, error) {
	distributor, err := lockDistributor(tx, distributorId)
	if err != nil {
		return nil, err
	}
	entry := &models.CreditLedgerEntry{
		DistributorId: distributorId,
		Action:        models.CreditActionReviewed,
		PreviousLimit: distributor.CreditLimit,
		NewLimit:      distributor.CreditLimit,
		PreviousUsed:  distributor.CurrentCreditUsed,
		NewUsed:       distributor.CurrentCreditUsed,
		Amount:        decimal.Zero,
		Reason:        notes,
		PerformedBy:   actor,
		PerformedAt:   time.Now().UTC(),
	}
	if err := models.AppendCreditLedgerEntry(tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func lockDistributor(tx *gorm.DB, distributorId int) (*models.Distributor, error) {
	var distributor models.Distributor
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&distributor, distributorId).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &distributor, nil
}
