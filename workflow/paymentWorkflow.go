package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentInput struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Notes  string          `json:"notes"`
}

// RecordInvoicePayment books a payment against an invoice. For credit
// invoices the payment also pays down the distributor's used credit with a
// PAYMENT_RECEIVED ledger entry, restoring headroom in the same
// transaction the invoice is updated in.
func RecordInvoicePayment(ctx context.Context, db *gorm.DB, logger *logrus.Logger, invoiceId int, input *PaymentInput) (*models.SalesInvoice, error) {

	if !input.Amount.IsPositive() {
		return nil, utils.NewValidationError("payment amount must be positive")
	}

	actor := utils.ActorFromContext(ctx)
	var invoice models.SalesInvoice

	err := RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&invoice, invoiceId).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		if invoice.Status == models.InvoiceStatusVoid {
			return utils.NewValidationError("invoice %s is void", invoice.InvoiceNumber)
		}
		if invoice.Status == models.InvoiceStatusPaid {
			return utils.NewValidationError("invoice %s is already paid", invoice.InvoiceNumber)
		}

		outstanding := invoice.TotalAmount.Sub(invoice.AmountPaid)
		if input.Amount.GreaterThan(outstanding) {
			return utils.NewValidationError("payment %s exceeds outstanding balance %s",
				input.Amount.StringFixed(2), outstanding.StringFixed(2))
		}

		newPaid := invoice.AmountPaid.Add(input.Amount)
		err = tx.Model(&invoice).Updates(map[string]interface{}{
			"amount_paid": newPaid,
			"status":      invoice.PaymentStatusAfter(newPaid),
		}).Error
		if err != nil {
			return err
		}

		if invoice.PaymentMethod == models.PaymentMethodCredit && invoice.CustomerKind == models.CustomerKindDistributor {
			reason := input.Notes
			if reason == "" {
				reason = "invoice payment"
			}
			if _, err := ReleaseCharge(tx, invoice.CustomerId, input.Amount, invoice.InvoiceNumber, reason, actor); err != nil {
				return err
			}
		}

		return models.EnqueueNotification(ctx, tx, models.EventTypePaymentReceived, models.OrderEventPayload{
			CustomerKind:   string(invoice.CustomerKind),
			CustomerId:     invoice.CustomerId,
			Amount:         input.Amount.StringFixed(2),
			OrderReference: invoice.InvoiceNumber,
			PaymentMethod:  string(invoice.PaymentMethod),
		})
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}
