package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type CheckoutInput struct {
	CustomerKind  string                `json:"customer_kind" binding:"required"`
	CustomerId    int                   `json:"customer_id" binding:"required"`
	PaymentMethod string                `json:"payment_method" binding:"required"`
	Lines         []models.NewOrderLine `json:"lines" binding:"required"`
}

// Checkout is the walk-in sale path: price, charge and deduct stock in a
// single transaction, producing an invoice. Unlike the order flow there is
// no reservation stage, so every line must be fully stocked or the whole
// checkout rolls back, credit charge included.
func Checkout(ctx context.Context, db *gorm.DB, logger *logrus.Logger, converter CurrencyConverter, input *CheckoutInput) (*models.SalesInvoice, error) {

	actor := utils.ActorFromContext(ctx)
	var invoice models.SalesInvoice

	err := RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		settings, err := models.ResolveOrderSettings(tx)
		if err != nil {
			config.LogError(logger, "checkoutWorkflow.go", "Checkout", "ResolveOrderSettings", nil, err)
			return err
		}

		orderInput := models.NewSalesOrder{
			CustomerKind:  input.CustomerKind,
			CustomerId:    input.CustomerId,
			PaymentMethod: input.PaymentMethod,
			Lines:         input.Lines,
		}
		customer, method, err := orderInput.Validate(ctx, tx)
		if err != nil {
			return err
		}

		priced, total, err := priceLines(tx, input.Lines, settings.SettlementCurrency, converter)
		if err != nil {
			return err
		}
		if !total.IsPositive() {
			return utils.NewValidationError("checkout total must be positive")
		}

		invoiceNumber, err := models.NextDocumentNumber(tx, models.ModuleSalesInvoice)
		if err != nil {
			return err
		}

		status := models.InvoiceStatusPaid
		if method == models.PaymentMethodCredit {
			status = models.InvoiceStatusUnpaid
		}
		invoice = models.SalesInvoice{
			InvoiceNumber: invoiceNumber,
			CustomerRef:   customer,
			PaymentMethod: method,
			Status:        status,
			TotalAmount:   total,
			CreatedBy:     actor,
			InvoiceDate:   time.Now().UTC(),
		}
		if status == models.InvoiceStatusPaid {
			invoice.AmountPaid = total
		}
		for _, line := range priced {
			invoice.Details = append(invoice.Details, models.SalesInvoiceDetail{
				ProductId: line.ProductId,
				Qty:       line.Qty,
				UnitPrice: line.UnitPrice,
				LineTotal: line.LineTotal,
			})
		}
		if err := tx.Create(&invoice).Error; err != nil {
			return err
		}

		if method == models.PaymentMethodCredit {
			distributor, creditBearing, err := customer.AsCreditBearing(tx)
			if err != nil {
				return err
			}
			if !creditBearing {
				return utils.NewValidationError("only distributors can check out on credit")
			}
			if settings.CreditCheckEnabled {
				if _, err := ApplyCharge(tx, distributor.ID, total, invoiceNumber, actor); err != nil {
					return err
				}
				if err := enqueueChargeEvent(ctx, tx, distributor.ID, total, invoiceNumber); err != nil {
					return err
				}
			}
		}

		// Stock comes off last. Any shortfall on any line unwinds the
		// invoice and the credit charge above.
		for _, line := range priced {
			_, err := Allocate(tx, AllocationRequest{
				ProductId:   line.ProductId,
				Qty:         line.Qty,
				Mode:        AllocationModeDeduct,
				Type:        models.StockMovementTypeSale,
				Reference:   invoiceNumber,
				Reason:      "checkout",
				Actor:       actor,
				RequireFull: true,
			})
			if err != nil {
				return err
			}
		}

		customerName, err := customer.DisplayName(tx)
		if err != nil {
			return err
		}
		return models.EnqueueNotification(ctx, tx, models.EventTypeCheckoutCompleted, models.OrderEventPayload{
			CustomerKind:   string(customer.CustomerKind),
			CustomerId:     customer.CustomerId,
			CustomerName:   customerName,
			Amount:         total.StringFixed(2),
			OrderReference: invoiceNumber,
			PaymentMethod:  string(method),
		})
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}
