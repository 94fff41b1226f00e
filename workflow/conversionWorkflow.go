package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateQuotation prices and records a quotation. Quotations are offers:
// no credit is charged and no stock moves until conversion.
func CreateQuotation(ctx context.Context, db *gorm.DB, logger *logrus.Logger, converter CurrencyConverter, input *models.NewQuotation) (*models.Quotation, error) {

	actor := utils.ActorFromContext(ctx)
	var quotation models.Quotation

	err := RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		settings, err := models.ResolveOrderSettings(tx)
		if err != nil {
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
			return utils.NewValidationError("quotation total must be positive")
		}

		quotationNumber, err := models.NextDocumentNumber(tx, models.ModuleQuotation)
		if err != nil {
			return err
		}

		quotation = models.Quotation{
			QuotationNumber: quotationNumber,
			CustomerRef:     customer,
			PaymentMethod:   method,
			Status:          models.QuotationStatusDraft,
			TotalAmount:     total,
			CreatedBy:       actor,
			QuotationDate:   time.Now().UTC(),
		}
		for _, line := range priced {
			quotation.Details = append(quotation.Details, models.QuotationDetail{
				ProductId: line.ProductId,
				Qty:       line.Qty,
				UnitPrice: line.UnitPrice,
				LineTotal: line.LineTotal,
			})
		}
		return tx.Create(&quotation).Error
	})
	if err != nil {
		return nil, err
	}
	return &quotation, nil
}

// ConvertQuotationToInvoice turns an accepted quotation into an invoice at
// the quoted prices, charging credit and deducting stock in one
// transaction. Conversion is idempotent: a second call for an already
// converted quotation returns the existing invoice.
func ConvertQuotationToInvoice(ctx context.Context, db *gorm.DB, logger *logrus.Logger, quotationId int) (*models.SalesInvoice, error) {

	actor := utils.ActorFromContext(ctx)
	var invoice models.SalesInvoice

	err := RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		var quotation models.Quotation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Details").
			First(&quotation, quotationId).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		if quotation.ConvertedInvoiceId != nil {
			return tx.Preload("Details").First(&invoice, *quotation.ConvertedInvoiceId).Error
		}
		if quotation.Status != models.QuotationStatusAccepted {
			return utils.NewValidationError("quotation %s is %s, expected ACCEPTED", quotation.QuotationNumber, quotation.Status)
		}

		settings, err := models.ResolveOrderSettings(tx)
		if err != nil {
			config.LogError(logger, "conversionWorkflow.go", "ConvertQuotationToInvoice", "ResolveOrderSettings", nil, err)
			return err
		}

		invoiceNumber, err := models.NextDocumentNumber(tx, models.ModuleSalesInvoice)
		if err != nil {
			return err
		}

		status := models.InvoiceStatusPaid
		if quotation.PaymentMethod == models.PaymentMethodCredit {
			status = models.InvoiceStatusUnpaid
		}
		invoice = models.SalesInvoice{
			InvoiceNumber: invoiceNumber,
			CustomerRef:   quotation.CustomerRef,
			PaymentMethod: quotation.PaymentMethod,
			Status:        status,
			TotalAmount:   quotation.TotalAmount,
			QuotationId:   &quotation.ID,
			CreatedBy:     actor,
			InvoiceDate:   time.Now().UTC(),
		}
		if status == models.InvoiceStatusPaid {
			invoice.AmountPaid = quotation.TotalAmount
		}
		for _, line := range quotation.Details {
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

		if quotation.PaymentMethod == models.PaymentMethodCredit {
			distributor, creditBearing, err := quotation.CustomerRef.AsCreditBearing(tx)
			if err != nil {
				return err
			}
			if !creditBearing {
				return utils.NewValidationError("only distributors can convert credit quotations")
			}
			if settings.CreditCheckEnabled {
				if _, err := ApplyCharge(tx, distributor.ID, quotation.TotalAmount, invoiceNumber, actor); err != nil {
					return err
				}
				if err := enqueueChargeEvent(ctx, tx, distributor.ID, quotation.TotalAmount, invoiceNumber); err != nil {
					return err
				}
			}
		}

		for _, line := range quotation.Details {
			_, err := Allocate(tx, AllocationRequest{
				ProductId:   line.ProductId,
				Qty:         line.Qty,
				Mode:        AllocationModeDeduct,
				Type:        models.StockMovementTypeSale,
				Reference:   invoiceNumber,
				Reason:      "quotation conversion",
				Actor:       actor,
				RequireFull: true,
			})
			if err != nil {
				return err
			}
		}

		err = tx.Model(&quotation).Updates(map[string]interface{}{
			"status":               models.QuotationStatusConverted,
			"converted_invoice_id": invoice.ID,
		}).Error
		if err != nil {
			return err
		}

		return models.EnqueueNotification(ctx, tx, models.EventTypeQuotationConverted, models.OrderEventPayload{
			CustomerKind:   string(quotation.CustomerKind),
			CustomerId:     quotation.CustomerId,
			Amount:         quotation.TotalAmount.StringFixed(2),
			OrderReference: invoiceNumber,
			PaymentMethod:  string(quotation.PaymentMethod),
		})
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}
