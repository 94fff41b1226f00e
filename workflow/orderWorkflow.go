package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlaceOrder is one atomic customer action: request validation, pricing,
// record creation and the credit charge all commit or all roll back
// together. Outbox events are written inside the transaction and published
// only after commit.
func PlaceOrder(ctx context.Context, db *gorm.DB, logger *logrus.Logger, converter CurrencyConverter, input *models.NewSalesOrder) (*models.SalesOrder, error) {

	actor := utils.ActorFromContext(ctx)
	var order models.SalesOrder

	err := RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		settings, err := models.ResolveOrderSettings(tx)
		if err != nil {
			config.LogError(logger, "orderWorkflow.go", "PlaceOrder", "ResolveOrderSettings", nil, err)
			return err
		}

		customer, method, err := input.Validate(ctx, tx)
		if err != nil {
			return err
		}

		priced, total, err := priceLines(tx, input.Lines, settings.SettlementCurrency, converter)
		if err != nil {
			return err
		}
		if !total.IsPositive() {
			return utils.NewValidationError("order total must be positive")
		}

		orderNumber, err := models.NextDocumentNumber(tx, models.ModuleSalesOrder)
		if err != nil {
			return err
		}

		order = models.SalesOrder{
			OrderNumber:   orderNumber,
			CustomerRef:   customer,
			PaymentMethod: method,
			Status:        models.SalesOrderStatusPending,
			TotalAmount:   total,
			CreatedBy:     actor,
			OrderDate:     time.Now().UTC(),
		}
		for _, line := range priced {
			order.Details = append(order.Details, models.SalesOrderDetail{
				ProductId: line.ProductId,
				Qty:       line.Qty,
				UnitPrice: line.UnitPrice,
				LineTotal: line.LineTotal,
			})
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		distributorId := 0
		if method == models.PaymentMethodCredit {
			distributor, creditBearing, err := customer.AsCreditBearing(tx)
			if err != nil {
				return err
			}
			if !creditBearing {
				return utils.NewValidationError("only distributors can place credit orders")
			}
			distributorId = distributor.ID

			if settings.CreditCheckEnabled {
				if _, err := ApplyCharge(tx, distributor.ID, total, orderNumber, actor); err != nil {
					return err
				}
				if err := enqueueChargeEvent(ctx, tx, distributor.ID, total, orderNumber); err != nil {
					return err
				}
			}
		}

		customerName, err := customer.DisplayName(tx)
		if err != nil {
			return err
		}
		return models.EnqueueNotification(ctx, tx, models.EventTypeOrderCreated, models.OrderEventPayload{
			DistributorId:  distributorId,
			CustomerKind:   string(customer.CustomerKind),
			CustomerId:     customer.CustomerId,
			CustomerName:   customerName,
			Amount:         total.StringFixed(2),
			OrderReference: orderNumber,
			PaymentMethod:  string(method),
		})
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func enqueueChargeEvent(ctx context.Context, tx *gorm.DB, distributorId int, amount decimal.Decimal, reference string) error {
	return models.EnqueueNotification(ctx, tx, models.EventTypeCreditCharged, models.OrderEventPayload{
		DistributorId:  distributorId,
		CustomerKind:   string(models.CustomerKindDistributor),
		CustomerId:     distributorId,
		Amount:         amount.StringFixed(2),
		OrderReference: reference,
		PaymentMethod:  string(models.PaymentMethodCredit),
	})
}

// ConfirmOrder moves a PENDING order to PROCESSING and reserves stock for
// every line. By default the whole confirmation fails on any shortfall;
// the partial-allocation flag lets stock-constrained deployments confirm
// with whatever is on hand and top the rest up after receiving.
func ConfirmOrder(ctx context.Context, db *gorm.DB, logger *logrus.Logger, orderId int) (*models.SalesOrder, error) {

	actor := utils.ActorFromContext(ctx)
	var order models.SalesOrder

	err := RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		if err := fetchOrderForUpdate(tx, orderId, &order); err != nil {
			return err
		}
		if order.Status != models.SalesOrderStatusPending {
			return utils.NewValidationError("order %s is %s, expected PENDING", order.OrderNumber, order.Status)
		}

		requireFull := !config.AllowPartialAllocation()
		for _, detail := range order.Details {
			_, err := Allocate(tx, AllocationRequest{
				ProductId:   detail.ProductId,
				Qty:         detail.Qty,
				Mode:        AllocationModeReserve,
				Type:        models.StockMovementTypeSale,
				Reference:   order.OrderNumber,
				Reason:      "order confirmed",
				Actor:       actor,
				RequireFull: requireFull,
			})
			if err != nil {
				return err
			}
		}

		return tx.Model(&order).Update("Status", models.SalesOrderStatusProcessing).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// DeliverOrder consumes the reservations made at confirmation and records
// the outgoing movements. A line whose reservation cannot cover its
// quantity aborts the delivery.
func DeliverOrder(ctx context.Context, db *gorm.DB, logger *logrus.Logger, orderId int) (*models.SalesOrder, error) {

	actor := utils.ActorFromContext(ctx)
	var order models.SalesOrder

	err := RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		if err := fetchOrderForUpdate(tx, orderId, &order); err != nil {
			return err
		}
		if order.Status != models.SalesOrderStatusProcessing {
			return utils.NewValidationError("order %s is %s, expected PROCESSING", order.OrderNumber, order.Status)
		}

		for _, detail := range order.Details {
			if _, err := ConsumeReservation(tx, detail.ProductId, detail.Qty, order.OrderNumber, actor); err != nil {
				return err
			}
		}

		return tx.Model(&order).Update("Status", models.SalesOrderStatusDelivered).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder reverses a pending or processing order: reserved stock is
// released, and any credit charged against the order is paid back down with
// a ledger entry referencing the order. Delivered orders cannot be
// cancelled here; they go through returns.
func CancelOrder(ctx context.Context, db *gorm.DB, logger *logrus.Logger, orderId int, reason string) (*models.SalesOrder, error) {

	actor := utils.ActorFromContext(ctx)
	var order models.SalesOrder

	err := RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		if err := fetchOrderForUpdate(tx, orderId, &order); err != nil {
			return err
		}
		if order.Status != models.SalesOrderStatusPending && order.Status != models.SalesOrderStatusProcessing {
			return utils.NewValidationError("order %s is %s and cannot be cancelled", order.OrderNumber, order.Status)
		}

		if order.Status == models.SalesOrderStatusProcessing {
			for _, detail := range order.Details {
				if err := ReleaseReservation(tx, detail.ProductId, detail.Qty); err != nil {
					return err
				}
			}
		}

		charged, err := chargedAmountFor(tx, order.OrderNumber)
		if err != nil {
			return err
		}
		if charged.IsPositive() && order.CustomerKind == models.CustomerKindDistributor {
			if reason == "" {
				reason = "order cancelled"
			}
			if _, err := ReleaseCharge(tx, order.CustomerId, charged, order.OrderNumber, reason, actor); err != nil {
				return err
			}
		}

		if err := tx.Model(&order).Update("Status", models.SalesOrderStatusCancelled).Error; err != nil {
			return err
		}

		return models.EnqueueNotification(ctx, tx, models.EventTypeOrderCancelled, models.OrderEventPayload{
			CustomerKind:   string(order.CustomerKind),
			CustomerId:     order.CustomerId,
			Amount:         order.TotalAmount.StringFixed(2),
			OrderReference: order.OrderNumber,
			PaymentMethod:  string(order.PaymentMethod),
		})
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// chargedAmountFor nets the credit charged against a document reference:
// CREDIT_USED minus PAYMENT_RECEIVED already booked for it. Cancellation
// releases exactly this, never more.
func chargedAmountFor(tx *gorm.DB, reference string) (decimal.Decimal, error) {
	type row struct {
		Action models.CreditAction
		Total  decimal.Decimal
	}
	var rows []row
	err := tx.Model(&models.CreditLedgerEntry{}).
		Select("action, COALESCE(SUM(amount), 0) AS total").
		Where("reference = ? AND action IN ?", reference,
			[]models.CreditAction{models.CreditActionUsed, models.CreditActionPaymentReceived}).
		Group("action").
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	charged := decimal.Zero
	for _, r := range rows {
		switch r.Action {
		case models.CreditActionUsed:
			charged = charged.Add(r.Total)
		case models.CreditActionPaymentReceived:
			charged = charged.Sub(r.Total)
		}
	}
	if charged.IsNegative() {
		return decimal.Zero, nil
	}
	return charged, nil
}

func fetchOrderForUpdate(tx *gorm.DB, orderId int, order *models.SalesOrder) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Details").
		First(order, orderId).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorRecordNotFound
		}
		return err
	}
	return nil
}
