package models

import "errors"

type CreditStatus string

const (
	CreditStatusActive    CreditStatus = "ACTIVE"
	CreditStatusSuspended CreditStatus = "SUSPENDED"
)

func ParseCreditStatus(s string) (CreditStatus, error) {
	switch s {
	case "ACTIVE":
		return CreditStatusActive, nil
	case "SUSPENDED":
		return CreditStatusSuspended, nil
	}
	return "", errors.New("invalid credit status")
}

// CreditAction tags one credit ledger entry. Balance-changing actions are
// CREDIT_USED and PAYMENT_RECEIVED; limit actions record the limit change;
// the alert/review actions annotate without touching balances.
type CreditAction string

const (
	CreditActionUsed                  CreditAction = "CREDIT_USED"
	CreditActionLimitIncreased        CreditAction = "CREDIT_LIMIT_INCREASED"
	CreditActionLimitDecreased        CreditAction = "CREDIT_LIMIT_DECREASED"
	CreditActionLimitSet              CreditAction = "CREDIT_LIMIT_SET"
	CreditActionPaymentReceived       CreditAction = "PAYMENT_RECEIVED"
	CreditActionLimitExceeded         CreditAction = "CREDIT_LIMIT_EXCEEDED"
	CreditActionHighCreditUtilization CreditAction = "HIGH_CREDIT_UTILIZATION"
	CreditActionReviewed              CreditAction = "CREDIT_REVIEWED"
)

type StockMovementType string

const (
	StockMovementTypeReceipt     StockMovementType = "RECEIPT"
	StockMovementTypeSale        StockMovementType = "SALE"
	StockMovementTypeAdjustment  StockMovementType = "ADJUSTMENT"
	StockMovementTypeTransferIn  StockMovementType = "TRANSFER_IN"
	StockMovementTypeTransferOut StockMovementType = "TRANSFER_OUT"
)

var stockMovementTypes = map[string]StockMovementType{
	"RECEIPT":      StockMovementTypeReceipt,
	"SALE":         StockMovementTypeSale,
	"ADJUSTMENT":   StockMovementTypeAdjustment,
	"TRANSFER_IN":  StockMovementTypeTransferIn,
	"TRANSFER_OUT": StockMovementTypeTransferOut,
}

func ParseStockMovementType(s string) (StockMovementType, error) {
	if t, ok := stockMovementTypes[s]; ok {
		return t, nil
	}
	return "", errors.New("invalid stock movement type")
}

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodBank   PaymentMethod = "BANK"
	PaymentMethodCredit PaymentMethod = "CREDIT"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch s {
	case "CASH":
		return PaymentMethodCash, nil
	case "BANK":
		return PaymentMethodBank, nil
	case "CREDIT":
		return PaymentMethodCredit, nil
	}
	return "", errors.New("invalid payment method")
}

type SalesOrderStatus string

const (
	SalesOrderStatusPending    SalesOrderStatus = "PENDING"
	SalesOrderStatusProcessing SalesOrderStatus = "PROCESSING"
	SalesOrderStatusDelivered  SalesOrderStatus = "DELIVERED"
	SalesOrderStatusCancelled  SalesOrderStatus = "CANCELLED"
)

type QuotationStatus string

const (
	QuotationStatusDraft     QuotationStatus = "DRAFT"
	QuotationStatusSent      QuotationStatus = "SENT"
	QuotationStatusAccepted  QuotationStatus = "ACCEPTED"
	QuotationStatusConverted QuotationStatus = "CONVERTED"
	QuotationStatusRejected  QuotationStatus = "REJECTED"
)

type InvoiceStatus string

const (
	InvoiceStatusUnpaid        InvoiceStatus = "UNPAID"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusVoid          InvoiceStatus = "VOID"
)

// CustomerKind discriminates the customer tagged union on sales documents.
type CustomerKind string

const (
	CustomerKindDistributor CustomerKind = "DISTRIBUTOR"
	CustomerKindAccount     CustomerKind = "ACCOUNT"
	CustomerKindLead        CustomerKind = "LEAD"
)

func ParseCustomerKind(s string) (CustomerKind, error) {
	switch s {
	case "DISTRIBUTOR":
		return CustomerKindDistributor, nil
	case "ACCOUNT":
		return CustomerKindAccount, nil
	case "LEAD":
		return CustomerKindLead, nil
	}
	return "", errors.New("invalid customer kind")
}

// Outbox publish lifecycle.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusPublished  = "PUBLISHED"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// Event types carried on notification outbox rows.
const (
	EventTypeOrderCreated         = "ORDER_CREATED"
	EventTypeOrderCancelled       = "ORDER_CANCELLED"
	EventTypeInvoiceCreated       = "INVOICE_CREATED"
	EventTypeQuotationConverted   = "QUOTATION_CONVERTED"
	EventTypeCheckoutCompleted    = "CHECKOUT_COMPLETED"
	EventTypeCreditCharged        = "CREDIT_CHARGED"
	EventTypePaymentReceived      = "PAYMENT_RECEIVED"
	EventTypeCreditAlert          = "CREDIT_ALERT"
	EventTypeStockImportCompleted = "STOCK_IMPORT_COMPLETED"
)
