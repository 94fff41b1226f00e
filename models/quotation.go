package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
)

type Quotation struct {
	ID              int               `gorm:"primary_key" json:"id"`
	QuotationNumber string            `gorm:"size:50;uniqueIndex;not null" json:"quotation_number"`
	CustomerRef     `json:"customer"`
	PaymentMethod   PaymentMethod     `gorm:"type:enum('CASH','BANK','CREDIT');not null" json:"payment_method"`
	Status          QuotationStatus   `gorm:"type:enum('DRAFT','SENT','ACCEPTED','CONVERTED','REJECTED');default:'DRAFT'" json:"status"`
	TotalAmount     decimal.Decimal   `gorm:"type:decimal(20,2);default:0" json:"total_amount"`
	Details         []QuotationDetail `gorm:"foreignKey:QuotationId" json:"details"`
	// ConvertedInvoiceId guards idempotent conversion: a quotation converts
	// to at most one invoice.
	ConvertedInvoiceId *int      `gorm:"index" json:"converted_invoice_id"`
	CreatedBy          string    `gorm:"size:100;not null" json:"created_by"`
	QuotationDate      time.Time `gorm:"not null" json:"quotation_date"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type QuotationDetail struct {
	ID          int             `gorm:"primary_key" json:"id"`
	QuotationId int             `gorm:"index;not null" json:"quotation_id"`
	ProductId   int             `gorm:"index;not null" json:"product_id"`
	Qty         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"line_total"`
}

type NewQuotation struct {
	CustomerKind  string         `json:"customer_kind" binding:"required"`
	CustomerId    int            `json:"customer_id" binding:"required"`
	PaymentMethod string         `json:"payment_method" binding:"required"`
	Lines         []NewOrderLine `json:"lines" binding:"required"`
}

func GetQuotation(ctx context.Context, id int) (*Quotation, error) {
	return utils.FetchModel[Quotation](ctx, id, "Details")
}

// MarkQuotationSent moves DRAFT -> SENT. Quotations have no credit or stock
// side effects until conversion.
func MarkQuotationSent(ctx context.Context, id int) (*Quotation, error) {
	return transitionQuotation(ctx, id, QuotationStatusDraft, QuotationStatusSent)
}

// MarkQuotationAccepted moves SENT -> ACCEPTED.
func MarkQuotationAccepted(ctx context.Context, id int) (*Quotation, error) {
	return transitionQuotation(ctx, id, QuotationStatusSent, QuotationStatusAccepted)
}

// MarkQuotationRejected moves SENT -> REJECTED.
func MarkQuotationRejected(ctx context.Context, id int) (*Quotation, error) {
	return transitionQuotation(ctx, id, QuotationStatusSent, QuotationStatusRejected)
}

func transitionQuotation(ctx context.Context, id int, from QuotationStatus, to QuotationStatus) (*Quotation, error) {
	quotation, err := utils.FetchModel[Quotation](ctx, id)
	if err != nil {
		return nil, err
	}
	if quotation.Status != from {
		return nil, utils.NewValidationError("quotation %s is %s, expected %s", quotation.QuotationNumber, quotation.Status, from)
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&quotation).Update("Status", to).Error
	if err != nil {
		return nil, err
	}
	return quotation, nil
}
