package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
)

type SalesInvoice struct {
	ID            int                  `gorm:"primary_key" json:"id"`
	InvoiceNumber string               `gorm:"size:50;uniqueIndex;not null" json:"invoice_number"`
	CustomerRef   `json:"customer"`
	PaymentMethod PaymentMethod        `gorm:"type:enum('CASH','BANK','CREDIT');not null" json:"payment_method"`
	Status        InvoiceStatus        `gorm:"type:enum('UNPAID','PARTIALLY_PAID','PAID','VOID');default:'UNPAID'" json:"status"`
	TotalAmount   decimal.Decimal      `gorm:"type:decimal(20,2);default:0" json:"total_amount"`
	AmountPaid    decimal.Decimal      `gorm:"type:decimal(20,2);default:0" json:"amount_paid"`
	Details       []SalesInvoiceDetail `gorm:"foreignKey:SalesInvoiceId" json:"details"`
	// QuotationId points back at the quotation this invoice was converted
	// from, when it was.
	QuotationId *int      `gorm:"index" json:"quotation_id"`
	CreatedBy   string    `gorm:"size:100;not null" json:"created_by"`
	InvoiceDate time.Time `gorm:"not null" json:"invoice_date"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesInvoiceDetail struct {
	ID             int             `gorm:"primary_key" json:"id"`
	SalesInvoiceId int             `gorm:"index;not null" json:"sales_invoice_id"`
	ProductId      int             `gorm:"index;not null" json:"product_id"`
	Qty            decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"unit_price"`
	LineTotal      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"line_total"`
}

func GetSalesInvoice(ctx context.Context, id int) (*SalesInvoice, error) {
	return utils.FetchModel[SalesInvoice](ctx, id, "Details")
}

// PaymentStatusAfter returns the invoice status implied by a cumulative paid
// amount: UNPAID at zero, PAID at or above the total, PARTIALLY_PAID between.
func (inv *SalesInvoice) PaymentStatusAfter(amountPaid decimal.Decimal) InvoiceStatus {
	if amountPaid.LessThanOrEqual(decimal.Zero) {
		return InvoiceStatusUnpaid
	}
	if amountPaid.GreaterThanOrEqual(inv.TotalAmount) {
		return InvoiceStatusPaid
	}
	return InvoiceStatusPartiallyPaid
}
