package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SalesOrder struct {
	ID            int                `gorm:"primary_key" json:"id"`
	OrderNumber   string             `gorm:"size:50;uniqueIndex;not null" json:"order_number"`
	CustomerRef   `json:"customer"`
	PaymentMethod PaymentMethod      `gorm:"type:enum('CASH','BANK','CREDIT');not null" json:"payment_method"`
	Status        SalesOrderStatus   `gorm:"type:enum('PENDING','PROCESSING','DELIVERED','CANCELLED');default:'PENDING'" json:"status"`
	TotalAmount   decimal.Decimal    `gorm:"type:decimal(20,2);default:0" json:"total_amount"`
	Details       []SalesOrderDetail `gorm:"foreignKey:SalesOrderId" json:"details"`
	CreatedBy     string             `gorm:"size:100;not null" json:"created_by"`
	OrderDate     time.Time          `gorm:"not null" json:"order_date"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesOrderDetail struct {
	ID           int             `gorm:"primary_key" json:"id"`
	SalesOrderId int             `gorm:"index;not null" json:"sales_order_id"`
	ProductId    int             `gorm:"index;not null" json:"product_id"`
	Qty          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"unit_price"`
	LineTotal    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"line_total"`
}

type NewOrderLine struct {
	ProductId int             `json:"product_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty" binding:"required"`
}

type NewSalesOrder struct {
	CustomerKind  string         `json:"customer_kind" binding:"required"`
	CustomerId    int            `json:"customer_id" binding:"required"`
	PaymentMethod string         `json:"payment_method" binding:"required"`
	Lines         []NewOrderLine `json:"lines" binding:"required"`
}

// Validate checks request shape before any side effect: known enums, an
// existing active customer, at least one line, positive quantities.
func (input *NewSalesOrder) Validate(ctx context.Context, tx *gorm.DB) (CustomerRef, PaymentMethod, error) {
	kind, err := ParseCustomerKind(input.CustomerKind)
	if err != nil {
		return CustomerRef{}, "", utils.NewValidationError("invalid customer kind %q", input.CustomerKind)
	}
	method, err := ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return CustomerRef{}, "", utils.NewValidationError("invalid payment method %q", input.PaymentMethod)
	}
	customer := CustomerRef{CustomerKind: kind, CustomerId: input.CustomerId}
	if err := customer.Validate(tx); err != nil {
		return CustomerRef{}, "", err
	}
	if err := ValidateOrderLines(tx, input.Lines); err != nil {
		return CustomerRef{}, "", err
	}
	return customer, method, nil
}

// ValidateOrderLines rejects empty line sets, non-positive quantities and
// unknown products.
func ValidateOrderLines(tx *gorm.DB, lines []NewOrderLine) error {
	if len(lines) == 0 {
		return utils.NewValidationError("at least one line item is required")
	}
	productIds := make([]int, 0, len(lines))
	for _, line := range lines {
		if !line.Qty.IsPositive() {
			return utils.NewValidationError("line quantity must be positive (product %d)", line.ProductId)
		}
		productIds = append(productIds, line.ProductId)
	}
	unqIds := utils.UniqueSlice(productIds)
	var count int64
	err := tx.Model(&Product{}).
		Where("id IN ? AND is_active = ?", unqIds, true).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count != int64(len(unqIds)) {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func GetSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	return utils.FetchModel[SalesOrder](ctx, id, "Details")
}
