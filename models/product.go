package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Sku       string          `gorm:"size:100;index" json:"sku"`
	SalePrice decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"sale_price"`
	// PriceCurrency is the ISO code the sale price is quoted in. Lines whose
	// product currency differs from the settlement currency go through the
	// external converter at pricing time.
	PriceCurrency string          `gorm:"size:3;not null;default:'MMK'" json:"price_currency"`
	PurchaseCost  decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"purchase_cost"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name          string          `json:"name" binding:"required"`
	Sku           string          `json:"sku"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	PriceCurrency string          `json:"price_currency"`
	PurchaseCost  decimal.Decimal `json:"purchase_cost"`
}

// validate input for both create & update. (id = 0 for create)

func (input *NewProduct) validate(ctx context.Context, id int) error {
	// name
	if err := utils.ValidateUnique[Product](ctx, "name", input.Name, id); err != nil {
		return err
	}
	if input.SalePrice.IsNegative() || input.PurchaseCost.IsNegative() {
		return utils.NewValidationError("price must not be negative")
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	currency := input.PriceCurrency
	if currency == "" {
		currency = "MMK"
	}

	product := Product{
		Name:          input.Name,
		Sku:           input.Sku,
		SalePrice:     input.SalePrice,
		PriceCurrency: currency,
		PurchaseCost:  input.PurchaseCost,
		IsActive:      utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&product).Updates(map[string]interface{}{
		"Name":          input.Name,
		"Sku":           input.Sku,
		"SalePrice":     input.SalePrice,
		"PriceCurrency": input.PriceCurrency,
		"PurchaseCost":  input.PurchaseCost,
	}).Error
	if err != nil {
		return nil, err
	}

	return product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return utils.FetchModel[Product](ctx, id)
}
