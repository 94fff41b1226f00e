package workflow

import (
	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CurrencyConverter is the external rate service. A nil result means the
// rate is unavailable; pricing for that line must abort, never default to
// zero.
type CurrencyConverter interface {
	Convert(from string, to string, amount decimal.Decimal) *decimal.Decimal
}

// pricedLine is one priced document line.
type pricedLine struct {
	ProductId int
	Qty       decimal.Decimal
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// priceUnit resolves a product's unit price in the settlement currency.
func priceUnit(product *models.Product, settlementCurrency string, converter CurrencyConverter) (decimal.Decimal, error) {
	if product.PriceCurrency == settlementCurrency {
		return utils.RoundCurrency(product.SalePrice), nil
	}
	if converter == nil {
		return decimal.Zero, utils.NewValidationError(
			"no currency converter for product %d (%s -> %s)", product.ID, product.PriceCurrency, settlementCurrency)
	}
	converted := converter.Convert(product.PriceCurrency, settlementCurrency, product.SalePrice)
	if converted == nil {
		return decimal.Zero, utils.NewValidationError(
			"currency conversion unavailable for product %d (%s -> %s)", product.ID, product.PriceCurrency, settlementCurrency)
	}
	return utils.RoundCurrency(*converted), nil
}

// priceLines prices every request line in the settlement currency and
// returns the lines plus the document total. Any unresolvable price aborts
// the whole set.
func priceLines(tx *gorm.DB, lines []models.NewOrderLine, settlementCurrency string, converter CurrencyConverter) ([]pricedLine, decimal.Decimal, error) {
	priced := make([]pricedLine, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		var product models.Product
		if err := tx.First(&product, line.ProductId).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, decimal.Zero, utils.ErrorRecordNotFound
			}
			return nil, decimal.Zero, err
		}
		unitPrice, err := priceUnit(&product, settlementCurrency, converter)
		if err != nil {
			return nil, decimal.Zero, err
		}
		lineTotal := utils.RoundCurrency(unitPrice.Mul(line.Qty))
		priced = append(priced, pricedLine{
			ProductId: line.ProductId,
			Qty:       line.Qty,
			UnitPrice: unitPrice,
			LineTotal: lineTotal,
		})
		total = total.Add(lineTotal)
	}
	return priced, total, nil
}
