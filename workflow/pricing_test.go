package workflow

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
)

type fixedRateConverter struct {
	rate decimal.Decimal
}

func (c fixedRateConverter) Convert(from string, to string, amount decimal.Decimal) *decimal.Decimal {
	converted := amount.Mul(c.rate)
	return &converted
}

type unavailableConverter struct{}

func (unavailableConverter) Convert(from string, to string, amount decimal.Decimal) *decimal.Decimal {
	return nil
}

func TestPriceUnitSameCurrency(t *testing.T) {
	product := &models.Product{ID: 1, SalePrice: dec("12.345"), PriceCurrency: "MMK"}

	got, err := priceUnit(product, "MMK", nil)
	if err != nil {
		t.Fatalf("priceUnit: %v", err)
	}
	if !got.Equal(dec("12.35")) {
		t.Fatalf("price = %s, want 12.35", got)
	}
}

func TestPriceUnitConverts(t *testing.T) {
	product := &models.Product{ID: 2, SalePrice: dec("10"), PriceCurrency: "USD"}

	got, err := priceUnit(product, "MMK", fixedRateConverter{rate: dec("2100")})
	if err != nil {
		t.Fatalf("priceUnit: %v", err)
	}
	if !got.Equal(dec("21000")) {
		t.Fatalf("price = %s, want 21000", got)
	}
}

func TestPriceUnitNilConverter(t *testing.T) {
	product := &models.Product{ID: 3, SalePrice: dec("10"), PriceCurrency: "USD"}

	_, err := priceUnit(product, "MMK", nil)
	var vErr *utils.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPriceUnitUnavailableRate(t *testing.T) {
	product := &models.Product{ID: 4, SalePrice: dec("10"), PriceCurrency: "THB"}

	_, err := priceUnit(product, "MMK", unavailableConverter{})
	var vErr *utils.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("missing rate must reject the line, got %v", err)
	}
}
