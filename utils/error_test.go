package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsBusinessRejection(t *testing.T) {
	rejections := []error{
		NewValidationError("quantity must be positive"),
		&CreditDeniedError{DistributorId: 1, Reason: "amount exceeds available credit"},
		&InsufficientStockError{ProductId: 2, Shortfall: decimal.NewFromInt(3)},
		&NegativeStockError{StockItemId: 4, Delta: decimal.NewFromInt(-10)},
	}
	for _, err := range rejections {
		if !IsBusinessRejection(err) {
			t.Errorf("IsBusinessRejection(%T) = false, want true", err)
		}
	}

	systemFailures := []error{
		errors.New("dial tcp: connection refused"),
		ErrorRecordNotFound,
		ErrorConcurrencyConflict,
		nil,
	}
	for _, err := range systemFailures {
		if IsBusinessRejection(err) {
			t.Errorf("IsBusinessRejection(%v) = true, want false", err)
		}
	}
}

func TestIsBusinessRejectionWrapped(t *testing.T) {
	err := fmt.Errorf("placing order: %w", NewValidationError("bad line"))
	if !IsBusinessRejection(err) {
		t.Fatalf("wrapped business rejection not recognized")
	}
}
