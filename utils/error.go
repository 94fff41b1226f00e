package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorConcurrencyConflict is surfaced after the orchestrator's single
// automatic retry of a deadlocked/lock-timed-out transaction also fails.
var ErrorConcurrencyConflict = errors.New("concurrent modification, please retry")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}

// ValidationError rejects malformed input before any side effect.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// CreditDeniedError is a policy refusal. It carries the numbers a UI needs
// to explain the denial; no side effects have happened when it is returned.
type CreditDeniedError struct {
	DistributorId int
	Requested     decimal.Decimal
	Available     decimal.Decimal
	Limit         decimal.Decimal
	Used          decimal.Decimal
	Reason        string
}

func (e *CreditDeniedError) Error() string {
	return fmt.Sprintf("credit denied for distributor %d: %s (requested=%s available=%s limit=%s used=%s)",
		e.DistributorId, e.Reason, e.Requested, e.Available, e.Limit, e.Used)
}

// InsufficientStockError aborts the whole transaction that requested the
// allocation; nothing is persisted when the caller sees it.
type InsufficientStockError struct {
	ProductId int
	Requested decimal.Decimal
	Available decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested=%s available=%s shortfall=%s",
		e.ProductId, e.Requested, e.Available, e.Shortfall)
}

// NegativeStockError rejects an adjustment that would push a lot below zero.
type NegativeStockError struct {
	StockItemId int
	Quantity    decimal.Decimal
	Delta       decimal.Decimal
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("stock item %d: adjustment %s would make quantity %s negative",
		e.StockItemId, e.Delta, e.Quantity)
}

// IsBusinessRejection reports whether err is a business-level refusal
// (credit denied / insufficient stock / bad input) as opposed to a system
// failure. Handlers use this to pick the response shape.
func IsBusinessRejection(err error) bool {
	var vErr *ValidationError
	var cErr *CreditDeniedError
	var sErr *InsufficientStockError
	var nErr *NegativeStockError
	return errors.As(err, &vErr) || errors.As(err, &cErr) || errors.As(err, &sErr) || errors.As(err, &nErr)
}
