package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPaymentStatusAfter(t *testing.T) {
	inv := &SalesInvoice{TotalAmount: decimal.NewFromInt(100)}

	tests := []struct {
		paid string
		want InvoiceStatus
	}{
		{"0", InvoiceStatusUnpaid},
		{"-1", InvoiceStatusUnpaid},
		{"40", InvoiceStatusPartiallyPaid},
		{"99.99", InvoiceStatusPartiallyPaid},
		{"100", InvoiceStatusPaid},
		{"150", InvoiceStatusPaid},
	}
	for _, tt := range tests {
		paid, _ := decimal.NewFromString(tt.paid)
		if got := inv.PaymentStatusAfter(paid); got != tt.want {
			t.Errorf("PaymentStatusAfter(%s) = %s, want %s", tt.paid, got, tt.want)
		}
	}
}
