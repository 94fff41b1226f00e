package workflow

import (
	"strings"
	"testing"
)

func TestValidateReceiptRows(t *testing.T) {
	rows := [][]string{
		{"sku", "qty", "unit_cost", "reference"},
		{"SKU-001", "10", "2.50", "PO-1001"},
		{"SKU-002", "3.5", "0", ""},
	}

	receipts, err := validateReceiptRows(rows)
	if err != nil {
		t.Fatalf("validateReceiptRows: %v", err)
	}
	if len(receipts) != 2 {
		t.Fatalf("receipts = %d, want 2", len(receipts))
	}
	if receipts[0].Sku != "SKU-001" || !receipts[0].Qty.Equal(dec("10")) {
		t.Fatalf("row 2 parsed as %+v", receipts[0])
	}
	if receipts[1].Reference != "" || !receipts[1].UnitCost.IsZero() {
		t.Fatalf("row 3 parsed as %+v", receipts[1])
	}
}

func TestValidateReceiptRowsTrimsCells(t *testing.T) {
	rows := [][]string{
		{"sku", "qty", "unit_cost", "reference"},
		{"  SKU-001  ", " 4 ", " 1.25 ", " PO-9 "},
	}

	receipts, err := validateReceiptRows(rows)
	if err != nil {
		t.Fatalf("validateReceiptRows: %v", err)
	}
	if receipts[0].Sku != "SKU-001" || receipts[0].Reference != "PO-9" {
		t.Fatalf("cells not trimmed: %+v", receipts[0])
	}
}

func TestValidateReceiptRowsRejections(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want string
	}{
		{"missing sku", []string{"", "5", "1.00", ""}, "product sku is null in row 2"},
		{"bad quantity", []string{"SKU-001", "five", "1.00", ""}, "error in row 2"},
		{"zero quantity", []string{"SKU-001", "0", "1.00", ""}, "quantity must be positive in row 2"},
		{"negative cost", []string{"SKU-001", "5", "-1", ""}, "unit cost cannot be negative in row 2"},
		{"short row", []string{"SKU-001"}, "error in row 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateReceiptRows([][]string{{"sku", "qty", "unit_cost", "reference"}, tt.row})
			if err == nil {
				t.Fatalf("expected rejection")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %q, want substring %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidateReceiptRowsHeaderOnly(t *testing.T) {
	_, err := validateReceiptRows([][]string{{"sku", "qty", "unit_cost", "reference"}})
	if err == nil {
		t.Fatalf("header-only file must be rejected")
	}
}
