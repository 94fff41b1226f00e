package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPlanAllocationSmallestLotFirst(t *testing.T) {
	lots := []stockLot{
		{StockItemId: 2, Available: dec("10")},
		{StockItemId: 1, Available: dec("3")},
	}

	takes, shortfall := planAllocation(lots, dec("8"))
	if !shortfall.IsZero() {
		t.Fatalf("shortfall = %s, want 0", shortfall)
	}
	if len(takes) != 2 {
		t.Fatalf("takes = %d, want 2", len(takes))
	}
	if takes[0].StockItemId != 1 || !takes[0].Take.Equal(dec("3")) {
		t.Fatalf("first take = lot %d qty %s, want lot 1 qty 3", takes[0].StockItemId, takes[0].Take)
	}
	if takes[1].StockItemId != 2 || !takes[1].Take.Equal(dec("5")) {
		t.Fatalf("second take = lot %d qty %s, want lot 2 qty 5", takes[1].StockItemId, takes[1].Take)
	}
}

func TestPlanAllocationStopsWhenSatisfied(t *testing.T) {
	lots := []stockLot{
		{StockItemId: 1, Available: dec("4")},
		{StockItemId: 2, Available: dec("9")},
	}

	takes, shortfall := planAllocation(lots, dec("4"))
	if !shortfall.IsZero() {
		t.Fatalf("shortfall = %s, want 0", shortfall)
	}
	if len(takes) != 1 || takes[0].StockItemId != 1 {
		t.Fatalf("expected a single take from the smallest lot, got %+v", takes)
	}
}

func TestPlanAllocationReportsShortfall(t *testing.T) {
	lots := []stockLot{
		{StockItemId: 1, Available: dec("2")},
		{StockItemId: 2, Available: dec("3")},
	}

	takes, shortfall := planAllocation(lots, dec("7.5"))
	if !shortfall.Equal(dec("2.5")) {
		t.Fatalf("shortfall = %s, want 2.5", shortfall)
	}
	var planned decimal.Decimal
	for _, take := range takes {
		planned = planned.Add(take.Take)
	}
	if !planned.Equal(dec("5")) {
		t.Fatalf("planned = %s, want 5", planned)
	}
}

func TestPlanAllocationSkipsEmptyLots(t *testing.T) {
	lots := []stockLot{
		{StockItemId: 1, Available: dec("0")},
		{StockItemId: 2, Available: dec("-1")},
		{StockItemId: 3, Available: dec("6")},
	}

	takes, shortfall := planAllocation(lots, dec("6"))
	if !shortfall.IsZero() {
		t.Fatalf("shortfall = %s, want 0", shortfall)
	}
	if len(takes) != 1 || takes[0].StockItemId != 3 {
		t.Fatalf("expected only the stocked lot, got %+v", takes)
	}
}

func TestWeightedAverageCost(t *testing.T) {
	// 10 on hand at 2.00, receive 5 at 3.50: (20 + 17.5) / 15 = 2.5
	got := weightedAverageCost(dec("10"), dec("2.00"), dec("5"), dec("3.50"))
	if !got.Equal(dec("2.5")) {
		t.Fatalf("blended cost = %s, want 2.5", got)
	}
}

func TestWeightedAverageCostRounds(t *testing.T) {
	got := weightedAverageCost(dec("3"), dec("1"), dec("3"), dec("2"))
	if !got.Equal(dec("1.5")) {
		t.Fatalf("blended cost = %s, want 1.5", got)
	}

	got = weightedAverageCost(dec("1"), dec("1"), dec("2"), dec("1.10"))
	if !got.Equal(dec("1.0667")) {
		t.Fatalf("blended cost = %s, want 1.0667", got)
	}
}

func TestWeightedAverageCostZeroQuantity(t *testing.T) {
	got := weightedAverageCost(dec("0"), dec("4.25"), dec("0"), dec("9"))
	if !got.Equal(dec("4.25")) {
		t.Fatalf("zero combined quantity should keep the old average, got %s", got)
	}
}
