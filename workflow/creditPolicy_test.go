package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/distro_backend/models"
	"github.com/shopspring/decimal"
)

func activeDistributor(limit, used int64) *models.Distributor {
	return &models.Distributor{
		ID:                1,
		Name:              "Golden Star Trading",
		CreditLimit:       decimal.NewFromInt(limit),
		CurrentCreditUsed: decimal.NewFromInt(used),
		CreditStatus:      models.CreditStatusActive,
	}
}

func TestEvaluateChargeDeniesBeyondAvailable(t *testing.T) {
	d := activeDistributor(5000, 4000)

	decision := evaluateChargeAgainst(d, decimal.NewFromInt(1500))
	if decision.Admit {
		t.Fatalf("expected denial, got admit")
	}
	if !decision.Available.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("available = %s, want 1000", decision.Available)
	}
	if decision.Reason == "" {
		t.Fatalf("expected denial reason")
	}
}

func TestEvaluateChargeAdmitsWithinAvailable(t *testing.T) {
	d := activeDistributor(5000, 4000)

	decision := evaluateChargeAgainst(d, decimal.NewFromInt(900))
	if !decision.Admit {
		t.Fatalf("expected admit, got denial: %s", decision.Reason)
	}
	if !decision.Used.Equal(decimal.NewFromInt(4000)) {
		t.Fatalf("used = %s, want 4000", decision.Used)
	}
}

func TestEvaluateChargeAdmitsExactRemainder(t *testing.T) {
	d := activeDistributor(5000, 4000)

	decision := evaluateChargeAgainst(d, decimal.NewFromInt(1000))
	if !decision.Admit {
		t.Fatalf("charge equal to available credit should be admitted: %s", decision.Reason)
	}
}

func TestEvaluateChargeDeniesSuspended(t *testing.T) {
	d := activeDistributor(5000, 0)
	d.CreditStatus = models.CreditStatusSuspended

	decision := evaluateChargeAgainst(d, decimal.NewFromInt(1))
	if decision.Admit {
		t.Fatalf("suspended distributor must be denied")
	}
	if decision.Reason != "credit is suspended" {
		t.Fatalf("reason = %q", decision.Reason)
	}
}

func TestEvaluateChargeDeniesOverLimitBalance(t *testing.T) {
	// Limit lowered below usage: available goes negative and every charge
	// is denied until payments restore headroom.
	d := activeDistributor(3000, 4000)

	decision := evaluateChargeAgainst(d, decimal.NewFromInt(1))
	if decision.Admit {
		t.Fatalf("over-limit distributor must be denied")
	}
	if !decision.Available.Equal(decimal.NewFromInt(-1000)) {
		t.Fatalf("available = %s, want -1000", decision.Available)
	}
}

func TestLimitActionFor(t *testing.T) {
	tests := []struct {
		previous int64
		next     int64
		want     models.CreditAction
	}{
		{1000, 2000, models.CreditActionLimitIncreased},
		{2000, 1000, models.CreditActionLimitDecreased},
		{1500, 1500, models.CreditActionLimitSet},
		{0, 0, models.CreditActionLimitSet},
	}
	for _, tt := range tests {
		got := limitActionFor(decimal.NewFromInt(tt.previous), decimal.NewFromInt(tt.next))
		if got != tt.want {
			t.Errorf("limitActionFor(%d, %d) = %s, want %s", tt.previous, tt.next, got, tt.want)
		}
	}
}

func TestAlertTypeFor(t *testing.T) {
	threshold := decimal.NewFromInt(80)

	if _, alerting := alertTypeFor(decimal.NewFromInt(79), threshold); alerting {
		t.Fatalf("below threshold should not alert")
	}
	if action, alerting := alertTypeFor(decimal.NewFromInt(80), threshold); !alerting || action != models.CreditActionHighCreditUtilization {
		t.Fatalf("at threshold: got (%s, %v)", action, alerting)
	}
	if action, alerting := alertTypeFor(decimal.NewFromInt(100), threshold); !alerting || action != models.CreditActionLimitExceeded {
		t.Fatalf("at limit: got (%s, %v)", action, alerting)
	}
	if action, alerting := alertTypeFor(decimal.NewFromFloat(133.33), threshold); !alerting || action != models.CreditActionLimitExceeded {
		t.Fatalf("over limit: got (%s, %v)", action, alerting)
	}
}
