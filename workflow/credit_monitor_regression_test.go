package workflow_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// The utilization scan alerts on distributors at or above the threshold,
// writes an audit ledger entry, and re-raises standing alerts on the next
// run when no cooldown is configured.
func TestUtilizationScanAlerts(t *testing.T) {
	ctx, db := setupEngineTest(t)
	logger := config.GetLogger()

	quiet, err := models.CreateDistributor(ctx, &models.NewDistributor{Name: "Low Usage Trading"})
	if err != nil {
		t.Fatalf("CreateDistributor(quiet): %v", err)
	}
	hot, err := models.CreateDistributor(ctx, &models.NewDistributor{Name: "Heavy Usage Trading"})
	if err != nil {
		t.Fatalf("CreateDistributor(hot): %v", err)
	}

	err = workflow.RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		if _, err := workflow.SetLimit(tx, quiet.ID, decimal.NewFromInt(10000), "initial limit", "Test"); err != nil {
			return err
		}
		if _, err := workflow.ApplyCharge(tx, quiet.ID, decimal.NewFromInt(2000), "SO-Q", "Test"); err != nil {
			return err
		}
		if _, err := workflow.SetLimit(tx, hot.ID, decimal.NewFromInt(10000), "initial limit", "Test"); err != nil {
			return err
		}
		_, err := workflow.ApplyCharge(tx, hot.ID, decimal.NewFromInt(9000), "SO-H", "Test")
		return err
	})
	if err != nil {
		t.Fatalf("seed balances: %v", err)
	}

	alerts, err := workflow.ScanUtilizationAlerts(ctx, db, logger)
	if err != nil {
		t.Fatalf("ScanUtilizationAlerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1: %+v", len(alerts), alerts)
	}
	if alerts[0].DistributorId != hot.ID || alerts[0].AlertType != models.CreditActionHighCreditUtilization {
		t.Fatalf("unexpected alert %+v", alerts[0])
	}

	var entries int64
	if err := db.Model(&models.CreditLedgerEntry{}).
		Where("distributor_id = ? AND action = ?", hot.ID, models.CreditActionHighCreditUtilization).
		Count(&entries).Error; err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	if entries != 1 {
		t.Fatalf("alert ledger entries = %d, want 1", entries)
	}

	// No cooldown configured, so a standing condition re-alerts.
	again, err := workflow.ScanUtilizationAlerts(ctx, db, logger)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if len(again) != 1 {
		t.Fatalf("second scan alerts = %d, want 1", len(again))
	}

	// Push over the limit through the admin override; the alert escalates.
	err = workflow.RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		_, err := workflow.ForceApplyCharge(tx, hot.ID, decimal.NewFromInt(3000), "SO-OVR", "management approval", "Test")
		return err
	})
	if err != nil {
		t.Fatalf("ForceApplyCharge: %v", err)
	}
	escalated, err := workflow.ScanUtilizationAlerts(ctx, db, logger)
	if err != nil {
		t.Fatalf("third scan: %v", err)
	}
	found := false
	for _, alert := range escalated {
		if alert.DistributorId == hot.ID {
			found = true
			if alert.AlertType != models.CreditActionLimitExceeded {
				t.Fatalf("alert type = %s, want CREDIT_LIMIT_EXCEEDED", alert.AlertType)
			}
		}
	}
	if !found {
		t.Fatalf("no alert for over-limit distributor in %+v", escalated)
	}
}
