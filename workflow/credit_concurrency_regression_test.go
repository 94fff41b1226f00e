package workflow_test

import (
	"errors"
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"bitbucket.org/mmdatafocus/distro_backend/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Two concurrent charges that each fit the remaining credit but not
// together must not both be admitted. The conditional UPDATE decides at
// commit time, so exactly one wins regardless of interleaving.
func TestConcurrentChargesAdmitOnlyOne(t *testing.T) {
	ctx, db := setupEngineTest(t)
	logger := config.GetLogger()

	distributor, err := models.CreateDistributor(ctx, &models.NewDistributor{Name: "Aung Myay Trading"})
	if err != nil {
		t.Fatalf("CreateDistributor: %v", err)
	}
	err = workflow.RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
		_, err := workflow.SetLimit(tx, distributor.ID, decimal.NewFromInt(1000), "initial limit", "Test")
		return err
	})
	if err != nil {
		t.Fatalf("SetLimit: %v", err)
	}

	charge := decimal.NewFromInt(700)
	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = workflow.RunOrderTransaction(ctx, db, logger, func(tx *gorm.DB) error {
				_, err := workflow.ApplyCharge(tx, distributor.ID, charge, "SO-CONC", "Test")
				return err
			})
		}(i)
	}
	wg.Wait()

	var admitted, denied int
	for _, err := range results {
		if err == nil {
			admitted++
			continue
		}
		var deniedErr *utils.CreditDeniedError
		if errors.As(err, &deniedErr) {
			denied++
			continue
		}
		t.Fatalf("unexpected charge error: %v", err)
	}
	if admitted != 1 || denied != 1 {
		t.Fatalf("admitted=%d denied=%d, want exactly one of each", admitted, denied)
	}

	var after models.Distributor
	if err := db.First(&after, distributor.ID).Error; err != nil {
		t.Fatalf("reload distributor: %v", err)
	}
	if !after.CurrentCreditUsed.Equal(charge) {
		t.Fatalf("credit used = %s, want %s", after.CurrentCreditUsed, charge)
	}
	ledgerUsed, err := models.LedgerUsedBalance(db, distributor.ID)
	if err != nil {
		t.Fatalf("LedgerUsedBalance: %v", err)
	}
	if !ledgerUsed.Equal(after.CurrentCreditUsed) {
		t.Fatalf("ledger balance %s != live balance %s", ledgerUsed, after.CurrentCreditUsed)
	}
}
