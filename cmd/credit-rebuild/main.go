package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// credit-rebuild verifies every distributor's live credit balance against
// the sum of their ledger entries and, with -apply, repairs drift by
// rewriting the live balance from the ledger. The ledger is the source of
// truth; the live column is a cache of it.

func main() {
	distributorID := flag.Int("distributor-id", 0, "Optional: verify only one distributor. If 0, verifies all.")
	apply := flag.Bool("apply", false, "Repair drift by rewriting live balances from the ledger. Default is report-only.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	ctx = utils.SetUserNameInContext(ctx, "CreditRebuild")

	var distributors []models.Distributor
	query := db.WithContext(ctx).Model(&models.Distributor{})
	if *distributorID > 0 {
		query = query.Where("id = ?", *distributorID)
	}
	if err := query.Find(&distributors).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list distributors: %v\n", err)
		os.Exit(1)
	}
	if len(distributors) == 0 {
		fmt.Fprintln(os.Stderr, "no distributors found")
		return
	}

	drifted := 0
	for _, d := range distributors {
		if err := verifyOne(ctx, db, d.ID, *apply, &drifted); err != nil {
			fmt.Fprintf(os.Stderr, "distributor %d: %v\n", d.ID, err)
			os.Exit(1)
		}
	}

	if drifted == 0 {
		fmt.Printf("checked %d distributor(s); no drift\n", len(distributors))
		return
	}
	if *apply {
		fmt.Printf("checked %d distributor(s); repaired %d\n", len(distributors), drifted)
	} else {
		fmt.Printf("checked %d distributor(s); %d drifted (run with -apply to repair)\n", len(distributors), drifted)
		os.Exit(2)
	}
}

func verifyOne(ctx context.Context, db *gorm.DB, distributorId int, apply bool, drifted *int) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Distributor
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&d, distributorId).Error
		if err != nil {
			return err
		}

		ledgerUsed, err := models.LedgerUsedBalance(tx, distributorId)
		if err != nil {
			return err
		}
		if ledgerUsed.IsNegative() {
			ledgerUsed = decimal.Zero
		}

		if d.CurrentCreditUsed.Equal(ledgerUsed) {
			return nil
		}

		*drifted++
		fmt.Printf("distributor %d (%s): live=%s ledger=%s diff=%s\n",
			d.ID, d.Name,
			d.CurrentCreditUsed.StringFixed(2),
			ledgerUsed.StringFixed(2),
			d.CurrentCreditUsed.Sub(ledgerUsed).StringFixed(2))

		if !apply {
			return nil
		}

		previousUsed := d.CurrentCreditUsed
		if err := tx.Model(&d).Update("current_credit_used", ledgerUsed).Error; err != nil {
			return err
		}

		return models.AppendCreditLedgerEntry(tx, &models.CreditLedgerEntry{
			DistributorId: d.ID,
			Action:        models.CreditActionReviewed,
			PreviousLimit: d.CreditLimit,
			NewLimit:      d.CreditLimit,
			PreviousUsed:  previousUsed,
			NewUsed:       ledgerUsed,
			Amount:        previousUsed.Sub(ledgerUsed).Abs(),
			Reason:        "credit-rebuild: live balance rewritten from ledger",
			PerformedBy:   "CreditRebuild",
			PerformedAt:   time.Now().UTC(),
		})
	})
}
