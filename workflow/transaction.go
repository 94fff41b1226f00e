package workflow

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// isRetryableConflict matches MySQL deadlock (1213) and lock wait timeout
// (1205) errors, the two cases where rerunning the whole transaction is the
// correct response.
func isRetryableConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Deadlock found") || strings.Contains(msg, "Lock wait timeout")
}

// RunOrderTransaction executes fn inside one database transaction. The
// database is the sole mutual-exclusion mechanism: every multi-write path
// of the engine goes through here, so a failure anywhere rolls back every
// write of the action. A deadlocked transaction is retried exactly once;
// a second conflict surfaces as ErrorConcurrencyConflict.
func RunOrderTransaction(ctx context.Context, db *gorm.DB, logger *logrus.Logger, fn func(tx *gorm.DB) error) error {
	run := func() error {
		return db.WithContext(ctx).Transaction(fn)
	}

	err := run()
	if err == nil || !isRetryableConflict(err) {
		return err
	}

	logger.WithFields(logrus.Fields{
		"module": "transaction.go",
		"error":  err.Error(),
	}).Warn("transaction conflict, retrying once")

	err = run()
	if err == nil {
		return nil
	}
	if isRetryableConflict(err) {
		config.LogError(logger, "transaction.go", "RunOrderTransaction", "RetryFailed", nil, err)
		return utils.ErrorConcurrencyConflict
	}
	return err
}
