package main

import (
	"context"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationDirectProcessor delivers outbox notifications without Pub/Sub
// by logging them and marking them PUBLISHED. This is intended for
// local/dev environments where Pub/Sub is not configured.
type NotificationDirectProcessor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
}

func NewNotificationDirectProcessor(db *gorm.DB, logger *logrus.Logger) *NotificationDirectProcessor {
	return &NotificationDirectProcessor{
		DB:        db,
		Logger:    logger,
		WorkerID:  "direct-" + time.Now().Format("20060102-150405.000"),
		BatchSize: 50,
		Interval:  2 * time.Second,
		LockTTL:   30 * time.Second,
	}
}

// shouldRunDirectNotificationProcessor decides between direct (log-only)
// delivery and the Pub/Sub dispatcher. Direct mode is explicit opt-in, or
// the fallback when no Pub/Sub project is configured.
func shouldRunDirectNotificationProcessor() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFICATIONS_DIRECT")))
	if val == "true" {
		return true
	}
	if val == "false" {
		return false
	}
	return strings.TrimSpace(os.Getenv("GOOGLE_CLOUD_PROJECT")) == ""
}

func (p *NotificationDirectProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *NotificationDirectProcessor) processOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-p.LockTTL)

	var claimed []models.NotificationRecord
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("publish_status IN ?", []string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Order("id ASC").
			Limit(p.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = p.WorkerID
			if err := tx.Model(&models.NotificationRecord{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"locked_at": claimed[i].LockedAt,
					"locked_by": claimed[i].LockedBy,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, rec := range claimed {
		if p.Logger != nil {
			p.Logger.WithFields(logrus.Fields{
				"field":          "NotificationDirectProcessor",
				"record_id":      rec.ID,
				"event_type":     rec.EventType,
				"correlation_id": rec.CorrelationId,
				"payload":        string(rec.Payload),
			}).Info("notification delivered (direct mode)")
		}

		_ = p.DB.WithContext(ctx).Model(&models.NotificationRecord{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"publish_status": models.OutboxPublishStatusPublished,
				"locked_at":      nil,
				"locked_by":      "",
			}).Error
	}
}
