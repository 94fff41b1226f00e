package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationRecord implements the transactional outbox for external
// notification events: the row is written inside the caller's DB transaction
// but nothing is published there. Publishing is performed asynchronously by
// the notification dispatcher after commit, so a slow or failing notifier
// can never hold a database transaction open or fail a committed action.
type NotificationRecord struct {
	ID            int        `gorm:"primary_key" json:"id"`
	EventType     string     `gorm:"size:100;not null;index" json:"event_type"`
	Payload       []byte     `gorm:"type:json" json:"payload"`
	CorrelationId string     `gorm:"size:100;index" json:"correlation_id"`
	PublishStatus string     `gorm:"size:20;not null;default:'PENDING';index" json:"publish_status"`
	Attempts      int        `gorm:"default:0" json:"attempts"`
	NextAttemptAt *time.Time `gorm:"index" json:"next_attempt_at"`
	LockedAt      *time.Time `json:"locked_at"`
	LockedBy      string     `gorm:"size:100" json:"locked_by"`
	LastError     string     `gorm:"type:text" json:"last_error"`
	OccurredAt    time.Time  `gorm:"not null" json:"occurred_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// EnqueueNotification writes one outbox row inside the caller's transaction.
// payload is marshalled to JSON; correlation id comes from the context or is
// minted fresh for background work.
func EnqueueNotification(ctx context.Context, tx *gorm.DB, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := NotificationRecord{
		EventType:     eventType,
		Payload:       data,
		CorrelationId: correlationIdFromContextOrNew(ctx),
		PublishStatus: OutboxPublishStatusPending,
		OccurredAt:    time.Now().UTC(),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// OrderEventPayload is the event body for order/charge creation events,
// consumed by notification and reporting surfaces.
type OrderEventPayload struct {
	DistributorId  int    `json:"distributor_id,omitempty"`
	CustomerKind   string `json:"customer_kind"`
	CustomerId     int    `json:"customer_id"`
	CustomerName   string `json:"customer_name"`
	Amount         string `json:"amount"`
	OrderReference string `json:"order_reference"`
	PaymentMethod  string `json:"payment_method"`
}

// CreditAlertPayload is the event body for credit monitor alerts.
type CreditAlertPayload struct {
	DistributorId  int    `json:"distributor_id"`
	AlertType      string `json:"alert_type"`
	UtilizationPct string `json:"utilization_pct"`
	CreditLimit    string `json:"credit_limit"`
	CreditUsed     string `json:"credit_used"`
}
