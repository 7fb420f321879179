package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type WebhookEventStatus string

const (
	WebhookEventStatusReceived  WebhookEventStatus = "received"
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
	WebhookEventStatusIgnored   WebhookEventStatus = "ignored"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
)

// WebhookEvent records an inbound provider event for operators. Redeliveries
// of the same event bump Attempts on the existing row.
type WebhookEvent struct {
	ID           string             `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Provider     string             `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:idx_webhook_events_provider_event"`
	EventID      string             `json:"event_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_webhook_events_provider_event"`
	EventType    string             `json:"event_type" gorm:"type:varchar(255);not null"`
	Payload      datatypes.JSON     `json:"payload"`
	Status       WebhookEventStatus `json:"status" gorm:"type:varchar(20);not null;default:'received';index"`
	InvoiceID    *string            `json:"invoice_id" gorm:"type:varchar(36)"`
	Attempts     int                `json:"attempts" gorm:"not null;default:1"`
	ErrorMessage string             `json:"error_message"`
	ProcessedAt  *time.Time         `json:"processed_at"`
	CreatedAt    time.Time          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time          `json:"updated_at" gorm:"autoUpdateTime"`
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

type WebhookEventListResponse struct {
	Events []*WebhookEvent `json:"events"`
	Total  int64           `json:"total"`
}

// WebhookAck is the body returned to the provider once an event was parsed.
type WebhookAck struct {
	Received  bool      `json:"received"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}
