package stores

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/malwarebo/invoicer/models"
)

type WebhookStore struct {
	BaseStore
}

func CreateWebhookStore(db *gorm.DB) *WebhookStore {
	return &WebhookStore{BaseStore: BaseStore{db: db}}
}

// Record stores event, or bumps the attempt counter when the provider has
// delivered the same event before. The stored row is returned.
func (s *WebhookStore) Record(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, error) {
	existing, err := s.GetByEventID(ctx, event.Provider, event.EventID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if existing == nil {
		err = s.GetDB(ctx).Create(event).Error
		if err == nil {
			return event, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// Lost a race with a concurrent delivery of the same event.
		if existing, err = s.GetByEventID(ctx, event.Provider, event.EventID); err != nil {
			return nil, err
		}
	}

	err = s.GetDB(ctx).Model(existing).Update("attempts", gorm.Expr("attempts + 1")).Error
	if err != nil {
		return nil, err
	}
	existing.Attempts++
	return existing, nil
}

func (s *WebhookStore) GetByID(ctx context.Context, id string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := s.GetDB(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *WebhookStore) GetByEventID(ctx context.Context, provider, eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := s.GetDB(ctx).Where("provider = ? AND event_id = ?", provider, eventID).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkOutcome records how processing ended. invoiceID may be nil.
func (s *WebhookStore) MarkOutcome(ctx context.Context, id string, status models.WebhookEventStatus, invoiceID *string, errMsg string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errMsg,
		"processed_at":  now,
	}
	if invoiceID != nil {
		updates["invoice_id"] = *invoiceID
	}
	return s.GetDB(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (s *WebhookStore) List(ctx context.Context, status *models.WebhookEventStatus, limit, offset int) ([]*models.WebhookEvent, int64, error) {
	query := func() *gorm.DB {
		q := s.GetDB(ctx).Model(&models.WebhookEvent{})
		if status != nil {
			q = q.Where("status = ?", *status)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []*models.WebhookEvent
	if err := paginate(query(), limit, offset).Order("created_at DESC").Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
