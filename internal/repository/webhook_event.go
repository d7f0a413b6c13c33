package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/pkg/xcontext"
)

type WebhookEventRepository interface {
	Create(ctx context.Context, event *entity.WebhookEvent) error
	GetByEventID(ctx context.Context, provider, eventID string) (*entity.WebhookEvent, error)
	MarkProcessed(ctx context.Context, provider, eventID string) error
}

type webhookEventRepository struct{}

func NewWebhookEventRepository() *webhookEventRepository {
	return &webhookEventRepository{}
}

func (r *webhookEventRepository) Create(ctx context.Context, event *entity.WebhookEvent) error {
	return xcontext.DB(ctx).Create(event).Error
}

func (r *webhookEventRepository) GetByEventID(
	ctx context.Context, provider, eventID string,
) (*entity.WebhookEvent, error) {
	var result entity.WebhookEvent
	err := xcontext.DB(ctx).
		Take(&result, "provider=? AND event_id=?", provider, eventID).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, provider, eventID string) error {
	return xcontext.DB(ctx).Model(&entity.WebhookEvent{}).
		Where("provider=? AND event_id=?", provider, eventID).
		Updates(map[string]any{
			"processed":    true,
			"processed_at": sql.NullTime{Time: time.Now(), Valid: true},
		}).Error
}
