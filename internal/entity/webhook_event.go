package entity

import "database/sql"

// WebhookEvent deduplicates payment-provider deliveries. One row per
// (provider, event id); a redelivery finds the row and replays the original
// result instead of re-applying effects.
type WebhookEvent struct {
	Base

	EventID  string `gorm:"uniqueIndex:idx_webhook_events_provider_event"`
	Provider string `gorm:"uniqueIndex:idx_webhook_events_provider_event"`

	EventType string
	Payload   Map

	Processed   bool
	ProcessedAt sql.NullTime
}
