package model

type RecordEntryRequest struct {
	RoomID         string `json:"room_id"`
	UserID         string `json:"user_id"`
	AmountCents    int64  `json:"amount_cents"`
	IdempotencyKey string `json:"idempotency_key"`
}

type RecordEntryResponse struct {
	EntryID         string  `json:"entry_id"`
	TicketsGranted  int64   `json:"tickets_granted"`
	FundingProgress float64 `json:"funding_progress"`
	RoomStatus      string  `json:"room_status"`
}

// RoomEntryWebhookRequest is the payment provider's delivery envelope after
// signature verification at the edge.
type RoomEntryWebhookRequest struct {
	EventID     string `json:"event_id"`
	EventType   string `json:"event_type"`
	RoomID      string `json:"room_id"`
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
}

type RoomEntryWebhookResponse struct {
	Received bool   `json:"received"`
	Status   string `json:"status"`

	EntryID         string  `json:"entry_id,omitempty"`
	TicketsGranted  int64   `json:"tickets_granted,omitempty"`
	FundingProgress float64 `json:"funding_progress,omitempty"`
	RoomStatus      string  `json:"room_status,omitempty"`
}
