package model

import "time"

type AdjustBucketBalanceRequest struct {
	Bucket    string `json:"bucket"`
	AmountUSD string `json:"amount_usd"`
	Reason    string `json:"reason"`
}

type AdjustBucketBalanceResponse struct {
	Bucket     string `json:"bucket"`
	BalanceUSD string `json:"balance_usd"`
}

type GetBucketBalancesRequest struct{}

type GetBucketBalancesResponse struct {
	Balances []BucketBalance `json:"balances"`
}

type GetTierEscrowPoolsRequest struct{}

type GetTierEscrowPoolsResponse struct {
	Pools []TierEscrowPool `json:"pools"`
}

type FulfillAwardRequest struct {
	AwardID string `json:"award_id"`

	// RevealID references the reveal that delivered the prize.
	RevealID string `json:"reveal_id"`
}

type FulfillAwardResponse struct {
	AwardID string `json:"award_id"`
	Status  string `json:"status"`
}

type CancelAwardRequest struct {
	AwardID string `json:"award_id"`
	Expired bool   `json:"expired"`
}

type CancelAwardResponse struct {
	AwardID string `json:"award_id"`
	Status  string `json:"status"`
}

type GetRoomEscrowLedgerRequest struct {
	RoomID string `form:"room_id"`
}

type GetRoomEscrowLedgerResponse struct {
	Movements []EscrowMovement `json:"movements"`
}

type EscrowMovement struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	DeltaCents int64     `json:"delta_cents"`
	EventType  string    `json:"event_type"`
	RefType    string    `json:"ref_type"`
	RefID      string    `json:"ref_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

type BucketBalance struct {
	Bucket     string    `json:"bucket"`
	BalanceUSD string    `json:"balance_usd"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type TierEscrowPool struct {
	Tier         string    `json:"tier"`
	BalanceCents int64     `json:"balance_cents"`
	CapCents     int64     `json:"cap_cents"`
	UpdatedAt    time.Time `json:"updated_at"`
}
