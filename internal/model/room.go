package model

import "time"

type CreateRoomRequest struct {
	Tier              string     `json:"tier"`
	Category          string     `json:"category"`
	IsMystery         bool       `json:"is_mystery"`
	ProductClassID    string     `json:"product_class_id"`
	StartAt           time.Time  `json:"start_at"`
	EndAt             time.Time  `json:"end_at"`
	LockAt            *time.Time `json:"lock_at"`
	DeadlineAt        *time.Time `json:"deadline_at"`
	MinParticipants   int        `json:"min_participants"`
	MaxParticipants   int        `json:"max_participants"`
	EscrowTargetCents int64      `json:"escrow_target_cents"`
	TierCapCents      int64      `json:"tier_cap_cents"`
}

type CreateRoomResponse struct {
	RoomID         string `json:"room_id"`
	SeedCommitment string `json:"seed_commitment"`
}

type GetRoomRequest struct {
	RoomID string `form:"room_id"`
}

type GetRoomResponse struct {
	Room Room `json:"room"`
}

type ExtendDeadlineRequest struct {
	RoomID      string    `json:"room_id"`
	NewDeadline time.Time `json:"new_deadline"`
}

type ExtendDeadlineResponse struct {
	RoomID string `json:"room_id"`
}

type CancelRoomRequest struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

type CancelRoomResponse struct {
	RoomID      string `json:"room_id"`
	RefundCount int64  `json:"refund_count"`
}

type ForceSettleRoomRequest struct {
	RoomID string `json:"room_id"`
}

type ForceSettleRoomResponse struct {
	RoomID        string `json:"room_id"`
	WinnerEntryID string `json:"winner_entry_id"`
}

type SetRoomWinnerRequest struct {
	RoomID  string `json:"room_id"`
	EntryID string `json:"entry_id"`
}

type SetRoomWinnerResponse struct {
	RoomID           string `json:"room_id"`
	IsManualOverride bool   `json:"is_manual_override"`
}

type GetRoomEntriesRequest struct {
	RoomID string `form:"room_id"`
}

type GetRoomEntriesResponse struct {
	Entries []RoomEntry `json:"entries"`
}

type GetRoomDrawRequest struct {
	RoomID string `form:"room_id"`
}

type GetRoomDrawResponse struct {
	Draw LotteryDraw `json:"draw"`
}

type Room struct {
	ID                 string     `json:"id"`
	Tier               string     `json:"tier"`
	Category           string     `json:"category"`
	IsMystery          bool       `json:"is_mystery"`
	ProductClassID     string     `json:"product_class_id,omitempty"`
	Status             string     `json:"status"`
	StartAt            time.Time  `json:"start_at"`
	LockAt             *time.Time `json:"lock_at,omitempty"`
	DeadlineAt         *time.Time `json:"deadline_at,omitempty"`
	EndAt              time.Time  `json:"end_at"`
	MinParticipants    int        `json:"min_participants"`
	MaxParticipants    int        `json:"max_participants"`
	EscrowTargetCents  int64      `json:"escrow_target_cents"`
	EscrowBalanceCents int64      `json:"escrow_balance_cents"`
	FundingProgress    float64    `json:"funding_progress"`
	TierCapCents       int64      `json:"tier_cap_cents"`
	TotalTickets       int64      `json:"total_tickets"`
	SeedCommitment     string     `json:"seed_commitment"`
	WinnerEntryID      string     `json:"winner_entry_id,omitempty"`
	WinnerUserID       string     `json:"winner_user_id,omitempty"`
	CancelReason       string     `json:"cancel_reason,omitempty"`
}

type RoomEntry struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"room_id"`
	UserID        string    `json:"user_id"`
	AmountCents   int64     `json:"amount_cents"`
	Tickets       int64     `json:"tickets"`
	TicketOffset  int64     `json:"ticket_offset"`
	PriorityScore int64     `json:"priority_score"`
	Outcome       string    `json:"outcome"`
	Rank          int       `json:"rank"`
	StakedAt      time.Time `json:"staked_at"`
}

type LotteryDraw struct {
	ID                  string    `json:"id"`
	RoomID              string    `json:"room_id"`
	WinnerEntryID       string    `json:"winner_entry_id"`
	WinningTicketNumber int64     `json:"winning_ticket_number"`
	TotalTickets        int64     `json:"total_tickets"`
	SeedCommitment      string    `json:"seed_commitment"`
	ServerSeed          string    `json:"server_seed"`
	ClientSeed          string    `json:"client_seed"`
	Nonce               int64     `json:"nonce"`
	VerificationHash    string    `json:"verification_hash"`
	IsManualOverride    bool      `json:"is_manual_override"`
	DrawnAt             time.Time `json:"drawn_at"`
}
