package entity

import (
	"time"

	"github.com/dropvault/backend/pkg/enum"
)

type EntryOutcome string

var (
	EntryOutcomePending  = enum.New(EntryOutcome("PENDING"))
	EntryOutcomeWinner   = enum.New(EntryOutcome("WINNER"))
	EntryOutcomeLoser    = enum.New(EntryOutcome("LOSER"))
	EntryOutcomeRefunded = enum.New(EntryOutcome("REFUNDED"))
)

// RoomEntry owns the ticket range [TicketOffset, TicketOffset+Tickets).
// Ranges are assigned in insertion order and never reordered. The
// idempotency key is the payment provider's event id; its unique index is
// what makes webhook replays exactly-once.
type RoomEntry struct {
	Base

	RoomID string `gorm:"index"`
	Room   Room   `gorm:"foreignKey:RoomID"`

	UserID string `gorm:"index"`

	AmountCents  int64
	Tickets      int64
	TicketOffset int64

	PriorityScore int64

	Outcome EntryOutcome

	IdempotencyKey string `gorm:"uniqueIndex"`

	StakedAt time.Time
}
