package entity

import (
	"database/sql"
	"time"

	"github.com/dropvault/backend/pkg/enum"
)

type RoomTier string

var (
	RoomTierT5  = enum.New(RoomTier("T5"))
	RoomTierT10 = enum.New(RoomTier("T10"))
	RoomTierT20 = enum.New(RoomTier("T20"))
)

type RoomStatus string

var (
	RoomStatusOpen      = enum.New(RoomStatus("OPEN"))
	RoomStatusLocked    = enum.New(RoomStatus("LOCKED"))
	RoomStatusSettled   = enum.New(RoomStatus("SETTLED"))
	RoomStatusCancelled = enum.New(RoomStatus("CANCELLED"))
)

// Room is a time-boxed, capped-entry paid draw for a prize. Status moves
// only forward: OPEN -> LOCKED -> SETTLED, with CANCELLED reachable from
// OPEN and LOCKED. EscrowBalanceCents mirrors the sum of this room's
// escrow_ledger deltas and is updated in the same transaction as every
// ledger insert. TotalTickets is the room's ticket-range counter; entries
// take their contiguous range from it under the room row lock.
type Room struct {
	Base

	Tier      RoomTier `gorm:"index"`
	Category  string
	IsMystery bool

	// ProductClassID references the catalog item the room draws for.
	ProductClassID string

	Status RoomStatus `gorm:"index"`

	StartAt    time.Time
	LockAt     sql.NullTime
	DeadlineAt sql.NullTime
	EndAt      time.Time

	MinParticipants int
	MaxParticipants int

	EscrowTargetCents  int64
	EscrowBalanceCents int64
	TierCapCents       int64

	TotalTickets int64

	// SeedCommitment is published at creation; ServerSeed stays private
	// until the draw reveals it.
	SeedCommitment string
	ServerSeed     string

	WinnerEntryID sql.NullString
	WinnerUserID  sql.NullString

	CancelReason string
}
