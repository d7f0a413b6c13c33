package entity

import (
	"time"

	"github.com/dropvault/backend/pkg/enum"
	"github.com/shopspring/decimal"
)

type LedgerEventType string

var (
	LedgerEventAdd     = enum.New(LedgerEventType("ADD"))
	LedgerEventReserve = enum.New(LedgerEventType("RESERVE"))
	LedgerEventRelease = enum.New(LedgerEventType("RELEASE"))
	LedgerEventCapture = enum.New(LedgerEventType("CAPTURE"))
)

// EscrowLedger is the append-only record of a room's escrow movements, in
// cents. The room's escrow_balance_cents equals the sum of its deltas at
// all times.
type EscrowLedger struct {
	Base

	RoomID string `gorm:"index"`
	Room   Room   `gorm:"foreignKey:RoomID"`

	DeltaCents int64
	EventType  LedgerEventType

	RefType string
	RefID   string `gorm:"index"`
	Reason  string
}

// TierEscrowPool is the derived running balance of escrow held per tier.
// BalanceCents never exceeds CapCents; the excess is rejected at ADD time.
type TierEscrowPool struct {
	Tier RoomTier `gorm:"primarykey"`

	BalanceCents int64
	CapCents     int64

	UpdatedAt time.Time
}

// PoolLedger records bucket-scoped award funding movements in USD.
type PoolLedger struct {
	Base

	Bucket string `gorm:"index"`

	DeltaUSD  decimal.Decimal `gorm:"type:decimal(20,8)"`
	EventType LedgerEventType

	RefType string
	RefID   string `gorm:"index"`
	Reason  string
}

type BucketBalance struct {
	Bucket string `gorm:"primarykey"`

	BalanceUSD decimal.Decimal `gorm:"type:decimal(20,8)"`

	UpdatedAt time.Time
}

type CategoryPoolLedger struct {
	Base

	Category string `gorm:"index"`

	DeltaUSD  decimal.Decimal `gorm:"type:decimal(20,8)"`
	EventType LedgerEventType

	RefType string
	RefID   string `gorm:"index"`
	Reason  string
}

type CategoryPoolBalance struct {
	Category string `gorm:"primarykey"`

	BalanceUSD decimal.Decimal `gorm:"type:decimal(20,8)"`

	UpdatedAt time.Time
}
