package entity

import (
	"database/sql"

	"github.com/dropvault/backend/pkg/enum"
	"github.com/shopspring/decimal"
)

type AwardStatus string

var (
	AwardStatusReserved  = enum.New(AwardStatus("RESERVED"))
	AwardStatusFulfilled = enum.New(AwardStatus("FULFILLED"))
	AwardStatusCancelled = enum.New(AwardStatus("CANCELLED"))
	AwardStatusExpired   = enum.New(AwardStatus("EXPIRED"))
)

// Award reserves prize funding from a bucket when a room settles. The
// RESERVE written at creation is terminated by exactly one CAPTURE
// (fulfilled) or RELEASE (cancelled or expired).
type Award struct {
	Base

	RoomID string `gorm:"index"`
	Room   Room   `gorm:"foreignKey:RoomID"`

	Bucket string

	// ProductClassID is copied from the room at settlement. RevealID is
	// set once the prize is handed over to the winner.
	ProductClassID string
	RevealID       sql.NullString

	ReservedCostUSD decimal.Decimal `gorm:"type:decimal(20,8)"`

	Status AwardStatus
}
