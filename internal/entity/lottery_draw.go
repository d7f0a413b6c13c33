package entity

import "time"

// LotteryDraw is the immutable record of a room's winner selection. The
// unique index on RoomID guarantees at most one draw per room even under
// concurrent settlement attempts. VerificationHash is
// sha256(server_seed || client_seed || nonce) and is recomputable by anyone
// from the revealed triple.
type LotteryDraw struct {
	Base

	RoomID string `gorm:"uniqueIndex"`
	Room   Room   `gorm:"foreignKey:RoomID"`

	WinnerEntryID string

	WinningTicketNumber int64
	TotalTickets        int64

	SeedCommitment   string
	ServerSeed       string
	ClientSeed       string
	Nonce            int64
	VerificationHash string

	IsManualOverride bool

	DrawnAt time.Time
}
