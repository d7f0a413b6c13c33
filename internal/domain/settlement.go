package domain

import (
	"context"
	"errors"

	"github.com/dropvault/backend/internal/common"
	"github.com/dropvault/backend/internal/domain/fairdraw"
	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/pkg/errorx"
	"github.com/dropvault/backend/pkg/xcontext"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SettleMode string

const (
	SettleModeNatural SettleMode = "natural"
	SettleModeForced  SettleMode = "forced"
	SettleModeManual  SettleMode = "manual"
)

// SettlementCoordinator drives the terminal transitions of a room: the
// winner draw with its payout ledger entries, and cancellation with exact
// refunds. Everything happens inside one transaction under the room row
// lock, so a deadline trigger and an admin force-settle can never
// double-draw.
type SettlementCoordinator struct {
	roomRepo   repository.RoomRepository
	entryRepo  repository.RoomEntryRepository
	ledgerRepo repository.LedgerRepository
	awardRepo  repository.AwardRepository
	drawEngine *fairdraw.Engine
	audit      *common.AuditRecorder
}

func NewSettlementCoordinator(
	roomRepo repository.RoomRepository,
	entryRepo repository.RoomEntryRepository,
	ledgerRepo repository.LedgerRepository,
	awardRepo repository.AwardRepository,
	drawEngine *fairdraw.Engine,
	audit *common.AuditRecorder,
) *SettlementCoordinator {
	return &SettlementCoordinator{
		roomRepo:   roomRepo,
		entryRepo:  entryRepo,
		ledgerRepo: ledgerRepo,
		awardRepo:  awardRepo,
		drawEngine: drawEngine,
		audit:      audit,
	}
}

// Settle draws a winner and settles the room. Natural mode requires the
// room to be LOCKED with its minimum participation and funding target met;
// forced mode skips those checks and may settle straight out of OPEN.
// Settling an already-SETTLED room returns the recorded result.
func (c *SettlementCoordinator) Settle(
	ctx context.Context, roomID string, mode SettleMode,
) (*entity.Room, *entity.LotteryDraw, error) {
	return c.settle(ctx, roomID, mode, "")
}

// SettleManual settles the room with an admin-chosen winner. The draw
// record is flagged as a manual override.
func (c *SettlementCoordinator) SettleManual(
	ctx context.Context, roomID, entryID string,
) (*entity.Room, *entity.LotteryDraw, error) {
	return c.settle(ctx, roomID, SettleModeManual, entryID)
}

func (c *SettlementCoordinator) settle(
	ctx context.Context, roomID string, mode SettleMode, manualEntryID string,
) (*entity.Room, *entity.LotteryDraw, error) {
	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	room, err := c.roomRepo.GetByIDForUpdate(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errorx.New(errorx.NotFound, "Not found room")
		}

		xcontext.Logger(ctx).Errorf("Cannot get room for settlement: %v", err)
		return nil, nil, errorx.Unknown
	}

	statusBefore := room.Status

	switch room.Status {
	case entity.RoomStatusSettled:
		draw, err := c.drawEngine.Get(ctx, roomID)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot load draw of settled room: %v", err)
			return nil, nil, errorx.Unknown
		}

		return room, draw, nil

	case entity.RoomStatusCancelled:
		return nil, nil, errorx.New(errorx.InvalidDropState, "Cannot settle a cancelled room")

	case entity.RoomStatusOpen:
		if mode == SettleModeNatural {
			return nil, nil, errorx.New(errorx.InvalidDropState, "Room is not locked yet")
		}

		if err := c.roomRepo.UpdateStatus(ctx, roomID, entity.RoomStatusOpen, entity.RoomStatusLocked); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, errorx.New(errorx.StaleTransition, "Room status changed concurrently")
			}

			xcontext.Logger(ctx).Errorf("Cannot lock room before settlement: %v", err)
			return nil, nil, errorx.Unknown
		}

		room.Status = entity.RoomStatusLocked
	}

	count, err := c.entryRepo.CountByRoomID(ctx, roomID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot count entries: %v", err)
		return nil, nil, errorx.Unknown
	}

	if count == 0 || room.TotalTickets < 1 {
		return nil, nil, errorx.New(errorx.InvalidDropState,
			"Room has no entries to draw over, cancel it instead")
	}

	if mode == SettleModeNatural {
		if int(count) < room.MinParticipants {
			return nil, nil, errorx.New(errorx.InvalidDropState,
				"Room has not reached its minimum participation")
		}

		if room.EscrowBalanceCents < room.EscrowTargetCents {
			return nil, nil, errorx.New(errorx.InvalidDropState,
				"Room has not reached its funding target")
		}
	}

	var draw *entity.LotteryDraw
	if manualEntryID != "" {
		draw, err = c.drawEngine.ManualOverride(ctx, room, manualEntryID)
	} else {
		clientSeed := xcontext.Configs(ctx).Drop.DefaultClientSeed
		draw, err = c.drawEngine.Draw(ctx, room, clientSeed)
	}
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot draw winner for room %s: %v", roomID, err)
		return nil, nil, errorx.Unknown
	}

	winner, err := c.entryRepo.GetByID(ctx, draw.WinnerEntryID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get winning entry: %v", err)
		return nil, nil, errorx.Unknown
	}

	if err := c.entryRepo.UpdateOutcome(ctx, winner.ID, entity.EntryOutcomePending, entity.EntryOutcomeWinner); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot mark winning entry: %v", err)
		return nil, nil, errorx.Unknown
	}

	if _, err := c.entryRepo.UpdateOutcomeByRoomID(ctx, roomID, entity.EntryOutcomePending, entity.EntryOutcomeLoser); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot mark losing entries: %v", err)
		return nil, nil, errorx.Unknown
	}

	if err := c.roomRepo.SetWinner(ctx, roomID, winner.ID, winner.UserID); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot persist winner on room: %v", err)
		return nil, nil, errorx.Unknown
	}

	award, err := c.fundAward(ctx, room)
	if err != nil {
		return nil, nil, err
	}

	if err := c.roomRepo.UpdateStatus(ctx, roomID, entity.RoomStatusLocked, entity.RoomStatusSettled); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errorx.New(errorx.StaleTransition, "Room status changed concurrently")
		}

		xcontext.Logger(ctx).Errorf("Cannot mark room settled: %v", err)
		return nil, nil, errorx.Unknown
	}

	after := entity.Map{
		"status":          string(entity.RoomStatusSettled),
		"winner_entry_id": winner.ID,
		"winner_user_id":  winner.UserID,
		"mode":            string(mode),
	}
	if award != nil {
		after["award_id"] = award.ID
	}

	err = c.audit.Record(ctx, settleAction(mode), "room", roomID,
		entity.Map{"status": string(statusBefore)}, after)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot write settlement audit log: %v", err)
		return nil, nil, errorx.Unknown
	}

	xcontext.WithCommitDBTransaction(ctx)

	room.Status = entity.RoomStatusSettled
	return room, draw, nil
}

// fundAward captures the room's escrow and reserves it for the winner's
// prize. The captured amount lands in the tier bucket minus the category
// pool share.
func (c *SettlementCoordinator) fundAward(
	ctx context.Context, room *entity.Room,
) (*entity.Award, error) {
	captured := room.EscrowBalanceCents
	if captured <= 0 {
		return nil, nil
	}

	awardID := uuid.NewString()

	err := c.ledgerRepo.AddRoomEscrow(ctx, room.ID, -captured,
		entity.LedgerEventCapture, "award", awardID, "escrow captured at settlement")
	if err != nil {
		return nil, ledgerError(ctx, err)
	}

	if err := c.ledgerRepo.AddTierEscrow(ctx, room.Tier, -captured, room.TierCapCents); err != nil {
		return nil, ledgerError(ctx, err)
	}

	capturedUSD := decimal.NewFromInt(captured).Div(decimal.NewFromInt(100))

	share := decimal.Zero
	if room.Category != "" {
		bps := xcontext.Configs(ctx).Drop.CategoryPoolShareBps
		share = capturedUSD.Mul(decimal.NewFromInt(bps)).Div(decimal.NewFromInt(10000))
	}

	reserved := capturedUSD.Sub(share)
	bucket := string(room.Tier)

	err = c.ledgerRepo.AddBucketPool(ctx, bucket, reserved,
		entity.LedgerEventAdd, "room", room.ID, "escrow captured at settlement")
	if err != nil {
		return nil, ledgerError(ctx, err)
	}

	err = c.ledgerRepo.AddBucketPool(ctx, bucket, reserved.Neg(),
		entity.LedgerEventReserve, "award", awardID, "prize funding hold")
	if err != nil {
		return nil, ledgerError(ctx, err)
	}

	if share.IsPositive() {
		err = c.ledgerRepo.AddCategoryPool(ctx, room.Category, share,
			entity.LedgerEventAdd, "room", room.ID, "category share of settled escrow")
		if err != nil {
			return nil, ledgerError(ctx, err)
		}
	}

	award := &entity.Award{
		Base:            entity.Base{ID: awardID},
		RoomID:          room.ID,
		Bucket:          bucket,
		ProductClassID:  room.ProductClassID,
		ReservedCostUSD: reserved,
		Status:          entity.AwardStatusReserved,
	}

	if err := c.awardRepo.Create(ctx, award); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create award: %v", err)
		return nil, errorx.Unknown
	}

	return award, nil
}

// Cancel refunds every pending entry and moves the room to CANCELLED.
// Cancelling an already-cancelled room is a no-op; no entry is ever
// refunded twice because the outcome flip is guarded per entry.
func (c *SettlementCoordinator) Cancel(
	ctx context.Context, roomID, reason string,
) (*entity.Room, int64, error) {
	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	room, err := c.roomRepo.GetByIDForUpdate(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, errorx.New(errorx.NotFound, "Not found room")
		}

		xcontext.Logger(ctx).Errorf("Cannot get room for cancellation: %v", err)
		return nil, 0, errorx.Unknown
	}

	switch room.Status {
	case entity.RoomStatusCancelled:
		return room, 0, nil
	case entity.RoomStatusSettled:
		return nil, 0, errorx.New(errorx.InvalidDropState, "Cannot cancel a settled room")
	}

	entries, err := c.entryRepo.GetByRoomID(ctx, roomID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot list entries for refund: %v", err)
		return nil, 0, errorx.Unknown
	}

	var refunded int64
	for _, entry := range entries {
		err := c.entryRepo.UpdateOutcome(ctx, entry.ID, entity.EntryOutcomePending, entity.EntryOutcomeRefunded)
		if err != nil {
			// Already refunded or otherwise terminal.
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}

			xcontext.Logger(ctx).Errorf("Cannot mark entry refunded: %v", err)
			return nil, 0, errorx.Unknown
		}

		err = c.ledgerRepo.AddRoomEscrow(ctx, roomID, -entry.AmountCents,
			entity.LedgerEventRelease, "room_entry", entry.ID, reason)
		if err != nil {
			return nil, 0, ledgerError(ctx, err)
		}

		if err := c.ledgerRepo.AddTierEscrow(ctx, room.Tier, -entry.AmountCents, room.TierCapCents); err != nil {
			return nil, 0, ledgerError(ctx, err)
		}

		refunded++
	}

	if err := c.roomRepo.UpdateStatus(ctx, roomID, room.Status, entity.RoomStatusCancelled); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, errorx.New(errorx.StaleTransition, "Room status changed concurrently")
		}

		xcontext.Logger(ctx).Errorf("Cannot mark room cancelled: %v", err)
		return nil, 0, errorx.Unknown
	}

	if err := c.roomRepo.SetCancelReason(ctx, roomID, reason); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot record cancel reason: %v", err)
		return nil, 0, errorx.Unknown
	}

	err = c.audit.Record(ctx, "cancel_room", "room", roomID,
		entity.Map{"status": string(room.Status)},
		entity.Map{"status": string(entity.RoomStatusCancelled), "reason": reason, "refund_count": refunded})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot write cancellation audit log: %v", err)
		return nil, 0, errorx.Unknown
	}

	xcontext.WithCommitDBTransaction(ctx)

	room.Status = entity.RoomStatusCancelled
	room.CancelReason = reason
	return room, refunded, nil
}

// ledgerError maps repository ledger failures onto API error codes.
func ledgerError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrPoolExhausted):
		return errorx.New(errorx.PoolExhausted, "Pool balance cannot absorb this movement")
	case errors.Is(err, repository.ErrLedgerImbalance):
		xcontext.Logger(ctx).Errorf("Ledger imbalance detected, aborting: %v", err)
		return errorx.New(errorx.LedgerImbalance, "Ledger write failed its balance update")
	default:
		xcontext.Logger(ctx).Errorf("Cannot write ledger entry: %v", err)
		return errorx.Unknown
	}
}

func settleAction(mode SettleMode) string {
	switch mode {
	case SettleModeForced:
		return "force_settle_room"
	case SettleModeManual:
		return "set_room_winner"
	default:
		return "settle_room"
	}
}
