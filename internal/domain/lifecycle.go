package domain

import (
	"context"
	"errors"
	"time"

	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/pkg/errorx"
	"github.com/dropvault/backend/pkg/xcontext"
	"gorm.io/gorm"
)

// LifecycleManager applies a room's wall-clock transitions. Tick is
// idempotent: a room whose deadline already fired is simply left alone on
// the next call. The scheduler invokes it per due room; admins never call
// it directly.
type LifecycleManager struct {
	roomRepo   repository.RoomRepository
	settlement *SettlementCoordinator
}

func NewLifecycleManager(
	roomRepo repository.RoomRepository,
	settlement *SettlementCoordinator,
) *LifecycleManager {
	return &LifecycleManager{roomRepo: roomRepo, settlement: settlement}
}

// Tick evaluates one room against the clock: lock it when lock_at passed,
// settle it when its end passed with targets met, cancel it with refunds
// when its deadline passed underfunded.
func (m *LifecycleManager) Tick(ctx context.Context, roomID string) error {
	room, err := m.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorx.New(errorx.NotFound, "Not found room")
		}

		xcontext.Logger(ctx).Errorf("Cannot get room for tick: %v", err)
		return errorx.Unknown
	}

	now := time.Now()

	switch room.Status {
	case entity.RoomStatusSettled, entity.RoomStatusCancelled:
		return nil

	case entity.RoomStatusOpen:
		if room.LockAt.Valid && !room.LockAt.Time.After(now) {
			err := m.roomRepo.UpdateStatus(ctx, roomID, entity.RoomStatusOpen, entity.RoomStatusLocked)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				xcontext.Logger(ctx).Errorf("Cannot lock room %s: %v", roomID, err)
				return errorx.Unknown
			}

			room.Status = entity.RoomStatusLocked
		}
	}

	if room.DeadlineAt.Valid && !room.DeadlineAt.Time.After(now) &&
		room.EscrowBalanceCents < room.EscrowTargetCents {
		_, _, err := m.settlement.Cancel(ctx, roomID, "deadline passed before funding target")
		return err
	}

	if room.Status == entity.RoomStatusLocked && !room.EndAt.After(now) {
		_, _, err := m.settlement.Settle(ctx, roomID, SettleModeNatural)
		return err
	}

	return nil
}
