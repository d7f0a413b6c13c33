package repository

import (
	"context"
	"time"

	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/pkg/xcontext"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GetListRoomFilter struct {
	Status entity.RoomStatus
	Tier   entity.RoomTier
	Offset int
	Limit  int
}

type RoomRepository interface {
	Create(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, roomID string) (*entity.Room, error)
	GetByIDForUpdate(ctx context.Context, roomID string) (*entity.Room, error)
	GetList(ctx context.Context, filter GetListRoomFilter) ([]entity.Room, error)
	GetDueLock(ctx context.Context, now time.Time) ([]entity.Room, error)
	GetDueSettle(ctx context.Context, now time.Time) ([]entity.Room, error)
	GetDueCancel(ctx context.Context, now time.Time) ([]entity.Room, error)
	UpdateStatus(ctx context.Context, roomID string, from, to entity.RoomStatus) error
	UpdateDeadline(ctx context.Context, roomID string, deadline, endAt time.Time) error
	TakeTicketRange(ctx context.Context, roomID string, offset, tickets int64) error
	SetWinner(ctx context.Context, roomID, entryID, userID string) error
	SetCancelReason(ctx context.Context, roomID, reason string) error
}

type roomRepository struct{}

func NewRoomRepository() *roomRepository {
	return &roomRepository{}
}

func (r *roomRepository) Create(ctx context.Context, room *entity.Room) error {
	return xcontext.DB(ctx).Create(room).Error
}

func (r *roomRepository) GetByID(ctx context.Context, roomID string) (*entity.Room, error) {
	var result entity.Room
	if err := xcontext.DB(ctx).Take(&result, "id=?", roomID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

// GetByIDForUpdate takes the room row lock. All mutations of a room's
// status, ticket counter, and escrow balance happen under this lock, so two
// concurrent purchases can never read the same ticket offset.
func (r *roomRepository) GetByIDForUpdate(ctx context.Context, roomID string) (*entity.Room, error) {
	var result entity.Room
	err := xcontext.DB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&result, "id=?", roomID).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *roomRepository) GetList(ctx context.Context, filter GetListRoomFilter) ([]entity.Room, error) {
	tx := xcontext.DB(ctx).Model(&entity.Room{})
	if filter.Status != "" {
		tx = tx.Where("status=?", filter.Status)
	}

	if filter.Tier != "" {
		tx = tx.Where("tier=?", filter.Tier)
	}

	if filter.Limit > 0 {
		tx = tx.Offset(filter.Offset).Limit(filter.Limit)
	}

	var result []entity.Room
	if err := tx.Order("start_at DESC").Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *roomRepository) GetDueLock(ctx context.Context, now time.Time) ([]entity.Room, error) {
	var result []entity.Room
	err := xcontext.DB(ctx).
		Where("status=? AND lock_at IS NOT NULL AND lock_at<=?", entity.RoomStatusOpen, now).
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *roomRepository) GetDueSettle(ctx context.Context, now time.Time) ([]entity.Room, error) {
	var result []entity.Room
	err := xcontext.DB(ctx).
		Where("status=? AND end_at<=?", entity.RoomStatusLocked, now).
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetDueCancel returns rooms past their deadline that never met their
// funding target. These are cancelled with refunds rather than settled.
func (r *roomRepository) GetDueCancel(ctx context.Context, now time.Time) ([]entity.Room, error) {
	var result []entity.Room
	err := xcontext.DB(ctx).
		Where("status IN (?) AND deadline_at IS NOT NULL AND deadline_at<=? AND escrow_balance_cents<escrow_target_cents",
			[]entity.RoomStatus{entity.RoomStatusOpen, entity.RoomStatusLocked}, now).
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

// UpdateStatus is a compare-and-swap on the room status. A stale expected
// status affects no row and surfaces as gorm.ErrRecordNotFound.
func (r *roomRepository) UpdateStatus(
	ctx context.Context, roomID string, from, to entity.RoomStatus,
) error {
	tx := xcontext.DB(ctx).Model(&entity.Room{}).
		Where("id=? AND status=?", roomID, from).
		Update("status", to)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *roomRepository) UpdateDeadline(
	ctx context.Context, roomID string, deadline, endAt time.Time,
) error {
	tx := xcontext.DB(ctx).Model(&entity.Room{}).
		Where("id=? AND status IN (?)",
			roomID, []entity.RoomStatus{entity.RoomStatusOpen, entity.RoomStatusLocked}).
		Updates(map[string]any{"deadline_at": deadline, "end_at": endAt})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// TakeTicketRange advances the room's ticket counter past the range
// [offset, offset+tickets). The counter value is part of the guard, so a
// lost-update between reading the offset and writing the counter cannot go
// unnoticed.
func (r *roomRepository) TakeTicketRange(
	ctx context.Context, roomID string, offset, tickets int64,
) error {
	tx := xcontext.DB(ctx).Model(&entity.Room{}).
		Where("id=? AND total_tickets=?", roomID, offset).
		Update("total_tickets", gorm.Expr("total_tickets+?", tickets))
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *roomRepository) SetWinner(ctx context.Context, roomID, entryID, userID string) error {
	return xcontext.DB(ctx).Model(&entity.Room{}).
		Where("id=?", roomID).
		Updates(map[string]any{"winner_entry_id": entryID, "winner_user_id": userID}).Error
}

func (r *roomRepository) SetCancelReason(ctx context.Context, roomID, reason string) error {
	return xcontext.DB(ctx).Model(&entity.Room{}).
		Where("id=?", roomID).
		Update("cancel_reason", reason).Error
}
