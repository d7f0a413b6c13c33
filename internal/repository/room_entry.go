package repository

import (
	"context"

	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type RoomEntryRepository interface {
	Create(ctx context.Context, entry *entity.RoomEntry) error
	GetByID(ctx context.Context, entryID string) (*entity.RoomEntry, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.RoomEntry, error)
	GetByRoomID(ctx context.Context, roomID string) ([]entity.RoomEntry, error)
	GetByRoomIDOrderByRank(ctx context.Context, roomID string) ([]entity.RoomEntry, error)
	CountByRoomID(ctx context.Context, roomID string) (int64, error)
	UpdateOutcome(ctx context.Context, entryID string, from, to entity.EntryOutcome) error
	UpdateOutcomeByRoomID(ctx context.Context, roomID string, from, to entity.EntryOutcome) (int64, error)
}

type roomEntryRepository struct{}

func NewRoomEntryRepository() *roomEntryRepository {
	return &roomEntryRepository{}
}

func (r *roomEntryRepository) Create(ctx context.Context, entry *entity.RoomEntry) error {
	return xcontext.DB(ctx).Create(entry).Error
}

func (r *roomEntryRepository) GetByID(ctx context.Context, entryID string) (*entity.RoomEntry, error) {
	var result entity.RoomEntry
	if err := xcontext.DB(ctx).Take(&result, "id=?", entryID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *roomEntryRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entity.RoomEntry, error) {
	var result entity.RoomEntry
	if err := xcontext.DB(ctx).Take(&result, "idempotency_key=?", key).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

// GetByRoomID returns entries in ticket-range order. Ranges are contiguous
// and non-overlapping by construction, so this is also insertion order.
func (r *roomEntryRepository) GetByRoomID(ctx context.Context, roomID string) ([]entity.RoomEntry, error) {
	var result []entity.RoomEntry
	err := xcontext.DB(ctx).Where("room_id=?", roomID).
		Order("ticket_offset ASC").Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *roomEntryRepository) GetByRoomIDOrderByRank(ctx context.Context, roomID string) ([]entity.RoomEntry, error) {
	var result []entity.RoomEntry
	err := xcontext.DB(ctx).Where("room_id=?", roomID).
		Order("priority_score DESC, staked_at ASC").Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *roomEntryRepository) CountByRoomID(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := xcontext.DB(ctx).Model(&entity.RoomEntry{}).
		Where("room_id=?", roomID).Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// UpdateOutcome flips an entry's outcome exactly once. The expected current
// outcome is part of the guard; an already-transitioned entry affects no
// row and returns gorm.ErrRecordNotFound.
func (r *roomEntryRepository) UpdateOutcome(
	ctx context.Context, entryID string, from, to entity.EntryOutcome,
) error {
	tx := xcontext.DB(ctx).Model(&entity.RoomEntry{}).
		Where("id=? AND outcome=?", entryID, from).
		Update("outcome", to)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *roomEntryRepository) UpdateOutcomeByRoomID(
	ctx context.Context, roomID string, from, to entity.EntryOutcome,
) (int64, error) {
	tx := xcontext.DB(ctx).Model(&entity.RoomEntry{}).
		Where("room_id=? AND outcome=?", roomID, from).
		Update("outcome", to)
	if tx.Error != nil {
		return 0, tx.Error
	}

	return tx.RowsAffected, nil
}
