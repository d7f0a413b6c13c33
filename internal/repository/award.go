package repository

import (
	"context"
	"database/sql"

	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type AwardRepository interface {
	Create(ctx context.Context, award *entity.Award) error
	GetByID(ctx context.Context, awardID string) (*entity.Award, error)
	GetByRoomID(ctx context.Context, roomID string) (*entity.Award, error)
	UpdateStatus(ctx context.Context, awardID string, from, to entity.AwardStatus) error
	SetRevealID(ctx context.Context, awardID, revealID string) error
}

type awardRepository struct{}

func NewAwardRepository() *awardRepository {
	return &awardRepository{}
}

func (r *awardRepository) Create(ctx context.Context, award *entity.Award) error {
	return xcontext.DB(ctx).Create(award).Error
}

func (r *awardRepository) GetByID(ctx context.Context, awardID string) (*entity.Award, error) {
	var result entity.Award
	if err := xcontext.DB(ctx).Take(&result, "id=?", awardID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *awardRepository) GetByRoomID(ctx context.Context, roomID string) (*entity.Award, error) {
	var result entity.Award
	if err := xcontext.DB(ctx).Take(&result, "room_id=?", roomID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *awardRepository) SetRevealID(ctx context.Context, awardID, revealID string) error {
	return xcontext.DB(ctx).Model(&entity.Award{}).
		Where("id=?", awardID).
		Update("reveal_id", sql.NullString{String: revealID, Valid: true}).Error
}

// UpdateStatus moves an award out of RESERVED exactly once. The guard is
// what keeps the award's RESERVE from ever being terminated by both a
// CAPTURE and a RELEASE.
func (r *awardRepository) UpdateStatus(
	ctx context.Context, awardID string, from, to entity.AwardStatus,
) error {
	tx := xcontext.DB(ctx).Model(&entity.Award{}).
		Where("id=? AND status=?", awardID, from).
		Update("status", to)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
