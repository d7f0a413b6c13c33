package repository

import (
	"context"

	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/pkg/xcontext"
)

type LotteryDrawRepository interface {
	Create(ctx context.Context, draw *entity.LotteryDraw) error
	GetByRoomID(ctx context.Context, roomID string) (*entity.LotteryDraw, error)
}

type lotteryDrawRepository struct{}

func NewLotteryDrawRepository() *lotteryDrawRepository {
	return &lotteryDrawRepository{}
}

// Create relies on the unique index over room_id: a second draw for the
// same room fails at the database, not in application logic.
func (r *lotteryDrawRepository) Create(ctx context.Context, draw *entity.LotteryDraw) error {
	return xcontext.DB(ctx).Create(draw).Error
}

func (r *lotteryDrawRepository) GetByRoomID(ctx context.Context, roomID string) (*entity.LotteryDraw, error) {
	var result entity.LotteryDraw
	if err := xcontext.DB(ctx).Take(&result, "room_id=?", roomID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}
