package migration

import (
	"context"

	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/pkg/xcontext"
)

func AutoMigrate(ctx context.Context) error {
	return xcontext.DB(ctx).AutoMigrate(
		&entity.Room{},
		&entity.RoomEntry{},
		&entity.LotteryDraw{},
		&entity.EscrowLedger{},
		&entity.TierEscrowPool{},
		&entity.PoolLedger{},
		&entity.BucketBalance{},
		&entity.CategoryPoolLedger{},
		&entity.CategoryPoolBalance{},
		&entity.Award{},
		&entity.AuditLog{},
		&entity.WebhookEvent{},
	)
}
