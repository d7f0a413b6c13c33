package testutil

import (
	"context"
	"time"

	"github.com/dropvault/backend/config"
	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/migration"
	"github.com/dropvault/backend/pkg/logger"
	"github.com/dropvault/backend/pkg/xcontext"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func MockContext() context.Context {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	cfg := config.Configs{
		Env: "test",
		Drop: config.DropConfigs{
			TicketPriceCents: map[string]int64{
				string(entity.RoomTierT5):  500,
				string(entity.RoomTierT10): 1000,
				string(entity.RoomTierT20): 2000,
			},
			DefaultTicketPriceCents: 100,
			DefaultClientSeed:       "client-seed",
			CategoryPoolShareBps:    500,
			WebhookProvider:         "stripe",
		},
		Cron: config.CronConfigs{
			RoomScanInterval: time.Minute,
		},
	}

	ctx := context.Background()
	ctx = xcontext.WithConfigs(ctx, cfg)
	ctx = xcontext.WithLogger(ctx, logger.NewLogger(logger.SILENCE))
	ctx = xcontext.WithDB(ctx, db)

	if err := migration.AutoMigrate(ctx); err != nil {
		panic(err)
	}

	return ctx
}

func MockContextWithUserID(userID string) context.Context {
	return xcontext.WithRequestUserID(MockContext(), userID)
}
