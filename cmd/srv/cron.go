package main

import (
	"github.com/dropvault/backend/internal/domain/cron"
	"github.com/dropvault/backend/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startCron(*cli.Context) error {
	s.loadConfig()
	s.loadLogger()
	s.ctx = xcontext.WithDB(s.ctx, s.newDatabase())
	s.migrateDB()
	s.loadRedisClient()
	s.loadRepos()
	s.loadDomains()

	cronJobManager := cron.NewCronJobManager()
	cronJobManager.Start(s.ctx,
		cron.NewRoomLifecycleCronJob(
			s.roomRepo, s.lifecycle, xcontext.Configs(s.ctx).Cron.RoomScanInterval),
	)

	return nil
}
