package main

import (
	"fmt"
	"net/http"

	"github.com/dropvault/backend/internal/middleware"
	"github.com/dropvault/backend/pkg/router"
	"github.com/dropvault/backend/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startApi(*cli.Context) error {
	s.loadConfig()
	s.loadLogger()
	s.ctx = xcontext.WithDB(s.ctx, s.newDatabase())
	s.migrateDB()
	s.loadRedisClient()
	s.loadRepos()
	s.loadDomains()
	s.loadRouter()

	serverConfigs := xcontext.Configs(s.ctx).ApiServer
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfigs.Port),
		Handler: s.router.Handler(),
	}

	xcontext.Logger(s.ctx).Infof("Starting server on port %s", serverConfigs.Port)
	if serverConfigs.Cert != "" && serverConfigs.Key != "" {
		if err := s.server.ListenAndServeTLS(serverConfigs.Cert, serverConfigs.Key); err != nil {
			panic(err)
		}

		return nil
	}

	if err := s.server.ListenAndServe(); err != nil {
		panic(err)
	}

	return nil
}

func (s *srv) loadRouter() {
	s.router = router.New(s.ctx)
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.WithActor())

	// Public API.
	router.GET(s.router, "/getRoom", s.roomDomain.Get)
	router.GET(s.router, "/getEntries", s.roomDomain.GetEntries)
	router.GET(s.router, "/getDraw", s.roomDomain.GetDraw)

	// Payment provider API. The gateway verifies the webhook signature
	// before the request reaches this service.
	router.POST(s.router, "/webhook/roomEntry", s.entryDomain.RoomEntryWebhook)
	router.POST(s.router, "/recordEntry", s.entryDomain.RecordEntry)

	// Admin API.
	adminRouter := s.router.Group("/admin")
	adminRouter.Use(middleware.RequireActor())
	{
		router.POST(adminRouter, "/createRoom", s.roomDomain.Create)
		router.POST(adminRouter, "/extendDeadline", s.roomDomain.ExtendDeadline)
		router.POST(adminRouter, "/cancelRoom", s.roomDomain.Cancel)
		router.POST(adminRouter, "/forceSettle", s.roomDomain.ForceSettle)
		router.POST(adminRouter, "/setWinner", s.roomDomain.SetWinner)

		router.POST(adminRouter, "/adjustBucketBalance", s.economyDomain.AdjustBucketBalance)
		router.POST(adminRouter, "/fulfillAward", s.economyDomain.FulfillAward)
		router.POST(adminRouter, "/cancelAward", s.economyDomain.CancelAward)
		router.GET(adminRouter, "/getRoomEscrowLedger", s.economyDomain.GetRoomEscrowLedger)
		router.GET(adminRouter, "/getBucketBalances", s.economyDomain.GetBucketBalances)
		router.GET(adminRouter, "/getTierEscrowPools", s.economyDomain.GetTierEscrowPools)
	}
}
