package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/dropvault/backend/config"
	"github.com/dropvault/backend/internal/common"
	"github.com/dropvault/backend/internal/domain"
	"github.com/dropvault/backend/internal/domain/fairdraw"
	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/migration"
	"github.com/dropvault/backend/pkg/logger"
	"github.com/dropvault/backend/pkg/router"
	"github.com/dropvault/backend/pkg/xcontext"
	"github.com/dropvault/backend/pkg/xredis"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type srv struct {
	ctx context.Context
	app *cli.App

	roomRepo    repository.RoomRepository
	entryRepo   repository.RoomEntryRepository
	drawRepo    repository.LotteryDrawRepository
	ledgerRepo  repository.LedgerRepository
	awardRepo   repository.AwardRepository
	auditRepo   repository.AuditLogRepository
	webhookRepo repository.WebhookEventRepository

	redisClient xredis.Client

	audit      *common.AuditRecorder
	drawEngine *fairdraw.Engine
	settlement *domain.SettlementCoordinator
	lifecycle  *domain.LifecycleManager

	roomDomain    domain.RoomDomain
	entryDomain   domain.EntryDomain
	economyDomain domain.EconomyDomain

	router *router.Router
	server *http.Server
}

func (s *srv) loadConfig() {
	cfg := config.Configs{
		Env: getEnv("ENV", "local"),
		Database: config.DatabaseConfigs{
			Host:        getEnv("MYSQL_HOST", "mysql"),
			Port:        getEnv("MYSQL_PORT", "3306"),
			User:        getEnv("MYSQL_USER", "dropvault"),
			Password:    getEnv("MYSQL_PASSWORD", "dropvault"),
			Database:    getEnv("MYSQL_DATABASE", "dropvault"),
			LockTimeout: getDuration("DATABASE_LOCK_TIMEOUT", 10*time.Second),
		},
		ApiServer: config.ServerConfigs{
			Host: getEnv("API_HOST", "localhost"),
			Port: getEnv("API_PORT", "8080"),
			Cert: getEnv("API_SERVER_CERT", ""),
			Key:  getEnv("API_SERVER_KEY", ""),
		},
		Redis: config.RedisConfigs{
			Addr: getEnv("REDIS_ADDRESS", ""),
		},
		Drop: config.DropConfigs{
			TicketPriceCents: map[string]int64{
				string(entity.RoomTierT5):  getInt64("TICKET_PRICE_T5_CENTS", 500),
				string(entity.RoomTierT10): getInt64("TICKET_PRICE_T10_CENTS", 1000),
				string(entity.RoomTierT20): getInt64("TICKET_PRICE_T20_CENTS", 2000),
			},
			DefaultTicketPriceCents: getInt64("TICKET_PRICE_DEFAULT_CENTS", 100),
			DefaultClientSeed:       getEnv("DRAW_DEFAULT_CLIENT_SEED", "dropvault"),
			CategoryPoolShareBps:    getInt64("CATEGORY_POOL_SHARE_BPS", 500),
			WebhookProvider:         getEnv("WEBHOOK_PROVIDER", "stripe"),
		},
		Cron: config.CronConfigs{
			RoomScanInterval: getDuration("ROOM_SCAN_INTERVAL", time.Minute),
		},
	}

	s.ctx = xcontext.WithConfigs(s.ctx, cfg)
}

func (s *srv) loadLogger() {
	level := logger.INFO
	if xcontext.Configs(s.ctx).Env == "local" {
		level = logger.DEBUG
	}

	s.ctx = xcontext.WithLogger(s.ctx, logger.NewLogger(level))
}

func (s *srv) newDatabase() *gorm.DB {
	databaseCfg := xcontext.Configs(s.ctx).Database
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       databaseCfg.ConnectionString(),
		DefaultStringSize:         256,
		DisableDatetimePrecision:  true,
		DontSupportRenameIndex:    true,
		DontSupportRenameColumn:   true,
		SkipInitializeWithVersion: false,
	}), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	return db
}

func (s *srv) migrateDB() {
	if err := migration.AutoMigrate(s.ctx); err != nil {
		panic(err)
	}
}

func (s *srv) loadRedisClient() {
	if xcontext.Configs(s.ctx).Redis.Addr == "" {
		return
	}

	var err error
	s.redisClient, err = xredis.NewClient(s.ctx)
	if err != nil {
		panic(err)
	}
}

func (s *srv) loadRepos() {
	s.roomRepo = repository.NewRoomRepository()
	s.entryRepo = repository.NewRoomEntryRepository()
	s.drawRepo = repository.NewLotteryDrawRepository()
	s.ledgerRepo = repository.NewLedgerRepository()
	s.awardRepo = repository.NewAwardRepository()
	s.auditRepo = repository.NewAuditLogRepository()
	s.webhookRepo = repository.NewWebhookEventRepository()
}

func (s *srv) loadDomains() {
	s.audit = common.NewAuditRecorder(s.auditRepo)
	s.drawEngine = fairdraw.NewEngine(s.entryRepo, s.drawRepo)
	s.settlement = domain.NewSettlementCoordinator(
		s.roomRepo, s.entryRepo, s.ledgerRepo, s.awardRepo, s.drawEngine, s.audit)
	s.lifecycle = domain.NewLifecycleManager(s.roomRepo, s.settlement)

	s.roomDomain = domain.NewRoomDomain(
		s.roomRepo, s.entryRepo, s.drawRepo, s.settlement, s.redisClient, s.audit)
	s.entryDomain = domain.NewEntryDomain(
		s.roomRepo, s.entryRepo, s.ledgerRepo, s.webhookRepo, s.redisClient, s.audit)
	s.economyDomain = domain.NewEconomyDomain(s.ledgerRepo, s.awardRepo, s.audit)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func getInt64(key string, fallback int64) int64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}

	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}

	return d
}
