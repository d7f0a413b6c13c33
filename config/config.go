package config

import (
	"fmt"
	"time"
)

type Configs struct {
	Env string

	Database  DatabaseConfigs
	ApiServer ServerConfigs
	Redis     RedisConfigs
	Drop      DropConfigs
	Cron      CronConfigs
}

type DatabaseConfigs struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string

	// Upper bound for waiting on another writer's per-room lock.
	LockTimeout time.Duration
}

func (d *DatabaseConfigs) ConnectionString() string {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
	)

	if d.LockTimeout > 0 {
		dsn += fmt.Sprintf("&innodb_lock_wait_timeout=%d", int64(d.LockTimeout.Seconds()))
	}

	return dsn
}

type ServerConfigs struct {
	Host string
	Port string
	Cert string
	Key  string
}

type RedisConfigs struct {
	Addr string
}

type DropConfigs struct {
	// Price of one ticket in cents, per tier. Tiers not listed fall back to
	// DefaultTicketPriceCents.
	TicketPriceCents        map[string]int64
	DefaultTicketPriceCents int64

	// Client seed mixed into the draw digest when no external source is
	// wired.
	DefaultClientSeed string

	// Share of a settled room's escrow credited to its category pool, in
	// basis points.
	CategoryPoolShareBps int64

	// Provider tag recorded with deduplicated webhook events.
	WebhookProvider string
}

type CronConfigs struct {
	RoomScanInterval time.Duration
}
