package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_DatabaseConfigs_ConnectionString(t *testing.T) {
	cfg := DatabaseConfigs{
		Host:     "localhost",
		Port:     "3306",
		User:     "drop",
		Password: "secret",
		Database: "dropvault",
	}

	require.Equal(t,
		"drop:secret@tcp(localhost:3306)/dropvault?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.ConnectionString())

	cfg.LockTimeout = 5 * time.Second
	require.Contains(t, cfg.ConnectionString(), "&innodb_lock_wait_timeout=5")
}
