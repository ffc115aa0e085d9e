package config

import (
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/famledger/internal/flagx"
)

// Config holds runtime settings for the FamLedger CLI.
//
// OnlineCheckInterval drives the realtime heartbeat, SyncInterval the
// periodic pass of the watch command. HistoryRetention is the number of
// snapshots kept per entity; 0 keeps everything.
type Config struct {
	ServerEndpointAddr  string
	RealtimeURL         string
	OnlineCheckInterval time.Duration
	DataDir             string
	HistoryRetention    int
	SyncInterval        time.Duration
	LogLevel            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RealtimeURL = "ws://127.0.0.1:8081"
	c.OnlineCheckInterval = 5 * time.Second
	c.DataDir = ".famledger"
	c.HistoryRetention = 100
	c.SyncInterval = 30 * time.Second
	c.LogLevel = "warn"
}

// DBPath is the local replica inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "famledger.db")
}

// LoadConfig applies defaults and then the config file named on the
// command line, if any. Flags are layered on top by BindFlags once the
// command tree parses them.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, flagx.ConfigFileFlag()); err != nil {
		return nil, err
	}
	return cfg, nil
}
