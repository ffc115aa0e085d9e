package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/famledger/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape. Pointer and zero-checked fields let a
// file override only what it names.
type fileConfig struct {
	ServerEndpointAddr  string          `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	RealtimeURL         string          `json:"realtime_url" yaml:"realtime_url"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	DataDir             string          `json:"data_dir" yaml:"data_dir"`
	HistoryRetention    *int            `json:"history_retention" yaml:"history_retention"`
	SyncInterval        *timex.Duration `json:"sync_interval" yaml:"sync_interval"`
	LogLevel            string          `json:"log_level" yaml:"log_level"`
}

func parseFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = fc.ServerEndpointAddr
	}
	if fc.RealtimeURL != "" {
		cfg.RealtimeURL = fc.RealtimeURL
	}
	if fc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.HistoryRetention != nil {
		cfg.HistoryRetention = *fc.HistoryRetention
	}
	if fc.SyncInterval != nil {
		cfg.SyncInterval = fc.SyncInterval.Duration
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	return nil
}
