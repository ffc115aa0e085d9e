// Package config loads runtime configuration for the FamLedger client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected with -c or -config. Files ending in
//     .yaml or .yml are read as YAML, anything else as JSON.
//  3. Command-line flags bound by (*Config).BindFlags, which override
//     earlier values.
//
// # File schema
//
// Intervals use timex.Duration, so they can be strings like "3s" or integer
// nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "realtime_url": "ws://127.0.0.1:8081",
//	  "online_check_interval": "5s",
//	  "data_dir": "/home/me/.famledger",
//	  "history_retention": 100,
//	  "sync_interval": "30s",
//	  "log_level": "info"
//	}
package config
