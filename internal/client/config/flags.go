package config

import "github.com/spf13/pflag"

// BindFlags registers the persistent flags of the command tree against c.
// Current values of c become the flag defaults, so call it after
// LoadConfig.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "path to config file (json or yaml)")
	fs.StringVarP(&c.ServerEndpointAddr, "addr", "a", c.ServerEndpointAddr, "address and port of the server gRPC endpoint")
	fs.StringVarP(&c.RealtimeURL, "realtime", "r", c.RealtimeURL, "base websocket url of the change feed")
	fs.DurationVarP(&c.OnlineCheckInterval, "interval", "i", c.OnlineCheckInterval, "online check interval")
	fs.StringVarP(&c.DataDir, "data", "d", c.DataDir, "directory for local databases")
	fs.IntVar(&c.HistoryRetention, "retention", c.HistoryRetention, "snapshots kept per entity (0 keeps all)")
	fs.DurationVar(&c.SyncInterval, "sync-interval", c.SyncInterval, "sync period of the watch command")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
}
