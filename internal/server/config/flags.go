package config

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/famledger/internal/flagx"
)

var osArgs = func() []string { return os.Args[1:] }

// serverFlags are the flags parseFlags understands; FilterArgs drops the rest.
var serverFlags = []string{
	"-a", "-w", "-d", "-backend", "-table", "-dynamo-region", "-dynamo-endpoint",
	"-s", "-t", "-r", "-u", "-p", "-b", "-g", "-e", "-log-level",
}

// parseFlags overlays command-line flags onto config.
//
// Supported flags:
//
//	-a string           gRPC bind address (e.g. ":50051")
//	-w string           websocket bind address (e.g. ":8081")
//	-d string           PostgreSQL DSN
//	-backend string     records backend: postgres or dynamodb
//	-table string       DynamoDB table
//	-dynamo-region      DynamoDB region
//	-dynamo-endpoint    DynamoDB endpoint override (local testing)
//	-s string           JWT HMAC secret key
//	-t duration         access token validity (e.g. "15m")
//	-r duration         refresh token validity
//	-u / -p             S3 root user and password
//	-b / -g / -e        S3 bucket, region and base endpoint
//	-log-level string   debug, info, warn or error
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, serverFlags)

	fs := flag.NewFlagSet("famledger-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrRealtime, "w", config.EndpointAddrRealtime, "websocket address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RecordsBackend, "backend", config.RecordsBackend, "records backend (postgres or dynamodb)")
	fs.StringVar(&config.DynamoTable, "table", config.DynamoTable, "DynamoDB table")
	fs.StringVar(&config.DynamoRegion, "dynamo-region", config.DynamoRegion, "DynamoDB region")
	fs.StringVar(&config.DynamoEndpoint, "dynamo-endpoint", config.DynamoEndpoint, "DynamoDB endpoint override")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.RefreshTokenValidityDuration, "r", config.RefreshTokenValidityDuration, "refresh token validity")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
