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

// fileConfig is the on-disk shape. timex.Duration accepts both "15m" and
// integer nanoseconds.
type fileConfig struct {
	EndpointAddrGRPC             string          `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	EndpointAddrRealtime         string          `json:"endpoint_addr_realtime" yaml:"endpoint_addr_realtime"`
	DatabaseDSN                  string          `json:"database_dsn" yaml:"database_dsn"`
	RecordsBackend               string          `json:"records_backend" yaml:"records_backend"`
	DynamoTable                  string          `json:"dynamo_table" yaml:"dynamo_table"`
	DynamoRegion                 string          `json:"dynamo_region" yaml:"dynamo_region"`
	DynamoEndpoint               string          `json:"dynamo_endpoint" yaml:"dynamo_endpoint"`
	SecretKey                    string          `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration" yaml:"refresh_token_validity_duration"`
	S3RootUser                   string          `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword               string          `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket                     string          `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region                     string          `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint               string          `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	LogLevel                     string          `json:"log_level" yaml:"log_level"`
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

	setString(&cfg.EndpointAddrGRPC, fc.EndpointAddrGRPC)
	setString(&cfg.EndpointAddrRealtime, fc.EndpointAddrRealtime)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.RecordsBackend, fc.RecordsBackend)
	setString(&cfg.DynamoTable, fc.DynamoTable)
	setString(&cfg.DynamoRegion, fc.DynamoRegion)
	setString(&cfg.DynamoEndpoint, fc.DynamoEndpoint)
	setString(&cfg.SecretKey, fc.SecretKey)
	if fc.AccessTokenValidityDuration != nil {
		cfg.AccessTokenValidityDuration = fc.AccessTokenValidityDuration.Duration
	}
	if fc.RefreshTokenValidityDuration != nil {
		cfg.RefreshTokenValidityDuration = fc.RefreshTokenValidityDuration.Duration
	}
	setString(&cfg.S3RootUser, fc.S3RootUser)
	setString(&cfg.S3RootPassword, fc.S3RootPassword)
	setString(&cfg.S3Bucket, fc.S3Bucket)
	setString(&cfg.S3Region, fc.S3Region)
	setString(&cfg.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&cfg.LogLevel, fc.LogLevel)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
