package config

import (
	"fmt"

	"github.com/dmitrijs2005/famledger/internal/common"
)

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.RecordsBackend {
	case BackendPostgres:
	case BackendDynamoDB:
		if c.DynamoTable == "" {
			return fmt.Errorf("%w: dynamodb backend needs a table name", common.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%w: unknown records backend %q", common.ErrInvalidArgument, c.RecordsBackend)
	}
	if c.SecretKey == "" {
		return fmt.Errorf("%w: empty secret key", common.ErrInvalidArgument)
	}
	if c.AccessTokenValidityDuration <= 0 || c.RefreshTokenValidityDuration <= 0 {
		return fmt.Errorf("%w: token lifetimes must be positive", common.ErrInvalidArgument)
	}
	return nil
}
