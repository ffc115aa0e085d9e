package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/households"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/records"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Households(db dbx.DBTX) households.Repository
	Records(db dbx.DBTX) records.Repository
}
