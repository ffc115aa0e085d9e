// Package repomanager vends the local repositories bound to a database
// handle, so one transaction can span several of them.
package repomanager

import (
	"github.com/dmitrijs2005/famledger/internal/client/repositories/conflicts"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/history"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/members"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/pending"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/records"
	"github.com/dmitrijs2005/famledger/internal/dbx"
)

type RepositoryManager interface {
	Records(db dbx.DBTX) records.Repository
	History(db dbx.DBTX) history.Repository
	Pending(db dbx.DBTX) pending.Repository
	Conflicts(db dbx.DBTX) conflicts.Repository
	Members(db dbx.DBTX) members.Repository
	Metadata(db dbx.DBTX) metadata.Repository
}

type SQLiteRepositoryManager struct{}

func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (SQLiteRepositoryManager) Records(db dbx.DBTX) records.Repository {
	return records.NewSQLiteRepository(db)
}

func (SQLiteRepositoryManager) History(db dbx.DBTX) history.Repository {
	return history.NewSQLiteRepository(db)
}

func (SQLiteRepositoryManager) Pending(db dbx.DBTX) pending.Repository {
	return pending.NewSQLiteRepository(db)
}

func (SQLiteRepositoryManager) Conflicts(db dbx.DBTX) conflicts.Repository {
	return conflicts.NewSQLiteRepository(db)
}

func (SQLiteRepositoryManager) Members(db dbx.DBTX) members.Repository {
	return members.NewSQLiteRepository(db)
}

func (SQLiteRepositoryManager) Metadata(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}
