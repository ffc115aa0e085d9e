package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/models"
	smodels "github.com/dmitrijs2005/famledger/internal/server/models"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/households"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/records"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/users"
)

var errBoom = errors.New("boom")

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

type fakeUsers struct {
	byName    map[string]*smodels.User
	createErr error
	getErr    error
}

func (f *fakeUsers) Create(_ context.Context, u *smodels.User) (*smodels.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byName[u.UserName]; ok {
		return nil, common.ErrAlreadyExists
	}
	c := *u
	c.ID = "id-" + u.UserName
	f.byName[u.UserName] = &c
	return &c, nil
}

func (f *fakeUsers) GetUserByLogin(_ context.Context, login string) (*smodels.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[login]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

type fakeRefresh struct {
	tokens    map[string]*smodels.RefreshToken
	createErr error
	purged    int
}

func (f *fakeRefresh) Create(_ context.Context, userID, token string, validity time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.tokens[token] = &smodels.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (f *fakeRefresh) Consume(_ context.Context, token string) (*smodels.RefreshToken, error) {
	t, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	delete(f.tokens, token)
	return t, nil
}

func (f *fakeRefresh) PurgeExpired(context.Context, string, time.Time) error {
	f.purged++
	return nil
}

type fakeHouseholds struct {
	mu      sync.Mutex
	nextID  int
	list    []models.Household
	members map[string][]models.Member
	addErr  error
}

func (f *fakeHouseholds) Create(_ context.Context, name, createdBy string) (*models.Household, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	h := models.Household{ID: fmt.Sprintf("h%d", f.nextID), Name: name, CreatedBy: createdBy}
	f.list = append(f.list, h)
	return &h, nil
}

func (f *fakeHouseholds) ListForUser(_ context.Context, userID string) ([]models.Household, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Household
	for _, h := range f.list {
		for _, m := range f.members[h.ID] {
			if m.UserID == userID {
				out = append(out, h)
			}
		}
	}
	return out, nil
}

func (f *fakeHouseholds) AddMember(_ context.Context, m models.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	for _, x := range f.members[m.HouseholdID] {
		if x.UserID == m.UserID {
			return common.ErrAlreadyExists
		}
	}
	f.members[m.HouseholdID] = append(f.members[m.HouseholdID], m)
	return nil
}

func (f *fakeHouseholds) Members(_ context.Context, householdID string) ([]models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Member(nil), f.members[householdID]...), nil
}

func (f *fakeHouseholds) Role(_ context.Context, householdID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members[householdID] {
		if m.UserID == userID {
			return m.Role, nil
		}
	}
	return "", common.ErrNotFound
}

type fakeRepoManager struct {
	users      *fakeUsers
	refresh    *fakeRefresh
	households *fakeHouseholds
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:      &fakeUsers{byName: map[string]*smodels.User{}},
		refresh:    &fakeRefresh{tokens: map[string]*smodels.RefreshToken{}},
		households: &fakeHouseholds{members: map[string][]models.Member{}},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return m.users }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.refresh }
func (m *fakeRepoManager) Households(dbx.DBTX) households.Repository       { return m.households }
func (m *fakeRepoManager) Records(dbx.DBTX) records.Repository             { return nil }

// memberSet is a MembershipChecker over a fixed set of household/user pairs.
type memberSet map[[2]string]bool

func (s memberSet) RequireMember(_ context.Context, householdID, userID string) error {
	if s[[2]string{householdID, userID}] {
		return nil
	}
	return common.ErrUnauthorized
}
