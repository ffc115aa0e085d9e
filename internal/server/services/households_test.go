package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/models"
	smodels "github.com/dmitrijs2005/famledger/internal/server/models"
)

func newHouseholdService(t *testing.T) (*HouseholdService, *fakeRepoManager) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	rm := newFakeRepoManager()
	rm.users.byName["alice"] = &smodels.User{ID: "u-alice", UserName: "alice"}
	rm.users.byName["bob"] = &smodels.User{ID: "u-bob", UserName: "bob"}
	rm.users.byName["carol"] = &smodels.User{ID: "u-carol", UserName: "carol"}
	return NewHouseholdService(db, rm, logging.Nop()), rm
}

func TestHouseholdService_CreateMakesOwner(t *testing.T) {
	s, _ := newHouseholdService(t)
	ctx := context.Background()

	h, err := s.Create(ctx, "u-alice", "  Smiths ")
	require.NoError(t, err)
	assert.Equal(t, "Smiths", h.Name)
	assert.Equal(t, "u-alice", h.CreatedBy)

	list, err := s.List(ctx, "u-alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, h.ID, list[0].ID)

	members, err := s.ListMembers(ctx, "u-alice", h.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, models.RoleOwner, members[0].Role)

	_, err = s.Create(ctx, "u-alice", " ")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestHouseholdService_AddMember(t *testing.T) {
	s, _ := newHouseholdService(t)
	ctx := context.Background()

	h, err := s.Create(ctx, "u-alice", "Smiths")
	require.NoError(t, err)

	m, err := s.AddMember(ctx, "u-alice", h.ID, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, models.Member{HouseholdID: h.ID, UserID: "u-bob", UserName: "bob", Role: models.RoleMember}, *m)

	_, err = s.AddMember(ctx, "u-alice", h.ID, "bob", "")
	assert.ErrorIs(t, err, common.ErrAlreadyExists)

	_, err = s.AddMember(ctx, "u-bob", h.ID, "carol", "")
	assert.ErrorIs(t, err, common.ErrUnauthorized, "members cannot add members")

	_, err = s.AddMember(ctx, "u-carol", h.ID, "carol", "")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = s.AddMember(ctx, "u-alice", h.ID, "dave", "")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = s.AddMember(ctx, "u-alice", h.ID, "carol", "admin")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	members, err := s.ListMembers(ctx, "u-bob", h.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestHouseholdService_RequireMember(t *testing.T) {
	s, rm := newHouseholdService(t)
	ctx := context.Background()
	rm.households.members["h9"] = []models.Member{{HouseholdID: "h9", UserID: "u-bob", Role: models.RoleMember}}

	assert.NoError(t, s.RequireMember(ctx, "h9", "u-bob"))
	assert.ErrorIs(t, s.RequireMember(ctx, "h9", "u-alice"), common.ErrUnauthorized)
	assert.ErrorIs(t, s.RequireMember(ctx, "", "u-bob"), common.ErrInvalidArgument)

	_, err := s.ListMembers(ctx, "u-alice", "h9")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestHouseholdService_CreateRollsBack(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	rm := newFakeRepoManager()
	rm.households.addErr = errBoom

	_, err := NewHouseholdService(db, rm, logging.Nop()).Create(context.Background(), "u1", "x")
	assert.ErrorIs(t, err, errBoom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
