package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/repomanager"
)

// MembershipChecker answers whether a user may act on a household.
type MembershipChecker interface {
	RequireMember(ctx context.Context, householdID, userID string) error
}

type HouseholdService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewHouseholdService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *HouseholdService {
	return &HouseholdService{db: db, repomanager: m, log: log.With("module", "households")}
}

// Create makes a household with the caller as its owner.
func (s *HouseholdService) Create(ctx context.Context, userID, name string) (*models.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: household name is required", common.ErrInvalidArgument)
	}

	h, err := dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Household, error) {
		repo := s.repomanager.Households(tx)
		h, err := repo.Create(ctx, name, userID)
		if err != nil {
			return nil, err
		}
		owner := models.Member{HouseholdID: h.ID, UserID: userID, Role: models.RoleOwner}
		if err := repo.AddMember(ctx, owner); err != nil {
			return nil, err
		}
		return h, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error creating household: %w", err)
	}

	s.log.Info(ctx, "household created", "household_id", h.ID, "user_id", userID)
	return h, nil
}

func (s *HouseholdService) List(ctx context.Context, userID string) ([]models.Household, error) {
	return s.repomanager.Households(s.db).ListForUser(ctx, userID)
}

// AddMember adds userName to the household. Only owners may add members;
// role defaults to member.
func (s *HouseholdService) AddMember(ctx context.Context, actorID, householdID, userName, role string) (*models.Member, error) {
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleMember && role != models.RoleOwner {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrInvalidArgument, role)
	}

	actorRole, err := s.role(ctx, householdID, actorID)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleOwner {
		return nil, fmt.Errorf("%w: only owners can add members", common.ErrUnauthorized)
	}

	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", userName, err)
	}

	m := models.Member{HouseholdID: householdID, UserID: user.ID, UserName: user.UserName, Role: role}
	if err := s.repomanager.Households(s.db).AddMember(ctx, m); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "member added", "household_id", householdID, "user_id", user.ID, "role", role)
	return &m, nil
}

func (s *HouseholdService) ListMembers(ctx context.Context, actorID, householdID string) ([]models.Member, error) {
	if err := s.RequireMember(ctx, householdID, actorID); err != nil {
		return nil, err
	}
	return s.repomanager.Households(s.db).Members(ctx, householdID)
}

// RequireMember returns common.ErrUnauthorized unless userID belongs to
// the household.
func (s *HouseholdService) RequireMember(ctx context.Context, householdID, userID string) error {
	_, err := s.role(ctx, householdID, userID)
	return err
}

func (s *HouseholdService) role(ctx context.Context, householdID, userID string) (string, error) {
	if householdID == "" || userID == "" {
		return "", fmt.Errorf("%w: household and user are required", common.ErrInvalidArgument)
	}
	role, err := s.repomanager.Households(s.db).Role(ctx, householdID, userID)
	if errors.Is(err, common.ErrNotFound) {
		return "", fmt.Errorf("%w: not a member of household %s", common.ErrUnauthorized, householdID)
	}
	return role, err
}
