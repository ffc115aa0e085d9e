package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/famledger/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/models"
)

type HouseholdRemote interface {
	CreateHousehold(ctx context.Context, name string) (*models.Household, error)
	ListHouseholds(ctx context.Context) ([]models.Household, error)
	AddMember(ctx context.Context, householdID, userName, role string) (*models.Member, error)
	ListMembers(ctx context.Context, householdID string) ([]models.Member, error)
}

// HouseholdService manages households on the server and keeps the local
// membership cache the access gate reads.
type HouseholdService struct {
	remote HouseholdRemote
	db     *sql.DB
	repos  repomanager.RepositoryManager
	log    logging.Logger
}

func NewHouseholdService(remote HouseholdRemote, db *sql.DB, repos repomanager.RepositoryManager, log logging.Logger) *HouseholdService {
	return &HouseholdService{remote: remote, db: db, repos: repos, log: log.With("module", "households")}
}

// Create makes a new household owned by the caller and selects it.
func (s *HouseholdService) Create(ctx context.Context, name string) (*models.Household, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: household name is required", common.ErrInvalidArgument)
	}
	h, err := s.remote.CreateHousehold(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.Use(ctx, h.ID); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *HouseholdService) List(ctx context.Context) ([]models.Household, error) {
	return s.remote.ListHouseholds(ctx)
}

// Use selects the household later commands act on. The member list is
// refreshed when the server is reachable; offline, the cached list must
// already name the household.
func (s *HouseholdService) Use(ctx context.Context, householdID string) error {
	err := s.RefreshMembers(ctx, householdID)
	if errors.Is(err, common.ErrNetwork) {
		cached, lerr := s.repos.Members(s.db).List(ctx, householdID)
		if lerr != nil {
			return lerr
		}
		if len(cached) == 0 {
			return err
		}
		s.log.Warn(ctx, "server unavailable, using cached members", "household", householdID)
	} else if err != nil {
		return err
	}
	return s.repos.Metadata(s.db).Set(ctx, metadata.KeyHousehold, []byte(householdID))
}

// Current returns the selected household or common.ErrNotFound.
func (s *HouseholdService) Current(ctx context.Context) (string, error) {
	raw, err := s.repos.Metadata(s.db).Get(ctx, metadata.KeyHousehold)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: no household selected", common.ErrNotFound)
	}
	return string(raw), nil
}

func (s *HouseholdService) AddMember(ctx context.Context, householdID, userName, role string) (*models.Member, error) {
	if role == "" {
		role = models.RoleMember
	}
	m, err := s.remote.AddMember(ctx, householdID, userName, role)
	if err != nil {
		return nil, err
	}
	if err := s.RefreshMembers(ctx, householdID); err != nil {
		return nil, err
	}
	return m, nil
}

// Members returns the cached member list.
func (s *HouseholdService) Members(ctx context.Context, householdID string) ([]models.Member, error) {
	return s.repos.Members(s.db).List(ctx, householdID)
}

// RefreshMembers replaces the cached member list with the server's.
func (s *HouseholdService) RefreshMembers(ctx context.Context, householdID string) error {
	list, err := s.remote.ListMembers(ctx, householdID)
	if err != nil {
		return err
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Members(tx).Replace(ctx, householdID, list)
	})
}
