package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/records"
)

const (
	DefaultPullLimit = 500
	MaxPullLimit     = 1000
)

// Publisher receives every accepted change for fan-out to live
// subscribers. Publish must not block.
type Publisher interface {
	Publish(change models.RemoteChange)
}

// RecordService is the authoritative side of the compare-and-set write
// protocol.
type RecordService struct {
	store     records.Store
	members   MembershipChecker
	publisher Publisher
	log       logging.Logger
	now       func() time.Time
}

func NewRecordService(store records.Store, members MembershipChecker, publisher Publisher, log logging.Logger) *RecordService {
	return &RecordService{
		store:     store,
		members:   members,
		publisher: publisher,
		log:       log.With("module", "records"),
		now:       time.Now,
	}
}

func validateWrite(req *models.WriteRequest) error {
	switch {
	case req.MutationID == "":
		return fmt.Errorf("%w: mutation id is required", common.ErrInvalidArgument)
	case !common.ValidEntityType(req.EntityType):
		return fmt.Errorf("%w: unknown entity type %q", common.ErrInvalidArgument, req.EntityType)
	case req.EntityID == "" || req.HouseholdID == "":
		return fmt.Errorf("%w: entity and household are required", common.ErrInvalidArgument)
	case !req.Operation.Valid():
		return fmt.Errorf("%w: unknown operation %q", common.ErrInvalidArgument, req.Operation)
	case req.Operation == models.OpCreate && req.ExpectedVersion != 0:
		return fmt.Errorf("%w: create must expect version 0", common.ErrInvalidArgument)
	case req.Operation != models.OpCreate && req.ExpectedVersion < 1:
		return fmt.Errorf("%w: %s needs the version it was made against", common.ErrInvalidArgument, req.Operation)
	case req.Operation != models.OpDelete && !json.Valid(req.Payload):
		return fmt.Errorf("%w: payload is not valid JSON", common.ErrInvalidArgument)
	}
	return nil
}

// ApplyWrite stores the mutation at ExpectedVersion+1 if the stored
// version still equals ExpectedVersion. Re-sending a mutation that was
// already applied returns its result instead of a conflict.
func (s *RecordService) ApplyWrite(ctx context.Context, actorID string, req *models.WriteRequest) (*models.WriteResult, error) {
	if err := validateWrite(req); err != nil {
		return nil, err
	}
	if err := s.members.RequireMember(ctx, req.HouseholdID, actorID); err != nil {
		return nil, err
	}

	prev, err := s.store.Current(ctx, req.EntityType, req.EntityID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		prev = nil
	case err != nil:
		return nil, err
	}

	if prev != nil {
		if prev.HouseholdID != req.HouseholdID {
			return nil, fmt.Errorf("%w: record belongs to another household", common.ErrUnauthorized)
		}
		if prev.Version != req.ExpectedVersion {
			return s.staleWrite(ctx, req, prev)
		}
	} else if req.ExpectedVersion != 0 {
		return nil, fmt.Errorf("%w: %s/%s does not exist, expected version %d",
			common.ErrVersionConflict, req.EntityType, req.EntityID, req.ExpectedVersion)
	}

	change := &models.RemoteChange{MutationID: req.MutationID, Record: s.nextRecord(actorID, req, prev)}
	if err := s.store.Apply(ctx, change, req.ExpectedVersion); err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			if cur, cerr := s.store.Current(ctx, req.EntityType, req.EntityID); cerr == nil {
				return s.staleWrite(ctx, req, cur)
			}
		}
		return nil, err
	}

	s.log.Debug(ctx, "write accepted", "entity", req.EntityID, "version", change.Record.Version, "seq", change.Seq)
	if s.publisher != nil {
		s.publisher.Publish(*change)
	}
	return &models.WriteResult{Accepted: true, NewVersion: change.Record.Version, Seq: change.Seq}, nil
}

func (s *RecordService) staleWrite(ctx context.Context, req *models.WriteRequest, cur *models.RemoteRecord) (*models.WriteResult, error) {
	if cur.MutationID == req.MutationID {
		s.log.Debug(ctx, "duplicate write", "mutation_id", req.MutationID)
		return &models.WriteResult{Accepted: true, NewVersion: cur.Version}, nil
	}
	return nil, fmt.Errorf("%w: %s/%s is at version %d, expected %d",
		common.ErrVersionConflict, req.EntityType, req.EntityID, cur.Version, req.ExpectedVersion)
}

func (s *RecordService) nextRecord(actorID string, req *models.WriteRequest, prev *models.RemoteRecord) models.Record {
	now := s.now().UTC()

	var next models.Record
	if prev != nil {
		next = *prev.Record.Clone()
	} else {
		next = models.Record{
			ID:          req.EntityID,
			EntityType:  req.EntityType,
			HouseholdID: req.HouseholdID,
			CreatedAt:   now,
			CreatedBy:   actorID,
		}
	}

	next.Version = req.ExpectedVersion + 1
	next.UpdatedAt = now
	next.UpdatedBy = actorID
	if req.Operation == models.OpDelete {
		next.DeletedAt = &now
		if len(req.Payload) > 0 {
			next.Payload = req.Payload
		}
	} else {
		next.DeletedAt = nil
		next.Payload = req.Payload
	}
	return next
}

func (s *RecordService) current(ctx context.Context, actorID, entityType, id string) (*models.RemoteRecord, error) {
	rec, err := s.store.Current(ctx, entityType, id)
	if err != nil {
		return nil, err
	}
	if err := s.members.RequireMember(ctx, rec.HouseholdID, actorID); err != nil {
		return nil, err
	}
	return rec, nil
}

// FetchVersion returns the stored version, 0 when the record is absent.
func (s *RecordService) FetchVersion(ctx context.Context, actorID, entityType, id string) (int64, error) {
	rec, err := s.current(ctx, actorID, entityType, id)
	if errors.Is(err, common.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Version, nil
}

func (s *RecordService) FetchRecord(ctx context.Context, actorID, entityType, id string) (*models.RemoteRecord, error) {
	return s.current(ctx, actorID, entityType, id)
}

// Pull returns up to limit changes after since and the cursor to continue
// from. A full page ends at its last change; otherwise the cursor is the
// household's latest sequence.
func (s *RecordService) Pull(ctx context.Context, actorID, householdID string, since int64, limit int) ([]models.RemoteChange, int64, error) {
	if since < 0 {
		return nil, 0, fmt.Errorf("%w: negative sequence", common.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = DefaultPullLimit
	}
	limit = min(limit, MaxPullLimit)

	if err := s.members.RequireMember(ctx, householdID, actorID); err != nil {
		return nil, 0, err
	}

	changes, latest, err := s.store.Changes(ctx, householdID, since, limit)
	if err != nil {
		return nil, 0, err
	}

	cursor := max(latest, since)
	if n := len(changes); n > 0 {
		last := changes[n-1].Seq
		if n == limit {
			cursor = last
		} else {
			cursor = max(cursor, last)
		}
	}
	return changes, cursor, nil
}
