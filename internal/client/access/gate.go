// Package access decides whether an actor may mutate a household record.
package access

import (
	"context"

	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/models"
)

type MembershipLookup interface {
	IsMember(ctx context.Context, householdID, userID string) (bool, error)
}

// Gate authorizes mutations by household membership. It fails closed: a
// lookup error counts as a denial.
type Gate struct {
	members MembershipLookup
	log     logging.Logger
}

func NewGate(members MembershipLookup, log logging.Logger) *Gate {
	return &Gate{members: members, log: log.With("module", "access_gate")}
}

// WithLookup returns a gate reading membership through members, typically a
// repository bound to the caller's transaction.
func (g *Gate) WithLookup(members MembershipLookup) *Gate {
	return &Gate{members: members, log: g.log}
}

func (g *Gate) Authorize(ctx context.Context, actorID string, r *models.Record) bool {
	if actorID == "" || r == nil || r.HouseholdID == "" {
		return false
	}

	ok, err := g.members.IsMember(ctx, r.HouseholdID, actorID)
	if err != nil {
		g.log.Warn(ctx, "membership lookup failed, denying", "actor", actorID, "household", r.HouseholdID, "error", err)
		return false
	}
	if !ok {
		g.log.Info(ctx, "actor is not a household member", "actor", actorID, "household", r.HouseholdID, "record", r.ID)
	}
	return ok
}
