package status

import (
	"sync/atomic"

	"github.com/dmitrijs2005/famledger/internal/models"
)

type counters struct {
	synced   atomic.Uint64
	detected atomic.Uint64
	resolved atomic.Uint64
	failures atomic.Uint64
}

func (c *counters) snapshot() models.SyncMetrics {
	return models.SyncMetrics{
		MutationsSynced:   c.synced.Load(),
		ConflictsDetected: c.detected.Load(),
		ConflictsResolved: c.resolved.Load(),
		SyncFailures:      c.failures.Load(),
	}
}
