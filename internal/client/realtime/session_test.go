package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/dmitrijs2005/famledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingApplier struct {
	mu      sync.Mutex
	changes []models.RemoteChange
}

func (r *recordingApplier) ApplyRemoteChange(_ context.Context, ch models.RemoteChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, ch)
	return nil
}

func (r *recordingApplier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

type flag struct{ online atomic.Bool }

func (f *flag) SetOnline(_ context.Context, online bool) { f.online.Store(online) }

func write(t *testing.T, remote *testutil.MemoryRemote, id string) {
	t.Helper()
	_, err := remote.ApplyWrite(context.Background(), models.WriteRequest{
		MutationID: models.NewID(), EntityType: common.EntityExpense, EntityID: id,
		HouseholdID: "h1", Payload: []byte(`{"amount":1}`), Operation: models.OpCreate, ActorID: "bob",
	})
	require.NoError(t, err)
}

const wait, tick = 2 * time.Second, 5 * time.Millisecond

func TestSession_DeliversChanges(t *testing.T) {
	remote := testutil.NewMemoryRemote()
	applier := &recordingApplier{}
	st := &flag{}
	var caughtUp atomic.Int32

	s := NewSession(remote, applier, st, logging.Nop(),
		WithInterval(10*time.Millisecond),
		WithCatchUp(func(context.Context) { caughtUp.Add(1) }))

	require.NoError(t, s.Connect(context.Background(), "alice", "h1"))
	defer s.Disconnect(context.Background())

	require.Eventually(t, st.online.Load, wait, tick)
	require.Eventually(t, func() bool { return caughtUp.Load() == 1 }, wait, tick)

	write(t, remote, "e1")
	require.Eventually(t, func() bool { return applier.count() == 1 }, wait, tick)
}

func TestSession_ConnectDisconnectIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewSession(testutil.NewMemoryRemote(), &recordingApplier{}, &flag{}, logging.Nop())

	s.Disconnect(ctx)
	assert.False(t, s.Connected())

	require.NoError(t, s.Connect(ctx, "alice", "h1"))
	require.NoError(t, s.Connect(ctx, "alice", "h1"))
	assert.True(t, s.Connected())

	require.NoError(t, s.Connect(ctx, "alice", "h2"))
	assert.True(t, s.Connected())

	s.Disconnect(ctx)
	s.Disconnect(ctx)
	assert.False(t, s.Connected())
}

func TestSession_ConnectValidates(t *testing.T) {
	s := NewSession(testutil.NewMemoryRemote(), &recordingApplier{}, &flag{}, logging.Nop())
	assert.ErrorIs(t, s.Connect(context.Background(), "", "h1"), common.ErrInvalidArgument)
	assert.ErrorIs(t, s.Connect(context.Background(), "alice", ""), common.ErrInvalidArgument)
}

func TestSession_ReconnectsAfterOutage(t *testing.T) {
	remote := testutil.NewMemoryRemote()
	applier := &recordingApplier{}
	st := &flag{}

	s := NewSession(remote, applier, st, logging.Nop(), WithInterval(10*time.Millisecond))
	require.NoError(t, s.Connect(context.Background(), "alice", "h1"))
	defer s.Disconnect(context.Background())
	require.Eventually(t, st.online.Load, wait, tick)

	remote.SetOffline(true)
	require.Eventually(t, func() bool { return !st.online.Load() }, wait, tick)

	remote.SetOffline(false)
	require.Eventually(t, st.online.Load, wait, tick)

	// the subscription is re-established shortly after the heartbeat succeeds
	require.Eventually(t, func() bool {
		write(t, remote, models.NewID())
		return applier.count() > 0
	}, wait, 20*time.Millisecond)
}

func TestSession_DisconnectReportsOffline(t *testing.T) {
	st := &flag{}
	s := NewSession(testutil.NewMemoryRemote(), &recordingApplier{}, st, logging.Nop())
	require.NoError(t, s.Connect(context.Background(), "alice", "h1"))
	require.Eventually(t, st.online.Load, wait, tick)

	s.Disconnect(context.Background())
	assert.False(t, st.online.Load())
}

// droppingRemote accepts every subscription and hangs up at once.
type droppingRemote struct {
	subscribes atomic.Int32
}

func (d *droppingRemote) Subscribe(context.Context, string) (<-chan models.RemoteChange, error) {
	d.subscribes.Add(1)
	ch := make(chan models.RemoteChange)
	close(ch)
	return ch, nil
}

func (d *droppingRemote) Ping(context.Context) error { return nil }

func TestSession_BacksOffWhenSubscriptionDrops(t *testing.T) {
	remote := &droppingRemote{}
	s := NewSession(remote, &recordingApplier{}, &flag{}, logging.Nop(),
		WithInterval(10*time.Millisecond),
		WithRetry(20*time.Millisecond, 80*time.Millisecond))

	require.NoError(t, s.Connect(context.Background(), "alice", "h1"))
	time.Sleep(300 * time.Millisecond)
	s.Disconnect(context.Background())

	// 0, 20, 60, 140, 220, 300ms plus one early retry when the first ping lands
	n := remote.subscribes.Load()
	assert.GreaterOrEqual(t, n, int32(3))
	assert.LessOrEqual(t, n, int32(10))
}
