// Package realtime keeps a household subscription open: it feeds remote
// changes to the sync engine and tracks connectivity with a heartbeat.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/models"
	"golang.org/x/sync/errgroup"
)

type Remote interface {
	Subscribe(ctx context.Context, householdID string) (<-chan models.RemoteChange, error)
	Ping(ctx context.Context) error
}

type Applier interface {
	ApplyRemoteChange(ctx context.Context, ch models.RemoteChange) error
}

type Connectivity interface {
	SetOnline(ctx context.Context, online bool)
}

const (
	DefaultInterval = 5 * time.Second
	pingTimeout     = 3 * time.Second

	DefaultMinRetry = 500 * time.Millisecond
	DefaultMaxRetry = 30 * time.Second
)

type Session struct {
	remote   Remote
	applier  Applier
	status   Connectivity
	interval time.Duration
	minRetry time.Duration
	maxRetry time.Duration
	catchUp  func(ctx context.Context)
	log      logging.Logger

	mu          sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	userID      string
	householdID string
}

type Option func(*Session)

// WithInterval sets how often the heartbeat pings the server.
func WithInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRetry bounds the delay before resubscribing after a failed or dropped
// subscription. The delay doubles from min up to max and starts over once a
// subscription delivers a change.
func WithRetry(lo, hi time.Duration) Option {
	return func(s *Session) {
		if lo > 0 && hi >= lo {
			s.minRetry, s.maxRetry = lo, hi
		}
	}
}

// WithCatchUp runs fn each time the subscription is (re)established, to
// pick up changes missed while disconnected.
func WithCatchUp(fn func(ctx context.Context)) Option {
	return func(s *Session) { s.catchUp = fn }
}

func NewSession(remote Remote, applier Applier, status Connectivity, log logging.Logger, opts ...Option) *Session {
	s := &Session{
		remote:   remote,
		applier:  applier,
		status:   status,
		interval: DefaultInterval,
		minRetry: DefaultMinRetry,
		maxRetry: DefaultMaxRetry,
		log:      log.With("module", "realtime"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Connect starts the subscription for householdID in the background.
// Connecting again with the same identity is a no-op; a different identity
// replaces the running subscription.
func (s *Session) Connect(ctx context.Context, userID, householdID string) error {
	if userID == "" || householdID == "" {
		return fmt.Errorf("%w: user and household are required", common.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		if s.userID == userID && s.householdID == householdID {
			return nil
		}
		s.stopLocked(ctx)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	s.userID, s.householdID = userID, householdID

	g, gctx := errgroup.WithContext(runCtx)
	wake := make(chan struct{}, 1)
	g.Go(func() error { return s.heartbeat(gctx, wake) })
	g.Go(func() error { return s.pump(gctx, householdID, wake) })

	done := s.done
	go func() {
		_ = g.Wait()
		close(done)
	}()

	s.log.Info(ctx, "realtime session started", "user", userID, "household", householdID)
	return nil
}

// Disconnect stops the subscription and waits for it to wind down. It is
// safe to call when not connected.
func (s *Session) Disconnect(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Session) stopLocked(ctx context.Context) {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
	s.status.SetOnline(ctx, false)
	s.log.Info(ctx, "realtime session stopped", "household", s.householdID)
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Session) ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.remote.Ping(ctx) == nil
}

// heartbeat pings on every tick and wakes the pump when the server comes back.
func (s *Session) heartbeat(ctx context.Context, wake chan<- struct{}) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var up bool
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ok := s.ping(ctx)
			if ctx.Err() != nil {
				return nil
			}
			s.status.SetOnline(ctx, ok)
			if ok && !up {
				select {
				case wake <- struct{}{}:
				default:
				}
			}
			up = ok
		}
	}
}

// backoff waits d, or less if the heartbeat sees the server come back. It
// reports false once ctx ends.
func backoff(ctx context.Context, wake <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-wake:
	case <-t.C:
	}
	return true
}

func (s *Session) pump(ctx context.Context, householdID string, wake <-chan struct{}) error {
	delay := s.minRetry
	next := func() time.Duration {
		d := delay
		delay = min(delay*2, s.maxRetry)
		return d
	}

	for {
		changes, err := s.remote.Subscribe(ctx, householdID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Debug(ctx, "subscribe failed", "error", err)
			s.status.SetOnline(ctx, false)
			if !backoff(ctx, wake, next()) {
				return nil
			}
			continue
		}

		s.status.SetOnline(ctx, true)
		if s.catchUp != nil {
			s.catchUp(ctx)
		}

		for ch := range changes {
			delay = s.minRetry
			if err := s.applier.ApplyRemoteChange(ctx, ch); err != nil {
				s.log.Warn(ctx, "remote change not applied", "entity", ch.Record.ID, "seq", ch.Seq, "error", err)
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		s.log.Warn(ctx, "subscription closed")
		s.status.SetOnline(ctx, false)
		if !backoff(ctx, wake, next()) {
			return nil
		}
	}
}
