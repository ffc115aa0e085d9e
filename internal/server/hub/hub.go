// Package hub is the server's live change feed. Members of a household
// connect to /ws?household=<id> with a bearer access token and receive
// every accepted change of that household as a JSON models.RemoteChange.
//
// Delivery is best effort: a subscriber that falls behind is disconnected
// and catches up with Pull after reconnecting.
package hub

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/dmitrijs2005/famledger/internal/server/auth"
)

const (
	sendBuffer     = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	shutdownPeriod = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Members answers whether a user may follow a household.
type Members interface {
	RequireMember(ctx context.Context, householdID, userID string) error
}

type subscriber struct {
	conn      *websocket.Conn
	household string
	userID    string
	send      chan models.RemoteChange
	done      chan struct{}
	once      sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

type Hub struct {
	secret  []byte
	members Members
	log     logging.Logger

	mu    sync.RWMutex
	rooms map[string]map[*subscriber]struct{}
}

func New(secret []byte, members Members, log logging.Logger) *Hub {
	return &Hub{
		secret:  secret,
		members: members,
		log:     log.With("module", "hub"),
		rooms:   make(map[string]map[*subscriber]struct{}),
	}
}

func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	return mux
}

// Subscribers returns the number of open connections for the household.
func (h *Hub) Subscribers(householdID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[householdID])
}

func (h *Hub) join(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[s.household]
	if !ok {
		room = make(map[*subscriber]struct{})
		h.rooms[s.household] = room
	}
	room[s] = struct{}{}
}

func (h *Hub) leave(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[s.household]
	delete(room, s)
	if len(room) == 0 {
		delete(h.rooms, s.household)
	}
}

// Publish hands change to every subscriber of its household without
// blocking.
func (h *Hub) Publish(change models.RemoteChange) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[change.Record.HouseholdID] {
		select {
		case s.send <- change:
		default:
			h.log.Warn(context.Background(), "dropping slow subscriber", "household_id", s.household, "user_id", s.userID)
			s.stop()
		}
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	household := r.URL.Query().Get("household")
	if household == "" {
		http.Error(w, "household is required", http.StatusBadRequest)
		return
	}

	userID, err := auth.GetUserIDFromToken(auth.BearerToken(r), h.secret)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if err := h.members.RequireMember(ctx, household, userID); err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			http.Error(w, "not a member", http.StatusForbidden)
			return
		}
		h.log.Error(ctx, "membership check failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(ctx, "websocket upgrade failed", "error", err)
		return
	}

	s := &subscriber{
		conn:      conn,
		household: household,
		userID:    userID,
		send:      make(chan models.RemoteChange, sendBuffer),
		done:      make(chan struct{}),
	}
	h.join(s)
	h.log.Debug(ctx, "subscriber joined", "household_id", household, "user_id", userID)

	go h.writePump(s)
	h.readPump(s)

	h.leave(s)
	s.stop()
	h.log.Debug(ctx, "subscriber left", "household_id", household, "user_id", userID)
}

// readPump only consumes control frames; the feed is one-way.
func (h *Hub) readPump(s *subscriber) {
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case change := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(change); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, room := range h.rooms {
		for s := range room {
			s.stop()
		}
	}
}

// Run serves the feed on addr until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.log.Info(ctx, "change feed listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	h.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	h.log.Info(ctx, "change feed stopped")
	return nil
}
