package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/gorilla/websocket"
)

var dialer = websocket.DefaultDialer

func (s *GRPCClient) feedURL(householdID string) (string, error) {
	if s.realtimeURL == "" {
		return "", fmt.Errorf("%w: realtime url is not configured", common.ErrInvalidArgument)
	}
	u, err := url.Parse(strings.TrimRight(s.realtimeURL, "/") + "/ws")
	if err != nil {
		return "", fmt.Errorf("%w: realtime url: %v", common.ErrInvalidArgument, err)
	}
	q := u.Query()
	q.Set("household", householdID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *GRPCClient) dialFeed(ctx context.Context, target string) (*websocket.Conn, *http.Response, error) {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+s.accessToken())
	return dialer.DialContext(ctx, target, h)
}

// Subscribe opens the household change feed. The channel closes when ctx
// ends or the connection drops.
func (s *GRPCClient) Subscribe(ctx context.Context, householdID string) (<-chan models.RemoteChange, error) {
	target, err := s.feedURL(householdID)
	if err != nil {
		return nil, err
	}

	conn, resp, err := s.dialFeed(ctx, target)
	if err != nil && resp != nil && resp.StatusCode == http.StatusUnauthorized {
		if rerr := s.refresh(ctx); rerr == nil {
			conn, resp, err = s.dialFeed(ctx, target)
		}
	}
	if err != nil {
		switch {
		case resp != nil && resp.StatusCode == http.StatusUnauthorized:
			return nil, fmt.Errorf("%w: change feed refused the token", common.ErrUnauthorized)
		case resp != nil && resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: not a member of %s", common.ErrUnauthorized, householdID)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}

	out := make(chan models.RemoteChange, 64)
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadlineSoon())
		case <-done:
		}
		_ = conn.Close()
	}()

	go func() {
		defer close(out)
		defer close(done)
		for {
			var ch models.RemoteChange
			if err := conn.ReadJSON(&ch); err != nil {
				return
			}
			select {
			case out <- ch:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func deadlineSoon() time.Time {
	return time.Now().Add(time.Second)
}
