package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/meucuidador/care-api/internal/model"
)

// StreamNotifications opens the notification push stream. The returned
// channel is closed when ctx is done or the connection drops.
func (c *Client) StreamNotifications(ctx context.Context) (<-chan *model.Notification, error) {
	endpoint := c.baseURL + "/api/notifications/stream"
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = "ws://" + strings.TrimPrefix(endpoint, "http://")
	}

	header := http.Header{}
	if token := c.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("failed to open notification stream: %w", err)
	}

	out := make(chan *model.Notification)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()
	go func() {
		defer close(out)
		defer close(done)
		for {
			var n model.Notification
			if err := conn.ReadJSON(&n); err != nil {
				if ctx.Err() == nil {
					c.logger.Debug().Err(err).Msg("notification stream closed")
				}
				return
			}
			select {
			case out <- &n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
