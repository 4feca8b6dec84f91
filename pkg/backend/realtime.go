package backend

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/kaizenisitmax-pixel/voxi/pkg/event"
)

// Realtime subscribes to the hosted change feed for one workspace and emits
// a BackendChangedEvent on every notification. The feed is notification-only;
// listeners refetch through the store client.
type Realtime struct {
	url         string
	anonKey     string
	workspaceID string
	logger      *slog.Logger
	dialer      *websocket.Dialer
}

// NewRealtime creates a realtime subscriber. url is the websocket endpoint
// of the backend (wss://.../realtime/v1/websocket).
func NewRealtime(url, anonKey, workspaceID string, logger *slog.Logger) *Realtime {
	return &Realtime{
		url:         url,
		anonKey:     anonKey,
		workspaceID: workspaceID,
		logger:      logger,
		dialer:      websocket.DefaultDialer,
	}
}

// Run connects and listens until ctx is cancelled, reconnecting with capped
// backoff on any connection failure.
func (r *Realtime) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		err := r.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			r.logger.Warn("Realtime connection lost, reconnecting", "error", err, "backoff", backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (r *Realtime) listenOnce(ctx context.Context) error {
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the socket when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	sub := "{}"
	sub, _ = sjson.Set(sub, "event", "subscribe")
	sub, _ = sjson.Set(sub, "topic", "workspace:"+r.workspaceID)
	sub, _ = sjson.Set(sub, "apikey", r.anonKey)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
		return err
	}

	r.logger.Info("Realtime subscribed", "workspace", r.workspaceID)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		table := gjson.GetBytes(msg, "table").String()
		event.Emit(event.BackendChangedEvent{Table: table})
	}
}
