package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"finpilot-server/src/cache"

	"github.com/jackc/pgx/v5"
)

const Channel = "table_changes"

// ChangeEvent is the payload of a table_changes notification.
type ChangeEvent struct {
	Table  string `json:"table"`
	Op     string `json:"op"`
	UserID string `json:"user_id"`
}

// Listener turns Postgres change notifications into cache invalidations.
type Listener struct {
	dial        func(ctx context.Context) (*pgx.Conn, error)
	invalidator *cache.Invalidator
	retryDelay  time.Duration
}

func NewListener(dial func(ctx context.Context) (*pgx.Conn, error), inv *cache.Invalidator) *Listener {
	return &Listener{dial: dial, invalidator: inv, retryDelay: 2 * time.Second}
}

// Run listens until ctx is cancelled, reconnecting with backoff when the
// connection drops.
func (l *Listener) Run(ctx context.Context) {
	delay := l.retryDelay
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Error("Change listener stopped, reconnecting", "error", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if delay < time.Minute {
			delay *= 2
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return err
	}
	slog.Info("Listening for table changes", "channel", Channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.handle(n.Payload)
	}
}

func (l *Listener) handle(payload string) []string {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		slog.Warn("Ignoring malformed change notification", "payload", payload, "error", err)
		return nil
	}
	keys := l.invalidator.Tables(ev.UserID, ev.Table)
	slog.Debug("Table change", "table", ev.Table, "op", ev.Op, "user_id", ev.UserID, "keys", keys)
	return keys
}
