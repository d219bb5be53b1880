package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/certen/ledger-kernel/internal/store"
)

// minReconnectInterval/maxReconnectInterval bound pq.Listener's own
// backoff when the underlying connection drops.
const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
)

// ListenAndServe opens a dedicated LISTEN connection on dsn and
// forwards every notification on store.NotifyChannel to h.Dispatch
// until ctx is cancelled. It blocks; call it from its own goroutine.
func (h *Hub) ListenAndServe(ctx context.Context, dsn string) error {
	problem := make(chan error, 1)
	listener := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		if ev == pq.ListenerEventConnectionAttemptFailed && err != nil {
			select {
			case problem <- err:
			default:
			}
		}
	})
	defer listener.Close()

	if err := listener.Listen(store.NotifyChannel); err != nil {
		return fmt.Errorf("fanout: listen %s: %w", store.NotifyChannel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-problem:
			h.logger.Printf("listener connection attempt failed: %v", err)
		case n := <-listener.Notify:
			if n == nil {
				// Connection was lost and has been re-established; pq
				// re-subscribes automatically, but notifications sent
				// while it was down may be lost and pq cannot say which,
				// so a reconnecting subscriber must rely on its own
				// replay-from-sequence to close any gap.
				continue
			}
			h.handleNotification(ctx, n.Extra)
		case <-time.After(90 * time.Second):
			if err := listener.Ping(); err != nil {
				h.logger.Printf("listener ping failed: %v", err)
			}
		}
	}
}

func (h *Hub) handleNotification(ctx context.Context, payload string) {
	var ref store.NotifyRef
	if err := json.Unmarshal([]byte(payload), &ref); err != nil {
		h.logger.Printf("malformed notify payload: %v", err)
		return
	}
	entry, err := h.source.FetchEntry(ctx, ref.ContainerID, ref.Sequence)
	if err != nil {
		h.logger.Printf("fetch notified entry %s/%d: %v", ref.ContainerID, ref.Sequence, err)
		return
	}
	h.Dispatch(entry)
}
