package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PlanChangesChannel is the NOTIFY channel written by the plans trigger
const PlanChangesChannel = "plan_changes"

const (
	listenerMinReconnect = 1 * time.Second
	listenerMaxReconnect = 30 * time.Second
	listenerPingInterval = 90 * time.Second
)

// ListenPlanChanges subscribes to the plan change channel on a dedicated
// connection. The returned channel is closed once ctx is cancelled. A
// reconnect is reported as an update with a nil plan id so consumers resync.
func ListenPlanChanges(ctx context.Context, databaseURL string, logger *zap.Logger) (<-chan PlanChange, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	listener := pq.NewListener(databaseURL, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("plan_listener_event", zap.Int("event", int(ev)), zap.Error(err))
			}
		})
	if err := listener.Listen(PlanChangesChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", PlanChangesChannel, err)
	}

	out := make(chan PlanChange, 16)
	go func() {
		defer close(out)
		defer func() { _ = listener.Close() }()

		ticker := time.NewTicker(listenerPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				change, ok := decodeNotification(n, logger)
				if !ok {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			case <-ticker.C:
				if err := listener.Ping(); err != nil {
					logger.Warn("plan_listener_ping_failed", zap.Error(err))
				}
			}
		}
	}()
	return out, nil
}

func decodeNotification(n *pq.Notification, logger *zap.Logger) (PlanChange, bool) {
	// nil after a reconnect; notifications may have been missed
	if n == nil {
		return PlanChange{Op: ChangeUpdate}, true
	}
	var change PlanChange
	if err := json.Unmarshal([]byte(n.Extra), &change); err != nil {
		logger.Warn("plan_notification_decode_failed",
			zap.String("payload", n.Extra),
			zap.Error(err),
		)
		return PlanChange{}, false
	}
	return change, true
}
