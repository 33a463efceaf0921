package ledger

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/padlight/internal/eventbus"
)

var eventSources = map[eventbus.EventType]string{
	eventbus.EventTypeConnected:         "bulb",
	eventbus.EventTypeConnectFailed:     "bulb",
	eventbus.EventTypeControllerAdded:   "controller",
	eventbus.EventTypeControllerRemoved: "controller",
	eventbus.EventTypeLoopStarted:       "loop",
	eventbus.EventTypeLoopStopped:       "loop",
}

// Record subscribes the ledger to every bus event. sessionID supplies the
// current bulb connection id for events that do not carry one.
func Record(bus *eventbus.Bus, l *Ledger, sessionID func() string) {
	bus.Subscribe(func(ev eventbus.Event) {
		id, _ := ev.Data["session_id"].(string)
		if id == "" && sessionID != nil {
			id = sessionID()
		}
		if err := l.Append(ev.Type, id, eventSources[ev.Type], ev.Data); err != nil {
			log.Error().Err(err).Str("event_type", string(ev.Type)).Msg("Failed to record event in ledger")
		}
	}, eventbus.AllEventTypes...)
}

// RunCleanup periodically removes entries older than retention until ctx is
// cancelled.
func RunCleanup(ctx context.Context, l *Ledger, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := l.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}
