package app

import (
	"context"
	"time"

	"rondo/internal/eventbus"
	"rondo/internal/notifier"
	"rondo/internal/observability/metrics"
	logx "rondo/pkg/logx"
)

// bridgeLoop feeds bus events into the metrics registry and keeps the gauges
// fresh. It also debug-logs every event, which is the cheapest way to trace
// a live announcement end to end.
func (a *App) bridgeLoop(ctx context.Context, events <-chan eventbus.Event) {
	const maxTracked = 4096

	// Queued-at timestamps per announcement key, for the enqueue-to-send
	// latency histogram. Entries are dropped on terminal events and swept
	// by age so a lost event can't pin memory.
	queued := make(map[string]time.Time)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetQueueDepth(a.notif.QueueLen())
			metrics.SetBusDropped(a.bus.Dropped())
			cutoff := time.Now().Add(-10 * time.Minute)
			for k, at := range queued {
				if at.Before(cutoff) {
					delete(queued, k)
				}
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			// Keep this debug-level to avoid noise on busy weeks.
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))

			switch e.Type {
			case "announce.queued":
				if ev, ok := e.Data.(notifier.AnnounceEvent); ok && ev.Key != "" && len(queued) < maxTracked {
					queued[ev.Key] = eventTime(ev.At, e.Time)
				}
			case "announce.sent":
				metrics.RecordAnnouncementSent()
				if ev, ok := e.Data.(notifier.AnnounceEvent); ok {
					if t0, found := queued[ev.Key]; found {
						metrics.ObserveAnnounceLatency(eventTime(ev.At, e.Time).Sub(t0).Seconds())
						delete(queued, ev.Key)
					}
				}
			case "announce.failed":
				metrics.RecordAnnouncementFailed()
				if ev, ok := e.Data.(notifier.AnnounceEvent); ok {
					delete(queued, ev.Key)
				}
			case "announce.deduped":
				metrics.RecordAnnouncementDeduped()
			case "announce.dropped":
				metrics.RecordAnnouncementDropped()
				if ev, ok := e.Data.(notifier.AnnounceEvent); ok {
					delete(queued, ev.Key)
				}
			case "announce.week":
				metrics.RecordWeekAnnounced()
			case "run.generated":
				metrics.RecordRunGenerated()
			case "config.reloaded":
				metrics.RecordConfigReload()
			}
		}
	}
}

func eventTime(at, fallback time.Time) time.Time {
	if !at.IsZero() {
		return at
	}
	return fallback
}
