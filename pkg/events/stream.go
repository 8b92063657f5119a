package events

import (
	"context"
	"time"

	"github.com/delverhq/delver/pkg/models"
)

// Stream returns a channel of serialized SSE frames for one session:
// buffered events with seq > sinceSeq first, then live events as they
// arrive. A keepalive comment frame is sent after every idle interval.
// The channel closes when a done event has been delivered, the timeout
// elapses, or ctx is cancelled; the internal subscription is removed on
// every exit path.
func (b *Bus) Stream(ctx context.Context, sessionID string, timeout time.Duration, sinceSeq uint64) <-chan string {
	frames := make(chan string)

	// Live events land here while the replay drains, so nothing emitted
	// between snapshot and subscribe is lost. Replayed seqs are filtered
	// below to avoid duplicates at the handoff.
	live := make(chan models.Event, BufferCapacity)
	subID := b.SubscribeAsync(sessionID, func(ev models.Event) error {
		select {
		case live <- ev:
		default:
			// Consumer is not draining; the event stays in the ring
			// buffer and the client can reconnect with Last-Event-ID.
		}
		return nil
	})

	go func() {
		defer close(frames)
		defer b.Unsubscribe(sessionID, subID)

		deadline := time.NewTimer(timeout)
		defer deadline.Stop()
		keepalive := time.NewTimer(b.keepaliveInterval)
		defer keepalive.Stop()

		send := func(ev models.Event) bool {
			select {
			case frames <- Frame(ev):
			case <-ctx.Done():
				return false
			case <-deadline.C:
				return false
			}
			if !keepalive.Stop() {
				select {
				case <-keepalive.C:
				default:
				}
			}
			keepalive.Reset(b.keepaliveInterval)
			return true
		}

		lastSent := sinceSeq
		for _, ev := range b.Buffered(sessionID, sinceSeq) {
			if !send(ev) {
				return
			}
			lastSent = ev.Seq
			if ev.Type == models.EventDone {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-deadline.C:
				return
			case <-keepalive.C:
				select {
				case frames <- Keepalive:
					keepalive.Reset(b.keepaliveInterval)
				case <-ctx.Done():
					return
				case <-deadline.C:
					return
				}
			case ev := <-live:
				if ev.Seq <= lastSent {
					continue
				}
				if !send(ev) {
					return
				}
				lastSent = ev.Seq
				if ev.Type == models.EventDone {
					return
				}
			}
		}
	}()

	return frames
}
