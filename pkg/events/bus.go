// Package events implements the per-session research event stream: ordered,
// buffered, multi-subscriber fan-out with sequence numbers, bounded replay,
// and SSE serialization. Emission is safe from any goroutine; a slow or
// failing listener never blocks the pipeline.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/delverhq/delver/pkg/models"
)

const (
	// BufferCapacity is the per-session ring buffer size. The oldest
	// events are evicted first; reconnecting clients can only replay
	// what is still buffered.
	BufferCapacity = 100

	// asyncQueueSize bounds the async dispatch queue per session.
	// Overflow drops the dispatch (never the buffered event).
	asyncQueueSize = 256
)

// Listener receives events for one session. A returned error is logged
// and swallowed.
type Listener func(models.Event) error

type registration struct {
	id int
	fn Listener
}

// stream holds one session's ordered buffer and its subscribers.
type stream struct {
	id string

	mu  sync.Mutex // guards seq and buf
	seq uint64
	buf []models.Event

	lmu    sync.RWMutex // guards listener slices
	nextID int
	sync   []registration
	async  []registration

	queue chan models.Event
	quit  chan struct{}
	done  chan struct{}
}

// Bus is the process-wide event fan-out, keyed by session id.
type Bus struct {
	mu       sync.RWMutex
	sessions map[string]*stream

	// keepaliveInterval is the idle gap between SSE keepalive frames.
	// Exposed as a field so tests can shrink it.
	keepaliveInterval time.Duration
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		sessions:          make(map[string]*stream),
		keepaliveInterval: 10 * time.Second,
	}
}

// session returns the stream for id, creating it (and its async dispatch
// goroutine) on first use.
func (b *Bus) session(id string) *stream {
	b.mu.RLock()
	s, ok := b.sessions[id]
	b.mu.RUnlock()
	if ok {
		return s
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok = b.sessions[id]; ok {
		return s
	}
	s = &stream{
		id:    id,
		queue: make(chan models.Event, asyncQueueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	b.sessions[id] = s
	go s.dispatch()
	return s
}

// dispatch delivers events to async listeners in emission order.
func (s *stream) dispatch() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case ev := <-s.queue:
			s.lmu.RLock()
			listeners := make([]registration, len(s.async))
			copy(listeners, s.async)
			s.lmu.RUnlock()
			for _, reg := range listeners {
				invoke(reg, ev)
			}
		}
	}
}

// invoke calls one listener, recovering panics and logging errors so a
// bad listener never takes down emission.
func invoke(reg registration, ev models.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event listener panicked",
				"session_id", ev.SessionID, "event_type", ev.Type, "panic", r)
		}
	}()
	if err := reg.fn(ev); err != nil {
		slog.Warn("Event listener failed",
			"session_id", ev.SessionID, "event_type", ev.Type, "error", err)
	}
}

// Emit appends an event to the session buffer and fans it out: sequence
// assignment and buffer eviction happen under the session lock; listener
// invocation happens outside it. Sync listeners run on the caller's
// goroutine in registration order, then the event is queued for async
// listeners. Returns the emitted event with its assigned seq.
func (b *Bus) Emit(sessionID string, kind models.EventKind, data map[string]any) models.Event {
	if data == nil {
		data = map[string]any{}
	}
	s := b.session(sessionID)

	s.mu.Lock()
	s.seq++
	ev := models.Event{
		ID:        uuid.NewString(),
		Type:      kind,
		Data:      data,
		Seq:       s.seq,
		Timestamp: time.Now().Unix(),
		SessionID: sessionID,
	}
	s.buf = append(s.buf, ev)
	if len(s.buf) > BufferCapacity {
		n := copy(s.buf, s.buf[len(s.buf)-BufferCapacity:])
		s.buf = s.buf[:n]
	}
	s.mu.Unlock()

	s.lmu.RLock()
	listeners := make([]registration, len(s.sync))
	copy(listeners, s.sync)
	s.lmu.RUnlock()
	for _, reg := range listeners {
		invoke(reg, ev)
	}

	select {
	case s.queue <- ev:
	default:
		slog.Warn("Async event queue full, dropping dispatch",
			"session_id", sessionID, "event_type", kind, "seq", ev.Seq)
	}
	return ev
}

// EmitAsync schedules an emission without blocking the caller. Ordering
// relative to other EmitAsync calls is best-effort; use Emit when the
// caller needs the assigned seq or strict ordering.
func (b *Bus) EmitAsync(sessionID string, kind models.EventKind, data map[string]any) {
	go b.Emit(sessionID, kind, data)
}

// Subscribe registers a sync listener invoked inline on every Emit.
// Returns a registration id for Unsubscribe.
func (b *Bus) Subscribe(sessionID string, l Listener) int {
	s := b.session(sessionID)
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.nextID++
	s.sync = append(s.sync, registration{id: s.nextID, fn: l})
	return s.nextID
}

// SubscribeAsync registers a listener invoked from the session's dispatch
// goroutine, decoupled from emitters.
func (b *Bus) SubscribeAsync(sessionID string, l Listener) int {
	s := b.session(sessionID)
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.nextID++
	s.async = append(s.async, registration{id: s.nextID, fn: l})
	return s.nextID
}

// Unsubscribe removes a listener by registration id. Unknown ids are a
// no-op.
func (b *Bus) Unsubscribe(sessionID string, id int) {
	b.mu.RLock()
	s, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return
	}
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.sync = removeRegistration(s.sync, id)
	s.async = removeRegistration(s.async, id)
}

func removeRegistration(regs []registration, id int) []registration {
	for i, reg := range regs {
		if reg.id == id {
			return append(regs[:i:i], regs[i+1:]...)
		}
	}
	return regs
}

// Buffered returns the buffered events with seq > sinceSeq, oldest first.
func (b *Bus) Buffered(sessionID string, sinceSeq uint64) []models.Event {
	b.mu.RLock()
	s, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, 0, len(s.buf))
	for _, ev := range s.buf {
		if ev.Seq > sinceSeq {
			out = append(out, ev)
		}
	}
	return out
}

// LastSeq returns the most recently assigned sequence number, zero when
// the session has emitted nothing.
func (b *Bus) LastSeq(sessionID string) uint64 {
	b.mu.RLock()
	s, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// CloseSession drops the session's listeners and buffer and stops its
// dispatch goroutine. Subsequent emissions recreate the session from seq
// zero, so callers close only after the terminal done event.
func (b *Bus) CloseSession(sessionID string) {
	b.mu.Lock()
	s, ok := b.sessions[sessionID]
	if ok {
		delete(b.sessions, sessionID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	close(s.quit)
	<-s.done
	s.lmu.Lock()
	s.sync = nil
	s.async = nil
	s.lmu.Unlock()
}

// Sessions returns the ids of sessions with live state, for health
// reporting.
func (b *Bus) Sessions() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.sessions))
	for id := range b.sessions {
		ids = append(ids, id)
	}
	return ids
}
