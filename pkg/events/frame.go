package events

import (
	"encoding/json"
	"fmt"

	"github.com/delverhq/delver/pkg/models"
)

// Keepalive is the SSE comment frame sent on idle streams.
const Keepalive = ": keepalive\n\n"

// wireEvent is the JSON body of one SSE data line.
type wireEvent struct {
	Type      models.EventKind `json:"type"`
	Data      map[string]any   `json:"data"`
	EventID   string           `json:"event_id"`
	Seq       uint64           `json:"seq"`
	Timestamp int64            `json:"timestamp"`
	ThreadID  string           `json:"thread_id"`
}

// Frame serializes an event as one Server-Sent-Events frame:
//
//	id: <seq>\n
//	event: <kind>\n
//	data: <json>\n\n
//
// The id line carries the seq so clients resume with Last-Event-ID.
func Frame(ev models.Event) string {
	body, err := json.Marshal(wireEvent{
		Type:      ev.Type,
		Data:      ev.Data,
		EventID:   ev.ID,
		Seq:       ev.Seq,
		Timestamp: ev.Timestamp,
		ThreadID:  ev.SessionID,
	})
	if err != nil {
		// Data maps are built from JSON-safe values; this is unreachable
		// in practice but a broken payload must not kill the stream.
		body = []byte(fmt.Sprintf(`{"type":%q,"seq":%d}`, ev.Type, ev.Seq))
	}
	return fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Type, body)
}
