package models

// EventKind identifies the type of a research progress event.
// The set is closed: consumers switch on these values and unknown
// kinds are a protocol error.
type EventKind string

const (
	EventResearchNodeStart    EventKind = "research_node_start"
	EventResearchNodeComplete EventKind = "research_node_complete"
	EventResearchTreeUpdate   EventKind = "research_tree_update"
	EventQualityUpdate        EventKind = "quality_update"
	EventSearch               EventKind = "search"
	EventContent              EventKind = "content"
	EventThinking             EventKind = "thinking"
	EventToolStart            EventKind = "tool_start"
	EventToolProgress         EventKind = "tool_progress"
	EventToolScreenshot       EventKind = "tool_screenshot"
	EventToolResult           EventKind = "tool_result"
	EventToolError            EventKind = "tool_error"
	EventTaskCreate           EventKind = "task_create"
	EventTaskUpdate           EventKind = "task_update"
	EventTaskComplete         EventKind = "task_complete"
	EventAgentStart           EventKind = "agent_start"
	EventAgentIteration       EventKind = "agent_iteration"
	EventAgentDone            EventKind = "agent_done"
	EventError                EventKind = "error"
	EventDone                 EventKind = "done"
)

// Event is one element of a session's ordered event stream.
// Seq is assigned atomically per session and is strictly monotonic;
// it doubles as the SSE event id for resume-after-reconnect.
type Event struct {
	ID        string         `json:"event_id"`
	Type      EventKind      `json:"type"`
	Data      map[string]any `json:"data"`
	Seq       uint64         `json:"seq"`
	Timestamp int64          `json:"timestamp"` // unix seconds
	SessionID string         `json:"thread_id"`
}
