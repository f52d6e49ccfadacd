package events

import (
	"time"

	"github.com/Qredence/skill-fleet/internal/types"
)

// EventType identifies the category and nature of a progress event emitted
// by the generation pipeline.
type EventType string

// Pipeline progress events.
// These form the ordered stream a transport relays to clients.
const (
	EventPhaseStart EventType = "phase_start"
	EventPhaseEnd   EventType = "phase_end"

	// Module events bracket a single inference call inside a phase.
	EventModuleStart EventType = "module_start"
	EventModuleEnd   EventType = "module_end"

	// EventReasoning carries free-text engine notes for display.
	EventReasoning EventType = "reasoning"

	// EventTokenChunk carries an incremental slice of streamed content.
	EventTokenChunk EventType = "token_chunk"

	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsValid checks if the event type is a known value.
func (t EventType) IsValid() bool {
	switch t {
	case EventPhaseStart, EventPhaseEnd, EventModuleStart, EventModuleEnd,
		EventReasoning, EventTokenChunk, EventError, EventComplete:
		return true
	default:
		return false
	}
}

// Event is a single entry in a job's progress stream.
//
// Seq is a per-job monotonically increasing sequence number assigned at
// publish time. It is the only delivery guarantee the engine makes: a
// consumer that observes a gap knows it dropped events and can resync.
type Event struct {
	// Type identifies the category and nature of the event
	Type EventType `json:"type"`

	// Seq is the per-job monotonic sequence number
	Seq uint64 `json:"seq"`

	// Timestamp records when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// JobID associates the event with a job
	JobID types.ID `json:"job_id"`

	// Phase names the pipeline phase the event belongs to
	Phase string `json:"phase,omitempty"`

	// Module names the inference call for module_start/module_end events
	Module string `json:"module,omitempty"`

	// Payload contains event-specific typed data
	Payload any `json:"payload,omitempty"`
}

// Filter defines criteria for filtering events in subscriptions.
// All fields use AND logic; empty fields act as wildcards.
type Filter struct {
	// Types filters by event types (empty = all types)
	Types []EventType `json:"types,omitempty"`

	// JobID filters by job (empty = all jobs)
	JobID types.ID `json:"job_id,omitempty"`
}

// Matches determines whether the event satisfies every non-empty criterion.
func (f *Filter) Matches(event Event) bool {
	if len(f.Types) > 0 {
		matched := false
		for _, t := range f.Types {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.JobID != "" && event.JobID != f.JobID {
		return false
	}

	return true
}

// PhasePayload contains data for phase_start and phase_end events.
type PhasePayload struct {
	Phase    string        `json:"phase"`
	Status   string        `json:"status,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// ModulePayload contains data for module_start and module_end events.
type ModulePayload struct {
	Module   string        `json:"module"`
	Duration time.Duration `json:"duration,omitempty"`
	Success  bool          `json:"success,omitempty"`
	Degraded bool          `json:"degraded,omitempty"`
}

// ReasoningPayload contains data for reasoning events.
type ReasoningPayload struct {
	Text string `json:"text"`
}

// TokenChunkPayload contains data for token_chunk events.
type TokenChunkPayload struct {
	Module     string `json:"module,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
}

// ErrorPayload contains data for error events.
type ErrorPayload struct {
	Phase   string `json:"phase,omitempty"`
	Module  string `json:"module,omitempty"`
	Error   string `json:"error"`
	Retried bool   `json:"retried,omitempty"`
}

// CompletePayload contains data for complete events.
type CompletePayload struct {
	Status   string        `json:"status"`
	Score    float64       `json:"score,omitempty"`
	Passed   bool          `json:"passed"`
	Duration time.Duration `json:"duration"`
}
