package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Qredence/skill-fleet/internal/types"
)

// Emitter publishes the ordered progress stream for a single job. It
// assigns the per-job monotonic sequence number at publish time, so every
// path that emits an event for a job must share one Emitter.
//
// Emit never blocks the caller beyond the bus's non-blocking publish;
// publishing failures (closed bus) are intentionally ignored because event
// delivery is best-effort by contract.
type Emitter struct {
	bus   Bus
	jobID types.ID
	seq   atomic.Uint64
}

// NewEmitter creates an Emitter for the given job.
func NewEmitter(bus Bus, jobID types.ID) *Emitter {
	return &Emitter{
		bus:   bus,
		jobID: jobID,
	}
}

// ResumeEmitter creates an Emitter whose sequence continues after the last
// number assigned for the job, so a suspend/resume boundary never restarts
// the per-job ordering.
func ResumeEmitter(bus Bus, jobID types.ID, lastSeq uint64) *Emitter {
	e := NewEmitter(bus, jobID)
	e.seq.Store(lastSeq)
	return e
}

// JobID returns the job this emitter belongs to.
func (e *Emitter) JobID() types.ID {
	return e.jobID
}

// Seq returns the number of events emitted so far.
func (e *Emitter) Seq() uint64 {
	return e.seq.Load()
}

// Emit publishes a typed event with the next sequence number.
func (e *Emitter) Emit(ctx context.Context, eventType EventType, phase, module string, payload any) {
	if e.bus == nil {
		return
	}

	event := Event{
		Type:      eventType,
		Seq:       e.seq.Add(1),
		Timestamp: time.Now(),
		JobID:     e.jobID,
		Phase:     phase,
		Module:    module,
		Payload:   payload,
	}

	_ = e.bus.Publish(ctx, event)
}

// PhaseStart emits a phase_start event.
func (e *Emitter) PhaseStart(ctx context.Context, phase string) {
	e.Emit(ctx, EventPhaseStart, phase, "", PhasePayload{Phase: phase})
}

// PhaseEnd emits a phase_end event.
func (e *Emitter) PhaseEnd(ctx context.Context, phase, status string, duration time.Duration) {
	e.Emit(ctx, EventPhaseEnd, phase, "", PhasePayload{
		Phase:    phase,
		Status:   status,
		Duration: duration,
	})
}

// ModuleStart emits a module_start event for one inference call.
func (e *Emitter) ModuleStart(ctx context.Context, phase, module string) {
	e.Emit(ctx, EventModuleStart, phase, module, ModulePayload{Module: module})
}

// ModuleEnd emits a module_end event for one inference call.
func (e *Emitter) ModuleEnd(ctx context.Context, phase, module string, duration time.Duration, success, degraded bool) {
	e.Emit(ctx, EventModuleEnd, phase, module, ModulePayload{
		Module:   module,
		Duration: duration,
		Success:  success,
		Degraded: degraded,
	})
}

// Reasoning emits a free-text reasoning note.
func (e *Emitter) Reasoning(ctx context.Context, phase, text string) {
	e.Emit(ctx, EventReasoning, phase, "", ReasoningPayload{Text: text})
}

// TokenChunk emits an incremental slice of streamed content.
func (e *Emitter) TokenChunk(ctx context.Context, phase, module string, index int, content string) {
	e.Emit(ctx, EventTokenChunk, phase, module, TokenChunkPayload{
		Module:     module,
		ChunkIndex: index,
		Content:    content,
	})
}

// Error emits an error event.
func (e *Emitter) Error(ctx context.Context, phase, module string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	e.Emit(ctx, EventError, phase, module, ErrorPayload{
		Phase:  phase,
		Module: module,
		Error:  msg,
	})
}

// Complete emits the terminal complete event for the job.
func (e *Emitter) Complete(ctx context.Context, status string, score float64, passed bool, duration time.Duration) {
	e.Emit(ctx, EventComplete, "", "", CompletePayload{
		Status:   status,
		Score:    score,
		Passed:   passed,
		Duration: duration,
	})
}
