// Package a2a implements the agent-to-agent task protocol spoken between
// tubedigest agents: an HTTP entry point for single replies, a WebSocket
// stream of progress events with per-event acknowledgements, and the
// matching client.
package a2a

import (
	"errors"
	"fmt"
	"time"

	a2acore "github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"

	"github.com/Strob0t/tubedigest/internal/domain"
	"github.com/Strob0t/tubedigest/internal/domain/task"
)

// ErrAbandoned is returned by a stream emitter once the subscriber is gone
// (disconnect, write failure, or a missing ack). The task keeps running but
// must stop emitting.
var ErrAbandoned = errors.New("subscriber abandoned the task")

// errTerminalSent is returned when an event is emitted after the terminal one.
var errTerminalSent = errors.New("terminal event already sent")

// Envelope is the wire form of a Task Request.
type Envelope struct {
	TaskID       string     `json:"task_id"`
	ParentTaskID string     `json:"parent_task_id,omitempty"`
	Input        task.Input `json:"input"`
	Stream       bool       `json:"stream"`
	TimeoutMS    int64      `json:"timeout_ms,omitempty"`
}

// NewEnvelope wraps a request for delegation. A zero timeout leaves the
// client default in place.
func NewEnvelope(req *task.Request, timeout time.Duration) Envelope {
	return Envelope{
		TaskID:       req.ID,
		ParentTaskID: req.ParentID,
		Input:        req.Input,
		Stream:       req.Stream,
		TimeoutMS:    timeout.Milliseconds(),
	}
}

// Request converts the envelope to a validated task.Request, generating a
// task id when the caller omitted one.
func (e Envelope) Request() (*task.Request, error) {
	req := &task.Request{
		ID:       e.TaskID,
		ParentID: e.ParentTaskID,
		Input:    e.Input,
		Stream:   e.Stream,
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

// Timeout returns the deadline hint, or def when none was given.
func (e Envelope) Timeout(def time.Duration) time.Duration {
	if e.TimeoutMS > 0 {
		return time.Duration(e.TimeoutMS) * time.Millisecond
	}
	return def
}

// TaskReply is the body of a non-streaming reply.
type TaskReply struct {
	TaskID string            `json:"task_id"`
	Status a2acore.TaskState `json:"status"`
	Event  task.Event        `json:"event"`
}

// StreamMessage carries one event over the stream.
type StreamMessage struct {
	TaskID string     `json:"task_id"`
	Event  task.Event `json:"event"`
}

// Ack acknowledges receipt of the stream message with the given seq.
type Ack struct {
	TaskID string `json:"task_id"`
	Seq    int    `json:"seq"`
}

// TaskInfo describes an in-flight task.
type TaskInfo struct {
	TaskID    string            `json:"task_id"`
	ParentID  string            `json:"parent_task_id,omitempty"`
	State     a2acore.TaskState `json:"state"`
	Stream    bool              `json:"stream"`
	LastEvent task.EventType    `json:"last_event,omitempty"`
	StartedAt time.Time         `json:"started_at"`
}

// StateOf maps a terminal event onto the A2A task state vocabulary.
func StateOf(ev task.Event) a2acore.TaskState {
	switch ev.Type {
	case task.EventFinished:
		return a2acore.TaskStateCompleted
	case task.EventFailed:
		return a2acore.TaskStateFailed
	case "":
		return a2acore.TaskStateSubmitted
	}
	return a2acore.TaskStateWorking
}

// errorResponse is the JSON body of protocol-level HTTP errors.
type errorResponse struct {
	Error string `json:"error"`
}

func upstreamErr(op string, deadline bool, err error) error {
	if deadline {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrUpstreamUnavailable, err)
}
