package task

import (
	"context"
	"time"
)

// EventType identifies the kind of Task Progress Event.
type EventType string

const (
	EventStarted            EventType = "started"
	EventDelegationComplete EventType = "delegation_complete"
	EventItemComplete       EventType = "item_complete"
	EventCombining          EventType = "combining"
	EventFinished           EventType = "finished"
	EventFailed             EventType = "failed"
)

// rank orders event types within one task.
var rank = map[EventType]int{
	EventStarted:            0,
	EventDelegationComplete: 1,
	EventItemComplete:       2,
	EventCombining:          3,
	EventFinished:           4,
	EventFailed:             4,
}

// Rank returns the logical position of the type in a task's event sequence.
// Started < DelegationComplete < ItemComplete < Combining < Finished/Failed.
func (t EventType) Rank() int { return rank[t] }

// IsTerminal reports whether the type ends a task.
func (t EventType) IsTerminal() bool {
	return t == EventFinished || t == EventFailed
}

// ItemOutcome is the terminal outcome of one fan-out item.
// Exactly one of Summary or Reason is meaningful, selected by OK.
type ItemOutcome struct {
	Index   int     `json:"index"`
	Item    string  `json:"item"`
	OK      bool    `json:"ok"`
	Summary string  `json:"summary,omitempty"`
	Reason  *Reason `json:"reason,omitempty"`
}

// ItemFailure lists one failed item in a final result.
type ItemFailure struct {
	Index   int    `json:"index"`
	VideoID string `json:"video_id"`
	Reason  Reason `json:"reason"`
}

// Result is the payload of a finished event.
type Result struct {
	VideoIDs []string      `json:"video_ids,omitempty"`
	Combined string        `json:"combined,omitempty"`
	Failed   []ItemFailure `json:"failed,omitempty"`
}

// Event is a Task Progress Event. Type selects which payload fields are set.
type Event struct {
	Type    EventType    `json:"type"`
	TaskID  string       `json:"task_id"`
	Seq     int          `json:"seq"`
	Time    time.Time    `json:"time"`
	Count   int          `json:"count,omitempty"`
	Outcome *ItemOutcome `json:"outcome,omitempty"`
	Result  *Result      `json:"result,omitempty"`
	Reason  *Reason      `json:"reason,omitempty"`
}

// Started returns a started event.
func Started() Event { return Event{Type: EventStarted} }

// DelegationComplete returns a delegation_complete event for count identifiers.
func DelegationComplete(count int) Event {
	return Event{Type: EventDelegationComplete, Count: count}
}

// ItemComplete returns an item_complete event.
func ItemComplete(o ItemOutcome) Event {
	return Event{Type: EventItemComplete, Outcome: &o}
}

// Combining returns a combining event.
func Combining() Event { return Event{Type: EventCombining} }

// Finished returns a finished event carrying r.
func Finished(r Result) Event { return Event{Type: EventFinished, Result: &r} }

// Failed returns a failed event carrying r.
func Failed(r Reason) Event { return Event{Type: EventFailed, Reason: &r} }

// Emitter delivers progress events for one task to its subscriber.
// Emit blocks until the event is handed off; it must not be called
// concurrently with itself by callers that need ordering.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, ev Event) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Discard is an Emitter that drops every event.
var Discard Emitter = EmitterFunc(func(context.Context, Event) error { return nil })
