package a2a

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Strob0t/tubedigest/internal/domain/task"
)

// sequencer stamps task id, seq and time on events and enforces that
// nothing follows the terminal event. Callers hold the owning mutex.
type sequencer struct {
	taskID   string
	seq      int
	terminal bool
	now      func() time.Time
}

func (s *sequencer) stamp(ev task.Event) (task.Event, error) {
	if s.terminal {
		return ev, errTerminalSent
	}
	s.seq++
	ev.TaskID = s.taskID
	ev.Seq = s.seq
	if ev.Time.IsZero() {
		ev.Time = s.now()
	}
	return ev, nil
}

// replyEmitter serves non-streaming requests: progress events are dropped,
// the first terminal event is kept for the reply.
type replyEmitter struct {
	mu    sync.Mutex
	seq   sequencer
	final *task.Event
	seen  func(task.Event)
}

func newReplyEmitter(taskID string, seen func(task.Event)) *replyEmitter {
	return &replyEmitter{seq: sequencer{taskID: taskID, now: time.Now}, seen: seen}
}

func (e *replyEmitter) Emit(_ context.Context, ev task.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ev, err := e.seq.stamp(ev)
	if err != nil {
		return err
	}
	e.seen(ev)
	if ev.Type.IsTerminal() {
		e.seq.terminal = true
		e.final = &ev
	}
	return nil
}

func (e *replyEmitter) terminal() (task.Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.final == nil {
		return task.Event{}, false
	}
	return *e.final, true
}

// streamEmitter writes each event to the WebSocket and blocks until the
// subscriber acknowledges it, so at most one event is in flight.
type streamEmitter struct {
	mu         sync.Mutex
	conn       *websocket.Conn
	seq        sequencer
	ackTimeout time.Duration
	seen       func(task.Event)
	gone       chan struct{}
	goneOnce   sync.Once
	cause      error
}

func newStreamEmitter(conn *websocket.Conn, taskID string, ackTimeout time.Duration, seen func(task.Event)) *streamEmitter {
	return &streamEmitter{
		conn:       conn,
		seq:        sequencer{taskID: taskID, now: time.Now},
		ackTimeout: ackTimeout,
		seen:       seen,
		gone:       make(chan struct{}),
	}
}

func (e *streamEmitter) Emit(ctx context.Context, ev task.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-e.gone:
		return ErrAbandoned
	default:
	}

	ev, err := e.seq.stamp(ev)
	if err != nil {
		return err
	}
	e.seen(ev)

	wctx, cancel := context.WithTimeout(ctx, e.ackTimeout)
	defer cancel()

	if err := wsjson.Write(wctx, e.conn, StreamMessage{TaskID: ev.TaskID, Event: ev}); err != nil {
		return e.abandon(fmt.Errorf("write seq %d: %w", ev.Seq, err))
	}
	for {
		var ack Ack
		if err := wsjson.Read(wctx, e.conn, &ack); err != nil {
			return e.abandon(fmt.Errorf("await ack seq %d: %w", ev.Seq, err))
		}
		if ack.TaskID == ev.TaskID && ack.Seq == ev.Seq {
			break
		}
	}
	if ev.Type.IsTerminal() {
		e.seq.terminal = true
	}
	return nil
}

// abandon must be called with e.mu held.
func (e *streamEmitter) abandon(cause error) error {
	e.goneOnce.Do(func() {
		e.cause = cause
		close(e.gone)
	})
	return fmt.Errorf("%w: %w", ErrAbandoned, cause)
}

// abandoned is closed once the subscriber is gone.
func (e *streamEmitter) abandoned() <-chan struct{} { return e.gone }

func (e *streamEmitter) terminalSent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq.terminal
}
