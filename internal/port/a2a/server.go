package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	a2acore "github.com/a2aproject/a2a-go/a2a"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/tubedigest/internal/domain"
	"github.com/Strob0t/tubedigest/internal/domain/task"
	"github.com/Strob0t/tubedigest/internal/logger"
	"github.com/Strob0t/tubedigest/internal/port/broadcast"
)

const (
	defaultAckTimeout   = 30 * time.Second
	defaultMaxBodyBytes = 1 << 20
)

// Executor runs one task. Progress events go to emit; the returned event is
// the task's terminal event. Executors must not block on emit errors: once
// emit returns ErrAbandoned they stop emitting and wind down.
type Executor interface {
	Execute(ctx context.Context, req *task.Request, emit task.Emitter) task.Event
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req *task.Request, emit task.Emitter) task.Event

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req *task.Request, emit task.Emitter) task.Event {
	return f(ctx, req, emit)
}

// ServerConfig tunes a Server.
type ServerConfig struct {
	Agent        string // agent name, used as the hop of server-side failures
	BaseURL      string
	Card         CardInfo
	AckTimeout   time.Duration
	MaxBodyBytes int64
	Broadcast    broadcast.Broadcaster // optional live mirror of every emitted event
}

// Server serves the task protocol for one agent.
type Server struct {
	cfg  ServerConfig
	exec Executor

	mu    sync.RWMutex
	tasks map[string]*TaskInfo // in-flight only
	wg    sync.WaitGroup
}

// NewServer creates a protocol server dispatching tasks to exec.
func NewServer(exec Executor, cfg ServerConfig) *Server {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Server{
		cfg:   cfg,
		exec:  exec,
		tasks: make(map[string]*TaskInfo),
	}
}

// MountRoutes registers the protocol routes on the given chi router.
// These are mounted at the root level.
func (s *Server) MountRoutes(r chi.Router) {
	r.Get("/.well-known/agent.json", s.handleAgentCard)
	r.Post("/a2a/tasks", s.handleSend)
	r.Get("/a2a/tasks/stream", s.handleStream)
	r.Get("/a2a/tasks/{id}", s.handleGetTask)
}

// Wait blocks until every task started by the server has finished, or ctx ends.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight returns the number of running tasks.
func (s *Server) InFlight() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *Server) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, BuildAgentCard(s.cfg.BaseURL, s.cfg.Card))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	info, ok := s.tasks[id]
	var snapshot TaskInfo
	if ok {
		snapshot = *info
	}
	s.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var env Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	env.Stream = false

	req, err := env.Request()
	if err != nil {
		ev := s.rejection(req.ID, err)
		writeJSON(w, http.StatusOK, TaskReply{TaskID: req.ID, Status: StateOf(ev), Event: ev})
		return
	}
	if !s.register(req) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "task already in flight"})
		return
	}

	ctx := logger.WithTaskID(context.WithoutCancel(r.Context()), req.ID)
	em := newReplyEmitter(req.ID, s.observer(req.ID))
	final := s.run(ctx, req, em)
	if ev, ok := em.terminal(); ok {
		final = ev
	} else {
		_ = em.Emit(ctx, final)
		final, _ = em.terminal()
	}
	s.unregister(req.ID)

	writeJSON(w, http.StatusOK, TaskReply{TaskID: req.ID, Status: StateOf(final), Event: final})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // peers are agents, not browsers
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow() //nolint:errcheck // best effort after normal close
	conn.SetReadLimit(s.cfg.MaxBodyBytes)

	hsCtx, cancel := context.WithTimeout(r.Context(), s.cfg.AckTimeout)
	var env Envelope
	err = wsjson.Read(hsCtx, conn, &env)
	cancel()
	if err != nil {
		slog.Debug("stream handshake failed", "remote", r.RemoteAddr, "error", err)
		_ = conn.Close(websocket.StatusPolicyViolation, "expected task envelope")
		return
	}
	env.Stream = true

	taskCtx := context.WithoutCancel(r.Context())
	req, err := env.Request()
	if err == nil && !s.register(req) {
		err = fmt.Errorf("%w: task %s already in flight", domain.ErrValidation, req.ID)
	}
	if err != nil {
		em := newStreamEmitter(conn, req.ID, s.cfg.AckTimeout, func(task.Event) {})
		if em.Emit(taskCtx, s.rejection(req.ID, err)) == nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
		}
		return
	}

	ctx := logger.WithTaskID(taskCtx, req.ID)
	em := newStreamEmitter(conn, req.ID, s.cfg.AckTimeout, s.observer(req.ID))

	done := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		defer s.unregister(req.ID)
		final := s.run(ctx, req, em)
		if !em.terminalSent() {
			if err := em.Emit(ctx, final); err != nil && !errors.Is(err, ErrAbandoned) {
				slog.WarnContext(ctx, "terminal event not sent", "error", err)
			}
		}
	}()

	select {
	case <-done:
		if em.terminalSent() {
			_ = conn.Close(websocket.StatusNormalClosure, "")
		}
	case <-em.abandoned():
		slog.InfoContext(ctx, "subscriber gone, task continues detached", "cause", em.cause)
	}
}

// run executes the task, converting a panic into a failed terminal event.
func (s *Server) run(ctx context.Context, req *task.Request, em task.Emitter) (final task.Event) {
	start := time.Now()
	slog.InfoContext(ctx, "task started", "parent_task_id", req.ParentID, "stream", req.Stream)
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "executor panicked", "panic", r, "stack", string(debug.Stack()))
			final = task.Failed(task.Reason{Code: task.CodeInternal, Message: fmt.Sprintf("panic: %v", r), Hop: s.cfg.Agent})
		}
		slog.InfoContext(ctx, "task ended", "event", final.Type, "duration_ms", time.Since(start).Milliseconds())
	}()

	final = s.exec.Execute(ctx, req, em)
	if !final.Type.IsTerminal() {
		final = task.Failed(task.Reason{Code: task.CodeInternal, Message: "executor returned non-terminal event " + string(final.Type), Hop: s.cfg.Agent})
	}
	return final
}

func (s *Server) rejection(taskID string, err error) task.Event {
	slog.Info("task rejected", "task_id", taskID, "error", err)
	ev := task.Failed(task.ReasonFromError(err, s.cfg.Agent))
	ev.TaskID, ev.Seq, ev.Time = taskID, 1, time.Now()
	return ev
}

func (s *Server) register(req *task.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.tasks[req.ID]; dup {
		return false
	}
	s.tasks[req.ID] = &TaskInfo{
		TaskID:    req.ID,
		ParentID:  req.ParentID,
		State:     a2acore.TaskStateSubmitted,
		Stream:    req.Stream,
		StartedAt: time.Now().UTC(),
	}
	return true
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}

// observer returns a callback recording the last event of a task and
// mirroring it to the broadcaster, if any.
func (s *Server) observer(id string) func(task.Event) {
	return func(ev task.Event) {
		s.mu.Lock()
		if info, ok := s.tasks[id]; ok {
			info.LastEvent = ev.Type
			info.State = StateOf(ev)
		}
		s.mu.Unlock()
		if s.cfg.Broadcast != nil {
			s.cfg.Broadcast.BroadcastEvent(context.Background(), s.cfg.Agent+"."+string(ev.Type), ev)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}
