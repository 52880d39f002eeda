package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/tubedigest/internal/domain"
	"github.com/Strob0t/tubedigest/internal/domain/task"
	"github.com/Strob0t/tubedigest/internal/fanout"
	"github.com/Strob0t/tubedigest/internal/port/a2a"
	"github.com/Strob0t/tubedigest/internal/port/intent"
	"github.com/Strob0t/tubedigest/internal/port/tool"
)

// Delegator hands a sub-task to another agent and returns its terminal
// event. *a2a.Client implements it.
type Delegator interface {
	Delegate(ctx context.Context, env a2a.Envelope, onEvent func(task.Event)) task.Event
}

// OrchestratorConfig tunes an OrchestratorService.
type OrchestratorConfig struct {
	MaxParallel       int
	SummarizeTool     string
	CombineTool       string
	DelegationTimeout time.Duration
}

// OrchestratorService turns a request into a combined digest: resolve the
// intent, delegate video lookup to the finder, summarize every video in
// parallel and combine the successful summaries.
type OrchestratorService struct {
	finder    Delegator
	tools     tool.Invoker
	intents   intent.Resolver
	summaries *SummaryCache
	cfg       OrchestratorConfig
}

// NewOrchestratorService creates an OrchestratorService. summaries may be
// nil; a nil intents falls back to the PatternResolver.
func NewOrchestratorService(
	finder Delegator,
	tools tool.Invoker,
	intents intent.Resolver,
	summaries *SummaryCache,
	cfg OrchestratorConfig,
) *OrchestratorService {
	if intents == nil {
		intents = NewPatternResolver()
	}
	return &OrchestratorService{
		finder:    finder,
		tools:     tools,
		intents:   intents,
		summaries: summaries,
		cfg:       cfg,
	}
}

// orchestration is the state of one request.
type orchestration struct {
	svc       *OrchestratorService
	req       *task.Request
	emitter   task.Emitter
	machine   *task.Machine
	abandoned atomic.Bool
}

// errAbandoned ends a task whose subscriber left. Its terminal event is
// never delivered.
var errAbandoned = errors.New("subscriber gone")

// Execute implements a2a.Executor.
func (s *OrchestratorService) Execute(ctx context.Context, req *task.Request, emit task.Emitter) task.Event {
	o := &orchestration{
		svc:     s,
		req:     req,
		emitter: emit,
		machine: task.NewMachine(task.OrchestratorTransitions),
	}
	return o.run(ctx)
}

func (o *orchestration) run(ctx context.Context) task.Event {
	s := o.svc
	o.emit(ctx, task.Started())

	in, err := s.resolveIntent(ctx, o.req.Input)
	if err != nil {
		slog.InfoContext(ctx, "intent unresolved", "error", err)
		return o.fail(ctx, task.ReasonFromError(err, task.HopOrchestrator))
	}
	o.to(ctx, task.StateIntentResolved)
	slog.InfoContext(ctx, "intent resolved", "intent", in.String())

	// Delegating
	o.to(ctx, task.StateDelegating)
	ids, reason := o.delegate(ctx, in)
	if reason != nil {
		return o.fail(ctx, *reason)
	}
	o.to(ctx, task.StateDelegated)
	o.emit(ctx, task.DelegationComplete(len(ids)))
	if o.abandoned.Load() {
		return task.Failed(task.Reason{Code: task.CodeInternal, Message: errAbandoned.Error(), Hop: task.HopOrchestrator})
	}

	// FanningOut
	o.to(ctx, task.StateFanningOut)
	report, err := fanout.Run(ctx, ids, s.summarize, fanout.Options[string]{
		Limit:  s.cfg.MaxParallel,
		OnItem: func(out fanout.Outcome[string]) { o.emit(ctx, task.ItemComplete(s.itemOutcome(ids, out))) },
	})
	if err != nil {
		return o.fail(ctx, task.Reason{
			Code:    task.CodeAllItemsFailed,
			Message: fmt.Sprintf("all %d summaries failed", len(ids)),
			Hop:     task.HopOrchestrator,
		})
	}
	if o.abandoned.Load() {
		return task.Failed(task.Reason{Code: task.CodeInternal, Message: errAbandoned.Error(), Hop: task.HopOrchestrator})
	}

	// Combining
	o.to(ctx, task.StateCombining)
	o.emit(ctx, task.Combining())
	combined, err := s.combine(ctx, report.Values())
	if err != nil {
		slog.WarnContext(ctx, "combine failed", "error", err)
		return o.fail(ctx, task.Reason{
			Code:    task.CodeCombineFailed,
			Message: err.Error(),
			Hop:     task.ToolHop(s.cfg.CombineTool),
		})
	}

	o.to(ctx, task.StateFinished)
	slog.InfoContext(ctx, "digest ready", "videos", len(ids), "failed", report.Failed)
	return task.Finished(task.Result{
		VideoIDs: ids,
		Combined: combined,
		Failed:   s.failures(ids, report),
	})
}

// emit sends a progress event unless the subscriber is gone. Once Emit
// reports abandonment nothing more is sent.
func (o *orchestration) emit(ctx context.Context, ev task.Event) {
	if o.abandoned.Load() {
		return
	}
	err := o.emitter.Emit(ctx, ev)
	switch {
	case err == nil:
	case errors.Is(err, a2a.ErrAbandoned):
		if o.abandoned.CompareAndSwap(false, true) {
			slog.InfoContext(ctx, "subscriber gone, finishing in-flight work silently", "at", ev.Type)
		}
	default:
		slog.WarnContext(ctx, "emit failed", "event", ev.Type, "error", err)
	}
}

func (o *orchestration) to(ctx context.Context, next task.State) {
	if err := o.machine.To(next); err != nil {
		slog.ErrorContext(ctx, "orchestrator state", "error", err)
	}
}

func (o *orchestration) fail(ctx context.Context, r task.Reason) task.Event {
	o.to(ctx, task.StateFailed)
	return task.Failed(r)
}

// delegate asks the finder for the video ids. A finder failure is returned
// verbatim, tagged with the finder hop when it carries none.
func (o *orchestration) delegate(ctx context.Context, in *task.Intent) ([]string, *task.Reason) {
	s := o.svc
	env := a2a.Envelope{
		TaskID:       uuid.NewString(),
		ParentTaskID: o.req.ID,
		Input:        task.Input{Intent: in},
		Stream:       o.req.Stream,
		TimeoutMS:    s.cfg.DelegationTimeout.Milliseconds(),
	}
	start := time.Now()
	final := s.finder.Delegate(ctx, env, func(ev task.Event) {
		slog.DebugContext(ctx, "finder progress", "finder_task_id", env.TaskID, "event", ev.Type, "seq", ev.Seq)
	})
	slog.InfoContext(ctx, "delegation ended", "finder_task_id", env.TaskID, "event", final.Type,
		"duration_ms", time.Since(start).Milliseconds())

	switch {
	case final.Type == task.EventFailed && final.Reason != nil:
		r := *final.Reason
		if r.Hop == "" {
			r.Hop = task.HopFinder
		}
		return nil, &r
	case final.Type != task.EventFinished:
		return nil, &task.Reason{Code: task.CodeInternal, Message: "finder ended without a result", Hop: task.HopFinder}
	case final.Result == nil || len(final.Result.VideoIDs) == 0:
		return nil, &task.Reason{Code: task.CodeToolFailure, Message: "finder returned no videos", Hop: task.HopFinder}
	}
	return final.Result.VideoIDs, nil
}

// resolveIntent uses a structured intent as-is and parses free text otherwise.
func (s *OrchestratorService) resolveIntent(ctx context.Context, in task.Input) (*task.Intent, error) {
	if in.Intent != nil {
		if err := in.Intent.Validate(); err != nil {
			return nil, err
		}
		return in.Intent, nil
	}
	if in.Text == "" {
		return nil, fmt.Errorf("%w: empty input", domain.ErrValidation)
	}
	resolved, err := s.intents.Resolve(ctx, in.Text)
	if err != nil {
		return nil, err
	}
	if err := resolved.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIntentUnresolved, err)
	}
	return &resolved, nil
}

// summarize returns the summary of one video, from the cache when present.
func (s *OrchestratorService) summarize(ctx context.Context, _ int, videoID string) (string, error) {
	if sum, ok := s.summaries.Get(ctx, videoID); ok {
		return sum, nil
	}
	res, err := s.tools.Invoke(ctx, tool.Call{
		Tool: s.cfg.SummarizeTool,
		Args: map[string]any{"video_id": videoID},
	})
	if err != nil {
		return "", err
	}
	sum, err := tool.Text(s.cfg.SummarizeTool, res, "summary")
	if err != nil {
		return "", err
	}
	s.summaries.Put(ctx, videoID, sum)
	return sum, nil
}

// combine calls the combine tool once with the summaries in item order.
func (s *OrchestratorService) combine(ctx context.Context, summaries []string) (string, error) {
	res, err := s.tools.Invoke(ctx, tool.Call{
		Tool: s.cfg.CombineTool,
		Args: map[string]any{"summaries": summaries},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrCombineFailed, err)
	}
	combined, err := tool.Text(s.cfg.CombineTool, res, "combined_summary")
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrCombineFailed, err)
	}
	return combined, nil
}

func (s *OrchestratorService) itemOutcome(ids []string, out fanout.Outcome[string]) task.ItemOutcome {
	item := task.ItemOutcome{Index: out.Index, Item: ids[out.Index], OK: out.OK()}
	if out.OK() {
		item.Summary = out.Value
		return item
	}
	r := task.ReasonFromError(out.Err, task.ToolHop(s.cfg.SummarizeTool))
	item.Reason = &r
	return item
}

func (s *OrchestratorService) failures(ids []string, report fanout.Report[string]) []task.ItemFailure {
	var failed []task.ItemFailure
	for _, out := range report.Outcomes {
		if out.OK() {
			continue
		}
		failed = append(failed, task.ItemFailure{
			Index:   out.Index,
			VideoID: ids[out.Index],
			Reason:  task.ReasonFromError(out.Err, task.ToolHop(s.cfg.SummarizeTool)),
		})
	}
	return failed
}
