package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Strob0t/tubedigest/internal/domain"
	"github.com/Strob0t/tubedigest/internal/domain/task"
	"github.com/Strob0t/tubedigest/internal/port/a2a"
	"github.com/Strob0t/tubedigest/internal/port/intent"
	"github.com/Strob0t/tubedigest/internal/port/tool"
)

// FinderConfig names the listing tools the finder calls.
type FinderConfig struct {
	ChannelTool  string
	PlaylistTool string
}

// FinderService resolves a structured intent into an ordered list of video
// ids with exactly one tool call.
type FinderService struct {
	tools   tool.Invoker
	cfg     FinderConfig
	intents intent.Resolver // optional, for free-text requests
}

// NewFinderService creates a FinderService.
func NewFinderService(tools tool.Invoker, cfg FinderConfig) *FinderService {
	return &FinderService{tools: tools, cfg: cfg}
}

// SetIntentResolver lets the finder accept free-text requests.
func (s *FinderService) SetIntentResolver(r intent.Resolver) {
	s.intents = r
}

// Execute implements a2a.Executor.
func (s *FinderService) Execute(ctx context.Context, req *task.Request, emit task.Emitter) task.Event {
	m := task.NewMachine(task.FinderTransitions)
	fail := func(r task.Reason) task.Event {
		if err := m.To(task.StateFailed); err != nil {
			slog.ErrorContext(ctx, "finder state", "error", err)
		}
		return task.Failed(r)
	}

	if err := emit.Emit(ctx, task.Started()); err != nil && !errors.Is(err, a2a.ErrAbandoned) {
		slog.WarnContext(ctx, "emit started", "error", err)
	}

	in, err := s.intent(ctx, req.Input)
	if err != nil {
		return fail(task.ReasonFromError(err, task.HopFinder))
	}

	_ = m.To(task.StateResolving)
	call := s.call(in)
	res, err := s.tools.Invoke(ctx, call)
	var ids []string
	if err == nil {
		ids, err = tool.StringList(call.Tool, res)
	}
	if err != nil {
		slog.WarnContext(ctx, "video lookup failed", "tool", call.Tool, "error", err)
		r := task.ReasonFromError(err, task.HopFinder)
		if r.Code != task.CodeAuthFailure {
			r.Code = task.CodeToolFailure
		}
		return fail(r)
	}

	_ = m.To(task.StateReplying)
	slog.InfoContext(ctx, "videos found", "tool", call.Tool, "count", len(ids))
	_ = m.To(task.StateDone)
	return task.Finished(task.Result{VideoIDs: ids})
}

// intent returns the request's structured intent, resolving free text when
// a resolver is configured.
func (s *FinderService) intent(ctx context.Context, in task.Input) (*task.Intent, error) {
	if in.Intent != nil {
		if err := in.Intent.Validate(); err != nil {
			return nil, err
		}
		return in.Intent, nil
	}
	if s.intents == nil {
		return nil, fmt.Errorf("%w: finder requires a structured intent", domain.ErrValidation)
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

func (s *FinderService) call(in *task.Intent) tool.Call {
	if in.Playlist != nil {
		return tool.Call{
			Tool: s.cfg.PlaylistTool,
			Args: map[string]any{"playlist_id": in.Playlist.PlaylistID},
		}
	}
	return tool.Call{
		Tool: s.cfg.ChannelTool,
		Args: map[string]any{
			"channel_id": in.ChannelDate.ChannelID,
			"date":       in.ChannelDate.Date,
		},
	}
}
