package otel

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/Strob0t/tubedigest/internal/domain"
	"github.com/Strob0t/tubedigest/internal/domain/task"
	"github.com/Strob0t/tubedigest/internal/port/a2a"
	"github.com/Strob0t/tubedigest/internal/port/tool"
)

// Executor wraps next with a task span and task metrics. Item failures are
// counted from the item_complete events flowing through the emitter.
func Executor(agent string, next a2a.Executor, m *Metrics) a2a.Executor {
	agentAttr := metric.WithAttributes(attribute.String("agent", agent))
	return a2a.ExecutorFunc(func(ctx context.Context, req *task.Request, emit task.Emitter) task.Event {
		ctx, span := StartTaskSpan(ctx, agent, req.ID, req.ParentID)
		defer span.End()
		m.TasksStarted.Add(ctx, 1, agentAttr)
		start := time.Now()

		counting := task.EmitterFunc(func(ctx context.Context, ev task.Event) error {
			if ev.Type == task.EventItemComplete && ev.Outcome != nil && !ev.Outcome.OK {
				m.ItemsFailed.Add(ctx, 1, agentAttr)
			}
			return emit.Emit(ctx, ev)
		})
		final := next.Execute(ctx, req, counting)

		m.TaskDuration.Record(ctx, time.Since(start).Seconds(), agentAttr)
		if final.Type == task.EventFailed && final.Reason != nil {
			m.TasksFailed.Add(ctx, 1, metric.WithAttributes(
				attribute.String("agent", agent),
				attribute.String("code", string(final.Reason.Code)),
			))
			span.SetStatus(codes.Error, string(final.Reason.Code))
			span.SetAttributes(attribute.String("task.failure_hop", final.Reason.Hop))
		} else {
			m.TasksFinished.Add(ctx, 1, agentAttr)
		}
		return final
	})
}

// Invoker wraps next with a span and call metrics per tool call.
func Invoker(next tool.Invoker, m *Metrics) tool.Invoker {
	return tool.InvokerFunc(func(ctx context.Context, call tool.Call) (*tool.Result, error) {
		ctx, span := StartToolCallSpan(ctx, call.Tool)
		defer span.End()
		start := time.Now()

		res, err := next.Invoke(ctx, call)

		outcome := "ok"
		if err != nil {
			outcome = "error"
			var te *tool.Error
			if errors.As(err, &te) {
				outcome = string(te.Kind)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		attrs := metric.WithAttributes(
			attribute.String("tool", call.Tool),
			attribute.String("outcome", outcome),
		)
		m.ToolCalls.Add(ctx, 1, attrs)
		m.ToolDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		return res, err
	})
}

// delegator matches service.Delegator.
type delegator interface {
	Delegate(ctx context.Context, env a2a.Envelope, onEvent func(task.Event)) task.Event
}

// Delegator wraps a delegation client with a span and a duration metric.
type Delegator struct {
	next delegator
	peer string
	m    *Metrics
}

// NewDelegator instruments next, a client of the named peer agent.
func NewDelegator(peer string, next delegator, m *Metrics) *Delegator {
	return &Delegator{next: next, peer: peer, m: m}
}

// Delegate runs the delegation under a span.
func (d *Delegator) Delegate(ctx context.Context, env a2a.Envelope, onEvent func(task.Event)) task.Event {
	ctx, span := StartDelegationSpan(ctx, d.peer, env.TaskID, env.Stream)
	defer span.End()
	start := time.Now()

	final := d.next.Delegate(ctx, env, onEvent)

	outcome := string(final.Type)
	if final.Type == task.EventFailed && final.Reason != nil {
		outcome = string(final.Reason.Code)
		span.SetStatus(codes.Error, outcome)
		if final.Reason.Code == task.CodeUpstreamTimeout {
			span.RecordError(domain.ErrUpstreamTimeout)
		}
	}
	d.m.DelegationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("peer", d.peer),
		attribute.String("outcome", outcome),
	))
	return final
}

// HTTPTransport wraps base so outgoing protocol requests carry the trace
// context. A nil base means http.DefaultTransport.
func HTTPTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base)
}
