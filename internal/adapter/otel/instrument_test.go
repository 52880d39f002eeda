package otel

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Strob0t/tubedigest/internal/domain/task"
	"github.com/Strob0t/tubedigest/internal/port/a2a"
	"github.com/Strob0t/tubedigest/internal/port/tool"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	m, err := NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatal(err)
	}
	return m, reader
}

// counterTotal sums every data point of the named int64 counter.
func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is %T", name, met.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestExecutor_CountsTasksAndItems(t *testing.T) {
	m, reader := newTestMetrics(t)
	inner := a2a.ExecutorFunc(func(ctx context.Context, _ *task.Request, emit task.Emitter) task.Event {
		_ = emit.Emit(ctx, task.ItemComplete(task.ItemOutcome{Index: 0, Item: "a", OK: true}))
		_ = emit.Emit(ctx, task.ItemComplete(task.ItemOutcome{Index: 1, Item: "b", Reason: &task.Reason{Code: task.CodeToolFailure}}))
		return task.Finished(task.Result{})
	})
	var forwarded int
	emit := task.EmitterFunc(func(context.Context, task.Event) error { forwarded++; return nil })

	exec := Executor("orchestrator", inner, m)
	final := exec.Execute(context.Background(), &task.Request{ID: "t1"}, emit)

	if final.Type != task.EventFinished {
		t.Fatalf("final = %s", final.Type)
	}
	if forwarded != 2 {
		t.Fatalf("forwarded = %d, want 2", forwarded)
	}
	if got := counterTotal(t, reader, "tubedigest.tasks.started"); got != 1 {
		t.Fatalf("started = %d", got)
	}
	if got := counterTotal(t, reader, "tubedigest.tasks.finished"); got != 1 {
		t.Fatalf("finished = %d", got)
	}
	if got := counterTotal(t, reader, "tubedigest.items.failed"); got != 1 {
		t.Fatalf("items failed = %d", got)
	}
}

func TestExecutor_CountsFailures(t *testing.T) {
	m, reader := newTestMetrics(t)
	inner := a2a.ExecutorFunc(func(context.Context, *task.Request, task.Emitter) task.Event {
		return task.Failed(task.Reason{Code: task.CodeAllItemsFailed})
	})

	Executor("orchestrator", inner, m).Execute(context.Background(), &task.Request{ID: "t2"}, task.Discard)

	if got := counterTotal(t, reader, "tubedigest.tasks.failed"); got != 1 {
		t.Fatalf("failed = %d", got)
	}
	if got := counterTotal(t, reader, "tubedigest.tasks.finished"); got != 0 {
		t.Fatalf("finished = %d", got)
	}
}

func TestInvoker_CountsCalls(t *testing.T) {
	m, reader := newTestMetrics(t)
	inner := tool.InvokerFunc(func(_ context.Context, call tool.Call) (*tool.Result, error) {
		if call.Tool == "bad" {
			return nil, tool.Failure(call.Tool, "nope")
		}
		return &tool.Result{Texts: []string{"ok"}}, nil
	})
	inv := Invoker(inner, m)

	if _, err := inv.Invoke(context.Background(), tool.Call{Tool: "good"}); err != nil {
		t.Fatal(err)
	}
	if _, err := inv.Invoke(context.Background(), tool.Call{Tool: "bad"}); err == nil {
		t.Fatal("expected error to pass through")
	}
	if got := counterTotal(t, reader, "tubedigest.toolcalls"); got != 2 {
		t.Fatalf("toolcalls = %d", got)
	}
}
