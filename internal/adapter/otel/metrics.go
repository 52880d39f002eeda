package otel

import (
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tubedigest"

// Metrics holds all tubedigest metric instruments.
type Metrics struct {
	TasksStarted       metric.Int64Counter
	TasksFinished      metric.Int64Counter
	TasksFailed        metric.Int64Counter
	ItemsFailed        metric.Int64Counter
	ToolCalls          metric.Int64Counter
	ToolDuration       metric.Float64Histogram
	DelegationDuration metric.Float64Histogram
	TaskDuration       metric.Float64Histogram
}

// NewMetrics creates all metric instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksStarted, err = meter.Int64Counter("tubedigest.tasks.started",
		metric.WithDescription("Number of tasks started"))
	if err != nil {
		return nil, err
	}

	m.TasksFinished, err = meter.Int64Counter("tubedigest.tasks.finished",
		metric.WithDescription("Number of tasks finished"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("tubedigest.tasks.failed",
		metric.WithDescription("Number of tasks failed, by reason code"))
	if err != nil {
		return nil, err
	}

	m.ItemsFailed, err = meter.Int64Counter("tubedigest.items.failed",
		metric.WithDescription("Number of fan-out items that failed"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("tubedigest.toolcalls",
		metric.WithDescription("Number of tool calls, by tool and outcome"))
	if err != nil {
		return nil, err
	}

	m.ToolDuration, err = meter.Float64Histogram("tubedigest.toolcall.duration_seconds",
		metric.WithDescription("Tool call duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.DelegationDuration, err = meter.Float64Histogram("tubedigest.delegation.duration_seconds",
		metric.WithDescription("Delegation round trip in seconds"))
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("tubedigest.task.duration_seconds",
		metric.WithDescription("Task duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
