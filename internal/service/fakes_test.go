package service_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/tubedigest/internal/domain/task"
	"github.com/Strob0t/tubedigest/internal/port/a2a"
	"github.com/Strob0t/tubedigest/internal/port/tool"
)

// recordingEmitter collects emitted events. With abandonAt > 0 the emit
// with that 1-based number and every later one report ErrAbandoned.
type recordingEmitter struct {
	mu        sync.Mutex
	events    []task.Event
	attempts  int
	abandonAt int
}

func (e *recordingEmitter) Emit(_ context.Context, ev task.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts++
	if e.abandonAt > 0 && e.attempts >= e.abandonAt {
		return a2a.ErrAbandoned
	}
	e.events = append(e.events, ev)
	return nil
}

func (e *recordingEmitter) types() []task.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]task.EventType, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

func (e *recordingEmitter) items() []task.ItemOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []task.ItemOutcome
	for _, ev := range e.events {
		if ev.Type == task.EventItemComplete && ev.Outcome != nil {
			out = append(out, *ev.Outcome)
		}
	}
	return out
}

// fakeTools serves summarize and combine calls. Video ids starting with
// "fail" fail to summarize.
type fakeTools struct {
	mu         sync.Mutex
	calls      map[string]int
	combined   [][]string
	combineErr error
	delay      func(videoID string) time.Duration
}

func newFakeTools() *fakeTools {
	return &fakeTools{calls: make(map[string]int)}
}

func (f *fakeTools) Invoke(ctx context.Context, call tool.Call) (*tool.Result, error) {
	f.mu.Lock()
	f.calls[call.Tool]++
	f.mu.Unlock()

	switch call.Tool {
	case "summarize_video":
		id, _ := call.Args["video_id"].(string)
		if f.delay != nil {
			select {
			case <-time.After(f.delay(id)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if strings.HasPrefix(id, "fail") {
			return nil, tool.Failure(call.Tool, "no transcript for %s", id)
		}
		return &tool.Result{Structured: map[string]any{"summary": "sum:" + id}}, nil
	case "combine_summaries":
		in, _ := call.Args["summaries"].([]string)
		f.mu.Lock()
		f.combined = append(f.combined, in)
		f.mu.Unlock()
		if f.combineErr != nil {
			return nil, f.combineErr
		}
		return &tool.Result{Texts: []string{`{"combined_summary":"` + strings.Join(in, "|") + `"}`}}, nil
	}
	return nil, tool.Failure(call.Tool, "unknown tool")
}

func (f *fakeTools) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// fakeFinder answers delegations with a fixed terminal event.
type fakeFinder struct {
	mu    sync.Mutex
	envs  []a2a.Envelope
	reply func(env a2a.Envelope) task.Event
}

func finderReturning(ids ...string) *fakeFinder {
	return &fakeFinder{reply: func(a2a.Envelope) task.Event {
		return task.Finished(task.Result{VideoIDs: ids})
	}}
}

func (f *fakeFinder) Delegate(_ context.Context, env a2a.Envelope, _ func(task.Event)) task.Event {
	f.mu.Lock()
	f.envs = append(f.envs, env)
	f.mu.Unlock()
	return f.reply(env)
}

func (f *fakeFinder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.envs)
}

// memCache is an in-memory cache.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
