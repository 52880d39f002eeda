package service_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/tubedigest/internal/domain/task"
	"github.com/Strob0t/tubedigest/internal/port/a2a"
	"github.com/Strob0t/tubedigest/internal/port/intent"
	"github.com/Strob0t/tubedigest/internal/service"
)

var orchCfg = service.OrchestratorConfig{
	MaxParallel:       4,
	SummarizeTool:     "summarize_video",
	CombineTool:       "combine_summaries",
	DelegationTimeout: 5 * time.Second,
}

func playlistRequest(stream bool) *task.Request {
	return &task.Request{
		ID:     "orch-1",
		Input:  task.Input{Intent: &task.Intent{Playlist: &task.PlaylistID{PlaylistID: "PL1"}}},
		Stream: stream,
	}
}

func TestOrchestrator_PartialSuccess(t *testing.T) {
	tools := newFakeTools()
	finder := finderReturning("a", "fail-b", "c")
	svc := service.NewOrchestratorService(finder, tools, nil, nil, orchCfg)
	em := &recordingEmitter{}

	final := svc.Execute(context.Background(), playlistRequest(true), em)

	if final.Type != task.EventFinished {
		t.Fatalf("final = %s (%v), want finished", final.Type, final.Reason)
	}
	if got, want := tools.combined, [][]string{{"sum:a", "sum:c"}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("combine input = %v, want %v", got, want)
	}
	res := final.Result
	if res.Combined != "sum:a|sum:c" {
		t.Fatalf("combined = %q", res.Combined)
	}
	if !reflect.DeepEqual(res.VideoIDs, []string{"a", "fail-b", "c"}) {
		t.Fatalf("video_ids = %v", res.VideoIDs)
	}
	if len(res.Failed) != 1 || res.Failed[0].Index != 1 || res.Failed[0].VideoID != "fail-b" {
		t.Fatalf("failed = %+v", res.Failed)
	}
	if res.Failed[0].Reason.Code != task.CodeToolFailure || res.Failed[0].Reason.Hop != "tool:summarize_video" {
		t.Fatalf("failed reason = %+v", res.Failed[0].Reason)
	}

	types := em.types()
	want := []task.EventType{task.EventStarted, task.EventDelegationComplete,
		task.EventItemComplete, task.EventItemComplete, task.EventItemComplete, task.EventCombining}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	if em.events[1].Count != 3 {
		t.Fatalf("delegation_complete count = %d", em.events[1].Count)
	}
	for _, it := range em.items() {
		if it.OK != !strings.HasPrefix(it.Item, "fail") {
			t.Fatalf("item %+v has wrong status", it)
		}
	}
}

func TestOrchestrator_AllItemsFailed(t *testing.T) {
	tools := newFakeTools()
	svc := service.NewOrchestratorService(finderReturning("fail-1", "fail-2"), tools, nil, nil, orchCfg)
	em := &recordingEmitter{}

	final := svc.Execute(context.Background(), playlistRequest(true), em)

	if final.Type != task.EventFailed || final.Reason.Code != task.CodeAllItemsFailed {
		t.Fatalf("final = %s %+v, want all_items_failed", final.Type, final.Reason)
	}
	if n := tools.count("combine_summaries"); n != 0 {
		t.Fatalf("combine called %d times", n)
	}
	if len(em.items()) != 2 {
		t.Fatalf("expected 2 item events, got %d", len(em.items()))
	}
	for _, ty := range em.types() {
		if ty == task.EventCombining {
			t.Fatal("combining must not be emitted")
		}
	}
}

func TestOrchestrator_CombineFailed(t *testing.T) {
	tools := newFakeTools()
	tools.combineErr = fmt.Errorf("model overloaded")
	svc := service.NewOrchestratorService(finderReturning("a"), tools, nil, nil, orchCfg)

	final := svc.Execute(context.Background(), playlistRequest(false), &recordingEmitter{})

	if final.Type != task.EventFailed || final.Reason.Code != task.CodeCombineFailed {
		t.Fatalf("final = %s %+v, want combine_failed", final.Type, final.Reason)
	}
	if final.Reason.Hop != "tool:combine_summaries" {
		t.Fatalf("hop = %q", final.Reason.Hop)
	}
}

func TestOrchestrator_FinderFailureForwardedVerbatim(t *testing.T) {
	want := task.Reason{Code: task.CodeToolFailure, Message: "quota exceeded", Hop: task.HopFinder}
	finder := &fakeFinder{reply: func(a2a.Envelope) task.Event { return task.Failed(want) }}
	tools := newFakeTools()
	svc := service.NewOrchestratorService(finder, tools, nil, nil, orchCfg)

	final := svc.Execute(context.Background(), playlistRequest(true), &recordingEmitter{})

	if final.Type != task.EventFailed || *final.Reason != want {
		t.Fatalf("final = %s %+v, want %+v", final.Type, final.Reason, want)
	}
	if n := tools.count("summarize_video"); n != 0 {
		t.Fatalf("summarize called %d times after failed delegation", n)
	}
}

func TestOrchestrator_DelegationEnvelope(t *testing.T) {
	finder := finderReturning("a")
	svc := service.NewOrchestratorService(finder, newFakeTools(), nil, nil, orchCfg)
	req := playlistRequest(true)

	svc.Execute(context.Background(), req, &recordingEmitter{})

	if finder.calls() != 1 {
		t.Fatalf("delegations = %d, want 1", finder.calls())
	}
	env := finder.envs[0]
	if env.ParentTaskID != req.ID || env.TaskID == "" || env.TaskID == req.ID {
		t.Fatalf("bad correlation: %+v", env)
	}
	if !env.Stream {
		t.Fatal("streaming preference not propagated")
	}
	if env.TimeoutMS != orchCfg.DelegationTimeout.Milliseconds() {
		t.Fatalf("timeout_ms = %d", env.TimeoutMS)
	}
	if env.Input.Intent == nil || env.Input.Intent.Playlist.PlaylistID != "PL1" {
		t.Fatalf("intent not forwarded: %+v", env.Input)
	}
}

func TestOrchestrator_UnparsableInput(t *testing.T) {
	finder := finderReturning("a")
	tools := newFakeTools()
	svc := service.NewOrchestratorService(finder, tools, nil, nil, orchCfg)
	req := &task.Request{ID: "orch-3", Input: task.Input{Text: "what's up with cooking videos?"}}

	final := svc.Execute(context.Background(), req, &recordingEmitter{})

	if final.Type != task.EventFailed || final.Reason.Code != task.CodeIntentUnresolved {
		t.Fatalf("final = %s %+v, want intent_unresolved", final.Type, final.Reason)
	}
	if final.Reason.Class() != task.ClassClientError {
		t.Fatalf("class = %s, want ClientError", final.Reason.Class())
	}
	if finder.calls() != 0 || tools.count("summarize_video") != 0 || tools.count("combine_summaries") != 0 {
		t.Fatal("no network calls expected")
	}
}

func TestOrchestrator_FreeTextIntent(t *testing.T) {
	finder := finderReturning("a")
	resolver := intent.ResolverFunc(func(context.Context, string) (task.Intent, error) {
		return task.Intent{ChannelDate: &task.ChannelDate{ChannelID: "UCx", Date: "2024-05-01"}}, nil
	})
	svc := service.NewOrchestratorService(finder, newFakeTools(), resolver, nil, orchCfg)

	final := svc.Execute(context.Background(), &task.Request{ID: "t", Input: task.Input{Text: "anything"}}, &recordingEmitter{})

	if final.Type != task.EventFinished {
		t.Fatalf("final = %s %+v", final.Type, final.Reason)
	}
	if cd := finder.envs[0].Input.Intent.ChannelDate; cd == nil || cd.ChannelID != "UCx" {
		t.Fatalf("resolved intent not delegated: %+v", finder.envs[0].Input.Intent)
	}
}

func TestOrchestrator_SummaryCache(t *testing.T) {
	mem := newMemCache()
	summaries := service.NewSummaryCache(mem, time.Hour)
	summaries.Put(context.Background(), "a", "cached:a")

	tools := newFakeTools()
	svc := service.NewOrchestratorService(finderReturning("a", "b"), tools, nil, summaries, orchCfg)
	em := &recordingEmitter{}

	final := svc.Execute(context.Background(), playlistRequest(true), em)

	if final.Type != task.EventFinished {
		t.Fatalf("final = %s %+v", final.Type, final.Reason)
	}
	if n := tools.count("summarize_video"); n != 1 {
		t.Fatalf("summarize calls = %d, want 1", n)
	}
	if final.Result.Combined != "cached:a|sum:b" {
		t.Fatalf("combined = %q", final.Result.Combined)
	}
	if got, ok := summaries.Get(context.Background(), "b"); !ok || got != "sum:b" {
		t.Fatalf("summary of b not cached: %q %v", got, ok)
	}
	for _, it := range em.items() {
		if !it.OK {
			t.Fatalf("cache hit must be a success: %+v", it)
		}
	}
}

func TestOrchestrator_FanOutAlignment(t *testing.T) {
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("v%02d", i)
		if i%3 == 0 {
			ids[i] = "fail" + ids[i]
		}
	}
	tools := newFakeTools()
	// Later items finish first.
	tools.delay = func(id string) time.Duration {
		var n int
		_, _ = fmt.Sscanf(strings.TrimPrefix(id, "fail"), "v%d", &n)
		return time.Duration(20-n) * time.Millisecond
	}
	svc := service.NewOrchestratorService(finderReturning(ids...), tools, nil, nil, orchCfg)
	em := &recordingEmitter{}

	final := svc.Execute(context.Background(), playlistRequest(true), em)
	if final.Type != task.EventFinished {
		t.Fatalf("final = %s %+v", final.Type, final.Reason)
	}

	items := em.items()
	if len(items) != len(ids) {
		t.Fatalf("item events = %d, want %d", len(items), len(ids))
	}
	seen := make(map[int]bool)
	for _, it := range items {
		if seen[it.Index] {
			t.Fatalf("index %d reported twice", it.Index)
		}
		seen[it.Index] = true
		if it.Item != ids[it.Index] {
			t.Fatalf("index %d carries %s, want %s", it.Index, it.Item, ids[it.Index])
		}
		if it.OK && it.Summary != "sum:"+ids[it.Index] {
			t.Fatalf("index %d summary %q", it.Index, it.Summary)
		}
	}

	var wantCombined []string
	for _, id := range ids {
		if !strings.HasPrefix(id, "fail") {
			wantCombined = append(wantCombined, "sum:"+id)
		}
	}
	if !reflect.DeepEqual(tools.combined[0], wantCombined) {
		t.Fatalf("combine order = %v, want %v", tools.combined[0], wantCombined)
	}
	if len(final.Result.Failed) != 7 {
		t.Fatalf("failed entries = %d, want 7", len(final.Result.Failed))
	}
}

func TestOrchestrator_AbandonedStopsEmitting(t *testing.T) {
	tools := newFakeTools()
	svc := service.NewOrchestratorService(finderReturning("a", "b"), tools, nil, nil, orchCfg)
	// started succeeds, delegation_complete reports the subscriber gone.
	em := &recordingEmitter{abandonAt: 2}

	svc.Execute(context.Background(), playlistRequest(true), em)

	if em.attempts != 2 {
		t.Fatalf("emit attempts = %d, want 2", em.attempts)
	}
	if n := tools.count("summarize_video"); n != 0 {
		t.Fatalf("fan-out ran after abandonment: %d calls", n)
	}
}

func TestOrchestrator_AbandonedDuringFanOut(t *testing.T) {
	tools := newFakeTools()
	svc := service.NewOrchestratorService(finderReturning("a", "b", "c"), tools, nil, nil, service.OrchestratorConfig{
		MaxParallel: 1, SummarizeTool: "summarize_video", CombineTool: "combine_summaries",
	})
	// started, delegation_complete, first item; the second item finds no subscriber.
	em := &recordingEmitter{abandonAt: 4}

	svc.Execute(context.Background(), playlistRequest(true), em)

	if n := tools.count("summarize_video"); n != 3 {
		t.Fatalf("in-flight items must complete: %d summarize calls", n)
	}
	if n := tools.count("combine_summaries"); n != 0 {
		t.Fatalf("combine ran after abandonment")
	}
	if em.attempts != 4 {
		t.Fatalf("emit attempts = %d, want 4", em.attempts)
	}
}

func TestOrchestrator_DelegationTimeout(t *testing.T) {
	// The finder answers only after the test ends.
	release := make(chan struct{})
	slow := a2a.ExecutorFunc(func(_ context.Context, _ *task.Request, _ task.Emitter) task.Event {
		<-release
		return task.Finished(task.Result{VideoIDs: []string{"late"}})
	})
	srv := a2a.NewServer(slow, a2a.ServerConfig{Agent: task.HopFinder})
	r := chi.NewRouter()
	srv.MountRoutes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })

	client := a2a.NewClient(a2a.ClientConfig{Peer: task.HopFinder, BaseURL: ts.URL, Timeout: 100 * time.Millisecond})
	tools := newFakeTools()
	cfg := orchCfg
	cfg.DelegationTimeout = 100 * time.Millisecond
	svc := service.NewOrchestratorService(client, tools, nil, nil, cfg)

	for _, stream := range []bool{false, true} {
		t.Run(fmt.Sprintf("stream=%v", stream), func(t *testing.T) {
			em := &recordingEmitter{}
			start := time.Now()
			final := svc.Execute(context.Background(), playlistRequest(stream), em)

			if final.Type != task.EventFailed || final.Reason.Code != task.CodeUpstreamTimeout {
				t.Fatalf("final = %s %+v, want upstream_timeout", final.Type, final.Reason)
			}
			if final.Reason.Hop != task.HopFinder {
				t.Fatalf("hop = %q", final.Reason.Hop)
			}
			if time.Since(start) > 3*time.Second {
				t.Fatal("timeout not enforced")
			}
			if tools.count("summarize_video") != 0 {
				t.Fatal("fan-out must not start")
			}
			for _, ty := range em.types() {
				if ty == task.EventDelegationComplete {
					t.Fatal("delegation_complete must not be emitted")
				}
			}
		})
	}
}
