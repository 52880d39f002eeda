package service_test

import (
	"context"
	"testing"

	"github.com/Strob0t/tubedigest/internal/domain"
	"github.com/Strob0t/tubedigest/internal/domain/task"
	"github.com/Strob0t/tubedigest/internal/port/intent"
	"github.com/Strob0t/tubedigest/internal/port/tool"
	"github.com/Strob0t/tubedigest/internal/service"
)

var finderCfg = service.FinderConfig{
	ChannelTool:  "get_channel_videos_by_date",
	PlaylistTool: "get_playlist_videos",
}

type recordedCall struct {
	calls []tool.Call
}

func (r *recordedCall) invoker(res *tool.Result, err error) tool.Invoker {
	return tool.InvokerFunc(func(_ context.Context, call tool.Call) (*tool.Result, error) {
		r.calls = append(r.calls, call)
		return res, err
	})
}

func TestFinder_ChannelDate(t *testing.T) {
	rec := &recordedCall{}
	svc := service.NewFinderService(rec.invoker(&tool.Result{Texts: []string{`["v1","v2"]`}}, nil), finderCfg)
	em := &recordingEmitter{}
	req := &task.Request{ID: "f1", Input: task.Input{Intent: &task.Intent{
		ChannelDate: &task.ChannelDate{ChannelID: "UC1", Date: "2024-05-01"},
	}}, Stream: true}

	final := svc.Execute(context.Background(), req, em)

	if final.Type != task.EventFinished {
		t.Fatalf("final = %s %+v", final.Type, final.Reason)
	}
	if got := final.Result.VideoIDs; len(got) != 2 || got[0] != "v1" || got[1] != "v2" {
		t.Fatalf("video_ids = %v", got)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(rec.calls))
	}
	c := rec.calls[0]
	if c.Tool != finderCfg.ChannelTool || c.Args["channel_id"] != "UC1" || c.Args["date"] != "2024-05-01" {
		t.Fatalf("call = %+v", c)
	}
	if types := em.types(); len(types) != 1 || types[0] != task.EventStarted {
		t.Fatalf("progress events = %v, want [started]", types)
	}
}

func TestFinder_Playlist(t *testing.T) {
	rec := &recordedCall{}
	svc := service.NewFinderService(rec.invoker(&tool.Result{Structured: map[string]any{"video_ids": []any{"p1"}}}, nil), finderCfg)
	req := &task.Request{ID: "f2", Input: task.Input{Intent: &task.Intent{Playlist: &task.PlaylistID{PlaylistID: "PL9"}}}}

	final := svc.Execute(context.Background(), req, &recordingEmitter{})

	if final.Type != task.EventFinished || final.Result.VideoIDs[0] != "p1" {
		t.Fatalf("final = %s %+v", final.Type, final.Result)
	}
	if rec.calls[0].Tool != finderCfg.PlaylistTool || rec.calls[0].Args["playlist_id"] != "PL9" {
		t.Fatalf("call = %+v", rec.calls[0])
	}
}

func TestFinder_Failures(t *testing.T) {
	channel := &task.Intent{ChannelDate: &task.ChannelDate{ChannelID: "UC1", Date: "2024-05-01"}}
	tests := []struct {
		name      string
		input     task.Input
		res       *tool.Result
		err       error
		wantCode  task.Code
		wantCalls int
	}{
		{"both variants", task.Input{Intent: &task.Intent{
			ChannelDate: channel.ChannelDate, Playlist: &task.PlaylistID{PlaylistID: "PL"},
		}}, nil, nil, task.CodeClientError, 0},
		{"bad date", task.Input{Intent: &task.Intent{
			ChannelDate: &task.ChannelDate{ChannelID: "UC1", Date: "May 1st"},
		}}, nil, nil, task.CodeClientError, 0},
		{"free text without resolver", task.Input{Text: "videos please"}, nil, nil, task.CodeClientError, 0},
		{"error prefix", task.Input{Intent: channel}, &tool.Result{Texts: []string{`["Error: channel not found"]`}}, nil, task.CodeToolFailure, 1},
		{"empty list", task.Input{Intent: channel}, &tool.Result{Texts: []string{`[]`}}, nil, task.CodeToolFailure, 1},
		{"malformed", task.Input{Intent: channel}, &tool.Result{Texts: []string{`{"nope":1}`}}, nil, task.CodeToolFailure, 1},
		{"unreachable", task.Input{Intent: channel}, nil, &tool.Error{Tool: "t", Kind: tool.KindUnavailable, Message: "dial"}, task.CodeToolFailure, 1},
		{"auth", task.Input{Intent: channel}, nil, &tool.Error{Tool: "t", Kind: tool.KindAuth, Message: "403"}, task.CodeAuthFailure, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordedCall{}
			svc := service.NewFinderService(rec.invoker(tt.res, tt.err), finderCfg)

			final := svc.Execute(context.Background(), &task.Request{ID: "f", Input: tt.input}, &recordingEmitter{})

			if final.Type != task.EventFailed {
				t.Fatalf("final = %s, want failed", final.Type)
			}
			if final.Reason.Code != tt.wantCode {
				t.Fatalf("code = %s, want %s (%s)", final.Reason.Code, tt.wantCode, final.Reason.Message)
			}
			if final.Reason.Hop != task.HopFinder {
				t.Fatalf("hop = %q", final.Reason.Hop)
			}
			if len(rec.calls) != tt.wantCalls {
				t.Fatalf("tool calls = %d, want %d", len(rec.calls), tt.wantCalls)
			}
		})
	}
}

func TestFinder_FreeText(t *testing.T) {
	rec := &recordedCall{}
	svc := service.NewFinderService(rec.invoker(&tool.Result{Texts: []string{"v1"}}, nil), finderCfg)
	svc.SetIntentResolver(intent.ResolverFunc(func(context.Context, string) (task.Intent, error) {
		return task.Intent{}, domain.ErrIntentUnresolved
	}))

	final := svc.Execute(context.Background(), &task.Request{ID: "f", Input: task.Input{Text: "??"}}, &recordingEmitter{})
	if final.Type != task.EventFailed || final.Reason.Code != task.CodeIntentUnresolved {
		t.Fatalf("final = %s %+v", final.Type, final.Reason)
	}

	svc.SetIntentResolver(service.NewPatternResolver())
	final = svc.Execute(context.Background(), &task.Request{ID: "g", Input: task.Input{Text: "playlist PLabc"}}, &recordingEmitter{})
	if final.Type != task.EventFinished {
		t.Fatalf("final = %s %+v", final.Type, final.Reason)
	}
	if len(rec.calls) != 1 || rec.calls[0].Args["playlist_id"] != "PLabc" {
		t.Fatalf("calls = %+v", rec.calls)
	}
}

func TestFinder_FreeTextInvalidResolution(t *testing.T) {
	tests := []struct {
		name     string
		resolved task.Intent
	}{
		{"both variants", task.Intent{
			ChannelDate: &task.ChannelDate{ChannelID: "UC1", Date: "2024-05-01"},
			Playlist:    &task.PlaylistID{PlaylistID: "PL1"},
		}},
		{"neither variant", task.Intent{}},
		{"bad date", task.Intent{ChannelDate: &task.ChannelDate{ChannelID: "UC1", Date: "yesterday"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordedCall{}
			svc := service.NewFinderService(rec.invoker(&tool.Result{Texts: []string{`["v1"]`}}, nil), finderCfg)
			svc.SetIntentResolver(intent.ResolverFunc(func(context.Context, string) (task.Intent, error) {
				return tt.resolved, nil
			}))

			final := svc.Execute(context.Background(), &task.Request{ID: "f", Input: task.Input{Text: "anything"}}, &recordingEmitter{})

			if final.Type != task.EventFailed {
				t.Fatalf("final = %s, want failed", final.Type)
			}
			if final.Reason.Code != task.CodeIntentUnresolved {
				t.Fatalf("code = %s, want %s", final.Reason.Code, task.CodeIntentUnresolved)
			}
			if len(rec.calls) != 0 {
				t.Fatalf("tool calls = %d, want 0", len(rec.calls))
			}
		})
	}
}
