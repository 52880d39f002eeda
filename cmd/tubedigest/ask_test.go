package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Strob0t/tubedigest/internal/domain/task"
)

func TestAskInput(t *testing.T) {
	tests := []struct {
		name    string
		flags   askFlags
		args    []string
		wantErr bool
		check   func(*testing.T, task.Input)
	}{
		{
			name: "free text",
			args: []string{"summarize", "playlist", "PL1"},
			check: func(t *testing.T, in task.Input) {
				if in.Text != "summarize playlist PL1" || in.Intent != nil {
					t.Fatalf("unexpected input %+v", in)
				}
			},
		},
		{
			name:  "channel",
			flags: askFlags{channel: "UC1", date: "2024-05-01"},
			check: func(t *testing.T, in task.Input) {
				if in.Intent == nil || in.Intent.ChannelDate == nil || in.Intent.ChannelDate.Date != "2024-05-01" {
					t.Fatalf("unexpected input %+v", in)
				}
			},
		},
		{
			name:  "playlist",
			flags: askFlags{playlist: "PL1"},
			check: func(t *testing.T, in task.Input) {
				if in.Intent == nil || in.Intent.Playlist == nil || in.Intent.Playlist.PlaylistID != "PL1" {
					t.Fatalf("unexpected input %+v", in)
				}
			},
		},
		{name: "empty", args: []string{"  "}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := tt.flags.input(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, in)
			}
		})
	}
}

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer
	printEvent(&buf, task.DelegationComplete(3), false)
	printEvent(&buf, task.ItemComplete(task.ItemOutcome{Index: 1, Item: "v2", Reason: &task.Reason{Code: task.CodeToolFailure, Message: "quota"}}), false)
	printEvent(&buf, task.Finished(task.Result{
		VideoIDs: []string{"v1", "v2", "v3"},
		Combined: "digest",
		Failed:   []task.ItemFailure{{Index: 1, VideoID: "v2"}},
	}), false)

	got := buf.String()
	for _, want := range []string{"found 3 videos", "[1] v2 failed: tool_failure: quota", "1 of 3 videos failed", "digest"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPrintEventJSON(t *testing.T) {
	var buf bytes.Buffer
	printEvent(&buf, task.Combining(), true)
	if !strings.Contains(buf.String(), `"type":"combining"`) {
		t.Fatalf("unexpected JSON line %s", buf.String())
	}
}

func TestRootCommands(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"finder", "orchestrator", "ask", "devtools", "watch"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}
