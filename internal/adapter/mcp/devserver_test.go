package mcp_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	tdmcp "github.com/Strob0t/tubedigest/internal/adapter/mcp"
)

func callDevTool(t *testing.T, s *tdmcp.DevServer, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tools := s.MCPServer().ListTools()
	st, ok := tools[name]
	if !ok {
		t.Fatalf("tool %s not registered", name)
	}
	req := mcplib.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := st.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}

func resultText(t *testing.T, res *mcplib.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty content")
	}
	tc, ok := res.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatalf("content type %T", res.Content[0])
	}
	return tc.Text
}

func TestDevServer_RegistersTools(t *testing.T) {
	s := tdmcp.NewDevServer("dev", "test")
	tools := s.MCPServer().ListTools()
	for _, name := range []string{tdmcp.ToolChannelVideos, tdmcp.ToolPlaylist, tdmcp.ToolSummarize, tdmcp.ToolCombine} {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing tool %s", name)
		}
	}
}

func TestDevServer_ChannelVideosDeterministic(t *testing.T) {
	s := tdmcp.NewDevServer("dev", "test")
	args := map[string]any{"channel_id": "UCabc", "date": "2024-05-01"}

	var first, second []string
	if err := json.Unmarshal([]byte(resultText(t, callDevTool(t, s, tdmcp.ToolChannelVideos, args))), &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(resultText(t, callDevTool(t, s, tdmcp.ToolChannelVideos, args))), &second); err != nil {
		t.Fatal(err)
	}
	if len(first) != 3 {
		t.Fatalf("got %d ids, want 3", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("ids differ between calls: %v vs %v", first, second)
		}
		if len(first[i]) != 11 {
			t.Fatalf("id %q is not 11 characters", first[i])
		}
	}
}

func TestDevServer_Failures(t *testing.T) {
	s := tdmcp.NewDevServer("dev", "test")
	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"missing channel args", tdmcp.ToolChannelVideos, map[string]any{}},
		{"failing channel", tdmcp.ToolChannelVideos, map[string]any{"channel_id": "failUC", "date": "2024-05-01"}},
		{"failing playlist", tdmcp.ToolPlaylist, map[string]any{"playlist_id": "failPL"}},
		{"failing video", tdmcp.ToolSummarize, map[string]any{"video_id": "fail-1"}},
		{"empty combine", tdmcp.ToolCombine, map[string]any{"summaries": []any{}}},
		{"non-string summary", tdmcp.ToolCombine, map[string]any{"summaries": []any{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := callDevTool(t, s, tt.tool, tt.args); !res.IsError {
				t.Fatalf("expected IsError, got %q", resultText(t, res))
			}
		})
	}
}

func TestDevServer_Combine(t *testing.T) {
	s := tdmcp.NewDevServer("dev", "test")
	res := callDevTool(t, s, tdmcp.ToolCombine, map[string]any{"summaries": []any{"one", "two"}})
	var out map[string]string
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	got := out["combined_summary"]
	if !strings.Contains(got, "2 videos") || !strings.Contains(got, "- one") || !strings.Contains(got, "- two") {
		t.Fatalf("combined_summary = %q", got)
	}
}
