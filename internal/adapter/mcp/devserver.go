package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Dev tool names, matching the default tool configuration.
const (
	ToolChannelVideos = "get_channel_videos_by_date"
	ToolPlaylist      = "get_playlist_videos"
	ToolSummarize     = "summarize_video"
	ToolCombine       = "combine_summaries"
)

// Inputs starting with FailPrefix make the dev tools report an error.
const FailPrefix = "fail"

// DevServer is a deterministic MCP tool server for local runs and tests.
// Video ids are derived from the inputs; nothing leaves the process.
type DevServer struct {
	mcp *mcpserver.MCPServer
}

// NewDevServer registers the dev tools on a fresh MCP server.
func NewDevServer(name, version string) *DevServer {
	s := &DevServer{
		mcp: mcpserver.NewMCPServer(name, version, mcpserver.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *DevServer) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// Handler serves the tools over streamable HTTP at /mcp. A non-empty apiKey
// requires it as bearer token.
func (s *DevServer) Handler(apiKey string) http.Handler {
	return requireKey(apiKey, mcpserver.NewStreamableHTTPServer(s.mcp))
}

func (s *DevServer) registerTools() {
	s.mcp.AddTools(
		mcpserver.ServerTool{
			Tool: mcplib.NewTool(ToolChannelVideos,
				mcplib.WithDescription("List the videos a channel published on a date"),
				mcplib.WithString("channel_id", mcplib.Required(), mcplib.Description("YouTube channel id")),
				mcplib.WithString("date", mcplib.Required(), mcplib.Description("Publication date, YYYY-MM-DD")),
			),
			Handler: s.handleChannelVideos,
		},
		mcpserver.ServerTool{
			Tool: mcplib.NewTool(ToolPlaylist,
				mcplib.WithDescription("List the videos of a playlist"),
				mcplib.WithString("playlist_id", mcplib.Required(), mcplib.Description("YouTube playlist id")),
			),
			Handler: s.handlePlaylist,
		},
		mcpserver.ServerTool{
			Tool: mcplib.NewTool(ToolSummarize,
				mcplib.WithDescription("Summarize one video"),
				mcplib.WithString("video_id", mcplib.Required(), mcplib.Description("YouTube video id")),
			),
			Handler: s.handleSummarize,
		},
		mcpserver.ServerTool{
			Tool: mcplib.NewTool(ToolCombine,
				mcplib.WithDescription("Combine per-video summaries into one digest"),
				mcplib.WithArray("summaries", mcplib.Required(), mcplib.Description("Summaries to combine")),
			),
			Handler: s.handleCombine,
		},
	)
}

func (s *DevServer) handleChannelVideos(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	args := req.GetArguments()
	channel, _ := args["channel_id"].(string)
	date, _ := args["date"].(string)
	if channel == "" || date == "" {
		return mcplib.NewToolResultError("channel_id and date are required"), nil
	}
	if strings.HasPrefix(channel, FailPrefix) {
		return mcplib.NewToolResultError("channel not found: " + channel), nil
	}
	return jsonResult(videoIDs(channel+"/"+date, 3))
}

func (s *DevServer) handlePlaylist(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	playlist, _ := req.GetArguments()["playlist_id"].(string)
	if playlist == "" {
		return mcplib.NewToolResultError("playlist_id is required"), nil
	}
	if strings.HasPrefix(playlist, FailPrefix) {
		return mcplib.NewToolResultError("playlist not found: " + playlist), nil
	}
	return jsonResult(videoIDs(playlist, 4))
}

func (s *DevServer) handleSummarize(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, _ := req.GetArguments()["video_id"].(string)
	if id == "" {
		return mcplib.NewToolResultError("video_id is required"), nil
	}
	if strings.HasPrefix(id, FailPrefix) {
		return mcplib.NewToolResultError("no transcript for " + id), nil
	}
	return jsonResult(map[string]string{"summary": "Summary of video " + id + "."})
}

func (s *DevServer) handleCombine(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	raw, _ := req.GetArguments()["summaries"].([]any)
	if len(raw) == 0 {
		return mcplib.NewToolResultError("summaries must not be empty"), nil
	}
	parts := make([]string, 0, len(raw))
	for i, v := range raw {
		text, ok := v.(string)
		if !ok {
			return mcplib.NewToolResultError(fmt.Sprintf("summaries[%d] is not a string", i)), nil
		}
		parts = append(parts, "- "+text)
	}
	combined := fmt.Sprintf("Digest of %d videos:\n%s", len(parts), strings.Join(parts, "\n"))
	return jsonResult(map[string]string{"combined_summary": combined})
}

// videoIDs derives n stable 11-character ids from seed.
func videoIDs(seed string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", seed, i)))
		ids[i] = hex.EncodeToString(sum[:])[:11]
	}
	return ids
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("encode result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
