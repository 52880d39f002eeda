// Package openai resolves free-text requests into structured intents with
// the OpenAI Chat Completions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Strob0t/tubedigest/internal/domain"
	"github.com/Strob0t/tubedigest/internal/domain/task"
	"github.com/Strob0t/tubedigest/internal/secrets"
)

const systemPrompt = `You extract YouTube listing requests.
Reply with one JSON object and nothing else, using exactly these keys:
{"channel_id": "", "date": "", "playlist_id": ""}
Fill channel_id and date (YYYY-MM-DD) when the user asks for a channel's videos on a day.
Fill playlist_id when the user asks for a playlist. Leave unknown fields empty.
If the request is neither, return all fields empty.`

// Options configure the intent resolver.
type Options struct {
	Model        string
	BaseURL      string
	APIKeySecret string
}

// IntentResolver asks a chat model for a strict JSON intent.
type IntentResolver struct {
	client openai.Client
	opts   Options
	creds  *secrets.Cache
}

// NewIntentResolver creates a resolver. The API key is resolved through creds
// under opts.APIKeySecret; with no secret configured the SDK falls back to
// OPENAI_API_KEY.
func NewIntentResolver(opts Options, creds *secrets.Cache) *IntentResolver {
	if opts.Model == "" {
		opts.Model = openai.ChatModelGPT4oMini
	}
	reqOpts := []option.RequestOption{option.WithMaxRetries(1)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")+"/"))
	}
	if creds == nil {
		opts.APIKeySecret = ""
	}
	return &IntentResolver{
		client: openai.NewClient(reqOpts...),
		opts:   opts,
		creds:  creds,
	}
}

// Resolve implements intent.Resolver. Rejected credentials surface as
// domain.ErrAuthFailure after one refresh; anything else the model cannot
// map is domain.ErrIntentUnresolved.
func (r *IntentResolver) Resolve(ctx context.Context, text string) (task.Intent, error) {
	content, err := secrets.WithAuthRetry(ctx, r.creds, r.opts.APIKeySecret, func(ctx context.Context, key secrets.Value) (string, error) {
		return r.complete(ctx, text, key)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAuthFailure) {
			return task.Intent{}, err
		}
		return task.Intent{}, fmt.Errorf("%w: %w", domain.ErrIntentUnresolved, err)
	}
	return parseIntent(content)
}

func (r *IntentResolver) complete(ctx context.Context, text string, key secrets.Value) (string, error) {
	var callOpts []option.RequestOption
	if key != "" {
		callOpts = append(callOpts, option.WithAPIKey(key.Reveal()))
	}
	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		Model:       r.opts.Model,
		Temperature: openai.Float(0),
	}, callOpts...)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return "", fmt.Errorf("chat completion: status %d: %w", apiErr.StatusCode, domain.ErrAuthFailure)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type intentReply struct {
	ChannelID  string `json:"channel_id"`
	Date       string `json:"date"`
	PlaylistID string `json:"playlist_id"`
}

func parseIntent(content string) (task.Intent, error) {
	raw := strings.TrimSpace(content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var rep intentReply
	if err := json.Unmarshal([]byte(raw), &rep); err != nil {
		return task.Intent{}, fmt.Errorf("%w: model reply is not JSON: %w", domain.ErrIntentUnresolved, err)
	}

	var in task.Intent
	if rep.ChannelID != "" || rep.Date != "" {
		in.ChannelDate = &task.ChannelDate{ChannelID: rep.ChannelID, Date: rep.Date}
	}
	if rep.PlaylistID != "" {
		in.Playlist = &task.PlaylistID{PlaylistID: rep.PlaylistID}
	}
	if err := in.Validate(); err != nil {
		return task.Intent{}, fmt.Errorf("%w: %w", domain.ErrIntentUnresolved, err)
	}
	return in, nil
}
