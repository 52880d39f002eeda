// Package task defines the Task Request, intent, progress events and state
// machines shared by the finder and orchestrator agents.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/tubedigest/internal/domain"
)

// DateLayout is the layout of ChannelDate.Date.
const DateLayout = "2006-01-02"

// ChannelDate selects the videos a channel published on one day.
type ChannelDate struct {
	ChannelID string `json:"channel_id"`
	Date      string `json:"date"`
}

// PlaylistID selects the videos of a playlist.
type PlaylistID struct {
	PlaylistID string `json:"playlist_id"`
}

// Intent is the structured form of a request. Exactly one field must be set.
type Intent struct {
	ChannelDate *ChannelDate `json:"channel_date,omitempty"`
	Playlist    *PlaylistID  `json:"playlist,omitempty"`
}

// Validate checks that exactly one variant is present and well-formed.
func (i *Intent) Validate() error {
	if i == nil {
		return fmt.Errorf("%w: intent is required", domain.ErrValidation)
	}
	switch {
	case i.ChannelDate != nil && i.Playlist != nil:
		return fmt.Errorf("%w: intent must not contain both channel_date and playlist", domain.ErrValidation)
	case i.ChannelDate == nil && i.Playlist == nil:
		return fmt.Errorf("%w: intent must contain channel_date or playlist", domain.ErrValidation)
	case i.ChannelDate != nil:
		if strings.TrimSpace(i.ChannelDate.ChannelID) == "" {
			return fmt.Errorf("%w: channel_id is required", domain.ErrValidation)
		}
		if _, err := time.Parse(DateLayout, i.ChannelDate.Date); err != nil {
			return fmt.Errorf("%w: date %q is not YYYY-MM-DD", domain.ErrValidation, i.ChannelDate.Date)
		}
	default:
		if strings.TrimSpace(i.Playlist.PlaylistID) == "" {
			return fmt.Errorf("%w: playlist_id is required", domain.ErrValidation)
		}
	}
	return nil
}

// String renders the intent for logs.
func (i *Intent) String() string {
	switch {
	case i == nil:
		return "<none>"
	case i.ChannelDate != nil && i.Playlist == nil:
		return "channel " + i.ChannelDate.ChannelID + " on " + i.ChannelDate.Date
	case i.Playlist != nil && i.ChannelDate == nil:
		return "playlist " + i.Playlist.PlaylistID
	}
	return "<invalid>"
}

// Input is the raw input of a request: free text, a structured intent, or both.
// A structured intent takes precedence over text.
type Input struct {
	Text   string  `json:"text,omitempty"`
	Intent *Intent `json:"intent,omitempty"`
}

// Request is an immutable Task Request.
type Request struct {
	ID       string `json:"task_id"`
	ParentID string `json:"parent_task_id,omitempty"`
	Input    Input  `json:"input"`
	Stream   bool   `json:"stream"`
}

// Validate checks the request envelope itself; intent checks are left to the agents.
func (r *Request) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: task_id is required", domain.ErrValidation)
	}
	if r.Input.Intent == nil && strings.TrimSpace(r.Input.Text) == "" {
		return fmt.Errorf("%w: input is empty", domain.ErrValidation)
	}
	return nil
}
