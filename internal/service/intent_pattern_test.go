package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/tubedigest/internal/domain"
)

func TestPatternResolver(t *testing.T) {
	channelID := "UC" + strings.Repeat("x", 22)
	p := &PatternResolver{now: func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }}

	tests := []struct {
		name        string
		text        string
		wantChannel string
		wantDate    string
		wantList    string
		wantErr     bool
	}{
		{"channel id and date", "videos from " + channelID + " on 2024-01-31", channelID, "2024-01-31", "", false},
		{"channel word", "summarize channel @veritasium for 2024-02-01", "@veritasium", "2024-02-01", "", false},
		{"channel url yesterday", "https://www.youtube.com/@lexfridman yesterday please", "@lexfridman", "2024-03-09", "", false},
		{"channel today", "channel: UCabc today", "UCabc", "2024-03-10", "", false},
		{"playlist url", "https://www.youtube.com/watch?v=abc&list=PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf", "", "", "PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf", false},
		{"playlist id", "digest PLrAXtmErZgOeiKm4sgNOk", "", "", "PLrAXtmErZgOeiKm4sgNOk", false},
		{"playlist word", "playlist my-list-1", "", "", "my-list-1", false},
		{"channel without date", "channel @someone", "", "", "", true},
		{"bad date", "channel @someone 2024-13-45", "", "", "", true},
		{"both", "channel @someone 2024-01-01 playlist PLabcdefghijkl", "", "", "", true},
		{"nothing", "tell me a joke", "", "", "", true},
		{"empty", "   ", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := p.Resolve(context.Background(), tt.text)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrIntentUnresolved) {
					t.Fatalf("expected ErrIntentUnresolved, got %v (intent %+v)", err, in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if tt.wantList != "" {
				if in.Playlist == nil || in.Playlist.PlaylistID != tt.wantList {
					t.Fatalf("playlist = %+v", in.Playlist)
				}
				return
			}
			if in.ChannelDate == nil || in.ChannelDate.ChannelID != tt.wantChannel || in.ChannelDate.Date != tt.wantDate {
				t.Fatalf("channel = %+v", in.ChannelDate)
			}
		})
	}
}
