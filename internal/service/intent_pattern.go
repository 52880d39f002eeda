package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Strob0t/tubedigest/internal/domain"
	"github.com/Strob0t/tubedigest/internal/domain/task"
)

var (
	channelURLRe  = regexp.MustCompile(`youtube\.com/(?:channel/(UC[\w-]{10,})|(@[\w.-]+))`)
	channelIDRe   = regexp.MustCompile(`\b(UC[\w-]{22})\b`)
	channelWordRe = regexp.MustCompile(`(?i)\bchannel[:\s]+(@?[\w.-]+)`)
	playlistURLRe = regexp.MustCompile(`[?&]list=([\w-]+)`)
	playlistIDRe  = regexp.MustCompile(`\b((?:PL|UU|OL|FL|RD)[\w-]{10,})\b`)
	playlistWord  = regexp.MustCompile(`(?i)\bplaylist[:\s]+([\w-]+)`)
	dateRe        = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	relativeDayRe = regexp.MustCompile(`(?i)\b(today|yesterday)\b`)
)

// PatternResolver extracts intents from free text without any network call:
// channel ids or handles with a YYYY-MM-DD (or today/yesterday) date, or a
// playlist id. Text naming both, or neither, is unresolved.
type PatternResolver struct {
	now func() time.Time
}

// NewPatternResolver returns a PatternResolver using the local clock.
func NewPatternResolver() *PatternResolver {
	return &PatternResolver{now: time.Now}
}

// Resolve implements intent.Resolver.
func (p *PatternResolver) Resolve(_ context.Context, text string) (task.Intent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return task.Intent{}, fmt.Errorf("%w: empty input", domain.ErrIntentUnresolved)
	}

	playlist := firstMatch(text, playlistURLRe, playlistIDRe, playlistWord)
	channel := firstMatch(text, channelURLRe, channelIDRe, channelWordRe)
	date := p.date(text)

	var in task.Intent
	switch {
	case playlist != "" && channel != "":
		return task.Intent{}, fmt.Errorf("%w: both a playlist and a channel are mentioned", domain.ErrIntentUnresolved)
	case playlist != "":
		in.Playlist = &task.PlaylistID{PlaylistID: playlist}
	case channel != "" && date != "":
		in.ChannelDate = &task.ChannelDate{ChannelID: channel, Date: date}
	case channel != "":
		return task.Intent{}, fmt.Errorf("%w: channel %s without a date", domain.ErrIntentUnresolved, channel)
	default:
		return task.Intent{}, fmt.Errorf("%w: no channel or playlist found", domain.ErrIntentUnresolved)
	}
	if err := in.Validate(); err != nil {
		return task.Intent{}, fmt.Errorf("%w: %w", domain.ErrIntentUnresolved, err)
	}
	return in, nil
}

func (p *PatternResolver) date(text string) string {
	if m := dateRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := relativeDayRe.FindStringSubmatch(text); m != nil {
		d := p.now()
		if strings.EqualFold(m[1], "yesterday") {
			d = d.AddDate(0, 0, -1)
		}
		return d.Format(task.DateLayout)
	}
	return ""
}

// firstMatch returns the first non-empty capture group of the first pattern
// that matches.
func firstMatch(text string, res ...*regexp.Regexp) string {
	for _, re := range res {
		m := re.FindStringSubmatch(text)
		for _, g := range m[min(1, len(m)):] {
			if g != "" {
				return g
			}
		}
	}
	return ""
}
