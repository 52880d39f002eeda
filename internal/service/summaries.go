package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/tubedigest/internal/port/cache"
)

// SummaryCache stores per-video summaries. A nil *SummaryCache is a valid,
// always-missing cache. Cache errors never fail a summary.
type SummaryCache struct {
	c   cache.Cache
	ttl time.Duration
}

// NewSummaryCache wraps c; entries expire after ttl.
func NewSummaryCache(c cache.Cache, ttl time.Duration) *SummaryCache {
	return &SummaryCache{c: c, ttl: ttl}
}

// Get returns the cached summary of videoID.
func (s *SummaryCache) Get(ctx context.Context, videoID string) (string, bool) {
	if s == nil || s.c == nil {
		return "", false
	}
	val, found, err := s.c.Get(ctx, summaryKey(videoID))
	if err != nil {
		slog.WarnContext(ctx, "summary cache get failed", "video_id", videoID, "error", err)
		return "", false
	}
	if !found || len(val) == 0 {
		return "", false
	}
	return string(val), true
}

// Put caches summary for videoID.
func (s *SummaryCache) Put(ctx context.Context, videoID, summary string) {
	if s == nil || s.c == nil {
		return
	}
	if err := s.c.Set(ctx, summaryKey(videoID), []byte(summary), s.ttl); err != nil {
		slog.WarnContext(ctx, "summary cache set failed", "video_id", videoID, "error", err)
	}
}

func summaryKey(videoID string) string {
	return "summary." + videoID
}
