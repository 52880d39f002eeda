package service

import (
	a2acore "github.com/a2aproject/a2a-go/a2a"

	"github.com/Strob0t/tubedigest/internal/port/a2a"
)

// FinderCard describes the finder agent.
func FinderCard(version string) a2a.CardInfo {
	return a2a.CardInfo{
		Name:        "YouTube Video Finder",
		Description: "Finds the videos a channel published on a date, or the videos of a playlist.",
		Version:     version,
		Skills: []a2acore.AgentSkill{{
			ID:          "find_videos",
			Name:        "Find videos",
			Description: "Returns an ordered list of video ids for a channel and date, or for a playlist.",
			Tags:        []string{"youtube", "search"},
			Examples: []string{
				`{"channel_date":{"channel_id":"UCxxxxxxxxxxxxxxxxxxxxxx","date":"2024-05-01"}}`,
				`{"playlist":{"playlist_id":"PLxxxxxxxx"}}`,
			},
		}},
	}
}

// OrchestratorCard describes the orchestrator agent.
func OrchestratorCard(version string) a2a.CardInfo {
	return a2a.CardInfo{
		Name:        "YouTube Summary Orchestrator",
		Description: "Finds videos, summarizes each one and combines the summaries into a digest.",
		Version:     version,
		Skills: []a2acore.AgentSkill{{
			ID:          "summarize_videos",
			Name:        "Summarize videos",
			Description: "Summarizes a channel's videos for a date, or a playlist, with progress updates.",
			Tags:        []string{"youtube", "summary"},
			Examples: []string{
				"Summarize the videos channel UCxxxxxxxxxxxxxxxxxxxxxx posted on 2024-05-01",
				"Summarize playlist PLxxxxxxxx",
			},
		}},
	}
}
