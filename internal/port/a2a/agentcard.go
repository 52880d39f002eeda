package a2a

import (
	a2acore "github.com/a2aproject/a2a-go/a2a"
)

// CardInfo is what an agent says about itself in its card.
type CardInfo struct {
	Name        string
	Description string
	Version     string
	Skills      []a2acore.AgentSkill
}

// BuildAgentCard returns the agent card served at /.well-known/agent.json.
// Every tubedigest agent streams progress events.
func BuildAgentCard(baseURL string, info CardInfo) a2acore.AgentCard {
	version := info.Version
	if version == "" {
		version = "0.1.0"
	}
	return a2acore.AgentCard{
		Name:               info.Name,
		Description:        info.Description,
		URL:                baseURL,
		Version:            version,
		DefaultInputModes:  []string{"text", "application/json"},
		DefaultOutputModes: []string{"application/json"},
		Capabilities:       a2acore.AgentCapabilities{Streaming: true},
		Skills:             info.Skills,
	}
}
