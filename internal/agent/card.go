package agent

import (
	"fmt"

	"github.com/a2aproject/a2a-go/a2a"
)

const (
	AgentName        = "warehouse_manager_agent"
	AgentDescription = "A agent that can check the availability of items in the warehouses and reserve them."
	AgentVersion     = "1.0.0"
)

// NewAgentCard describes the warehouse agent to A2A clients
func NewAgentCard(host, port string) *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:               AgentName,
		Description:        AgentDescription,
		URL:                fmt.Sprintf("http://%s:%s/", host, port),
		Version:            AgentVersion,
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Capabilities:       a2a.AgentCapabilities{Streaming: true},
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		Skills: []a2a.AgentSkill{
			{
				ID:          "ABC",
				Name:        "Check Availability",
				Description: "Check the availability of items in the warehouses",
				Tags:        []string{"warehouse", "availability"},
				Examples:    []string{"what is the availability of the item 123?"},
			},
			{
				ID:          "DEF",
				Name:        "Reserve Items",
				Description: "Reserve items in the warehouses",
				Tags:        []string{"warehouse", "reservation"},
				Examples:    []string{"reserve 10 items of the item 123 in the Berlin warehouse."},
			},
		},
	}
}
