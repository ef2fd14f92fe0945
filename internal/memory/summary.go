package memory

import "time"

// Summary aggregates usage metrics over a set of interactions.
type Summary struct {
	TotalInteractions int            `json:"total_interactions"`
	ByAgent           map[string]int `json:"by_agent"`
	ByCommand         map[string]int `json:"by_command"`
	TotalCost         float64        `json:"total_cost"`
	FirstAt           time.Time      `json:"first_at"`
	LastAt            time.Time      `json:"last_at"`
	Span              time.Duration  `json:"span"`
}

// Summarize processes a slice of interactions into usage metrics.
func Summarize(interactions []*Interaction) Summary {
	s := Summary{
		ByAgent:   make(map[string]int),
		ByCommand: make(map[string]int),
	}
	if len(interactions) == 0 {
		return s
	}

	s.FirstAt = interactions[0].Timestamp
	s.LastAt = interactions[0].Timestamp

	for _, in := range interactions {
		s.TotalInteractions++
		s.ByAgent[in.AgentID]++
		s.ByCommand[in.Command]++
		s.TotalCost += in.Cost

		if in.Timestamp.Before(s.FirstAt) {
			s.FirstAt = in.Timestamp
		}
		if in.Timestamp.After(s.LastAt) {
			s.LastAt = in.Timestamp
		}
	}

	s.Span = s.LastAt.Sub(s.FirstAt)
	return s
}
