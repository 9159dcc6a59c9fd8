package core

import (
	"encoding/json"
	"fmt"

	"github.com/searchktools/webpp/core/pools"
	"github.com/searchktools/webpp/core/transport"
)

// Stats is a snapshot of connection counters and buffer pool usage
type Stats struct {
	Connections     HubStats            `json:"connections"`
	ReadBuffers     pools.BytePoolStats `json:"read_buffers"`
	ResponseBuffers pools.BufferStats   `json:"response_buffers"`
}

// Stats returns the current statistics
func (e *Engine) Stats() Stats {
	return Stats{
		Connections:     e.hub.Stats(),
		ReadBuffers:     transport.ReadBufferStats(),
		ResponseBuffers: pools.GetBufferStats(),
	}
}

// StatsJSON returns the statistics as indented JSON
func (e *Engine) StatsJSON() string {
	data, _ := json.MarshalIndent(e.Stats(), "", "  ")
	return string(data)
}

// StatsText returns the statistics as human-readable text
func (e *Engine) StatsText() string {
	s := e.Stats()
	hitRate := func(gets, misses uint64) float64 {
		if gets == 0 {
			return 0
		}
		return float64(gets-misses) / float64(gets) * 100
	}
	return fmt.Sprintf(`Server Statistics
=================

Connections:
  Active:   %d
  Accepted: %d
  Closed:   %d

Read Buffers:
  Gets:     %d
  Hit Rate: %.2f%%

Response Buffers:
  Gets:     %d
  Dropped:  %d
`,
		s.Connections.Active, s.Connections.Accepted, s.Connections.Closed,
		s.ReadBuffers.Gets, hitRate(s.ReadBuffers.Gets, s.ReadBuffers.Misses),
		s.ResponseBuffers.TotalGets, s.ResponseBuffers.Dropped,
	)
}
