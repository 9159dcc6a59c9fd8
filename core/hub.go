package core

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Hub tracks live connections so they can be listed and shut down
type Hub struct {
	conns sync.Map

	active   atomic.Int64
	accepted atomic.Int64
	closed   atomic.Int64
}

// ConnectionInfo is a point-in-time view of one connection
type ConnectionInfo struct {
	ID         uint64
	RemoteAddr string
	RemotePort int
	State      State
	Served     uint64
	Since      time.Time
}

// HubStats holds connection counters
type HubStats struct {
	Active   int64 `json:"active"`
	Accepted int64 `json:"accepted"`
	Closed   int64 `json:"closed"`
}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) Add(c *Connection) {
	h.conns.Store(c.ID, c)
	h.active.Add(1)
	h.accepted.Add(1)
}

func (h *Hub) Remove(c *Connection) {
	if _, ok := h.conns.LoadAndDelete(c.ID); ok {
		h.active.Add(-1)
		h.closed.Add(1)
	}
}

// Len returns the number of live connections
func (h *Hub) Len() int {
	return int(h.active.Load())
}

// Range calls fn for every live connection until fn returns false
func (h *Hub) Range(fn func(c *Connection) bool) {
	h.conns.Range(func(_, value any) bool {
		return fn(value.(*Connection))
	})
}

// Connections returns a snapshot ordered by connection ID
func (h *Hub) Connections() []ConnectionInfo {
	var out []ConnectionInfo
	h.Range(func(c *Connection) bool {
		out = append(out, ConnectionInfo{
			ID:         c.ID,
			RemoteAddr: c.RemoteAddr,
			RemotePort: c.RemotePort,
			State:      c.State(),
			Served:     c.Served(),
			Since:      c.CreatedAt,
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *Hub) Stats() HubStats {
	return HubStats{
		Active:   h.active.Load(),
		Accepted: h.accepted.Load(),
		Closed:   h.closed.Load(),
	}
}

// ShutdownAll force-closes every live connection and returns how many
// were shut down
func (h *Hub) ShutdownAll() int {
	n := 0
	h.Range(func(c *Connection) bool {
		_ = c.Shutdown()
		n++
		return true
	})
	return n
}
