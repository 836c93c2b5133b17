// Per-host status tracking for inspection.

package failover

import "time"

// Host states reported by Status.
const (
	StateUnknown      = "unknown"      // no attempt has completed yet
	StateConnected    = "connected"    // the client holds a live connection
	StateDisconnected = "disconnected" // the last attempt failed or the connection dropped
)

// HostStatus is a snapshot of one host as seen by the coordinator.
type HostStatus struct {
	LastConnected    time.Time `json:"last_connected,omitempty" yaml:"lastConnected,omitempty"`       // Last successful connection
	LastDisconnected time.Time `json:"last_disconnected,omitempty" yaml:"lastDisconnected,omitempty"` // Last time a live connection dropped
	Addr             string    `json:"addr" yaml:"addr"`                                              // Dial address
	State            string    `json:"state" yaml:"state"`                                            // One of the State constants
	Priority         int       `json:"priority" yaml:"priority"`                                      // Position in the host list, 0 is preferred
	ConsecutiveFails int       `json:"consecutive_fails" yaml:"consecutiveFails"`                     // Failed attempts since the last connection
	Current          bool      `json:"current" yaml:"current"`                                        // Whether listeners were last told about this host
}

// Status returns a copy of the status of every host in priority order.
// It returns nil once the coordinator is terminated or if it has no hosts.
//
// Example:
//
//	for _, h := range co.Status() {
//	    log.Printf("%d %s %s current=%v", h.Priority, h.Addr, h.State, h.Current)
//	}
func (c *Coordinator) Status() []HostStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.status == nil {
		return nil
	}
	out := make([]HostStatus, len(c.status))
	copy(out, c.status)
	for i := range out {
		out[i].Current = i == c.selected
	}
	return out
}

// IsConnected reports whether the host at priority index i holds a live connection.
func (c *Coordinator) IsConnected(i int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i < 0 || i >= len(c.status) {
		return false
	}
	return c.status[i].State == StateConnected
}

func (c *Coordinator) markConnected(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i >= len(c.status) {
		return
	}
	st := &c.status[i]
	st.State = StateConnected
	st.LastConnected = c.clock.Now()
	st.ConsecutiveFails = 0
}

// markDisconnected records a drop of a live connection (dropped true) or a
// failed attempt.
func (c *Coordinator) markDisconnected(i int, dropped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i >= len(c.status) {
		return
	}
	st := &c.status[i]
	st.State = StateDisconnected
	if dropped {
		st.LastDisconnected = c.clock.Now()
		return
	}
	st.ConsecutiveFails++
}

func (c *Coordinator) setSelected(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == nil {
		return
	}
	c.selected = i
}
