// Package shutdown implements the process-wide drain flag consulted by the
// inbound façade's readiness probe and dispatch loop (C8).
package shutdown

import "sync/atomic"

// Coordinator holds a single running/draining flag. Nothing in the
// validator consults it; it exists purely for the façade's readiness
// endpoint and dispatch loop (spec §4.9), so draining never blocks or
// cancels an in-flight validation.
type Coordinator struct {
	draining atomic.Bool
}

// NewCoordinator returns a Coordinator in the running state.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Drain transitions running -> draining. It is idempotent; calling it
// again once already draining has no effect.
func (c *Coordinator) Drain() {
	c.draining.Store(true)
}

// Draining reports whether the process has entered the draining state.
func (c *Coordinator) Draining() bool {
	return c.draining.Load()
}
