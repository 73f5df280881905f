// Package readiness implements Readiness (C9): the aggregate health of the
// store, discovery agent, and artifact registry backends.
package readiness

import (
	"context"
	"time"
)

const probeTimeout = 2 * time.Second

// Pinger is the store's readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AgentProbe is C1's readiness probe.
type AgentProbe interface {
	AgentInfo(ctx context.Context) bool
}

// ArtifactProbe is C2's readiness probe.
type ArtifactProbe interface {
	IsHealthy(ctx context.Context) bool
}

// Status is UP only when every backend probe succeeds.
type Status struct {
	Up       bool              `json:"up"`
	Backends map[string]Backend `json:"backends"`
}

// Backend is one probe's per-backend result.
type Backend struct {
	Up    bool   `json:"up"`
	Error string `json:"error,omitempty"`
}

// Checker aggregates the three backend probes.
type Checker struct {
	store    Pinger
	agent    AgentProbe
	artifact ArtifactProbe
}

// NewChecker builds a Checker from the three live backends.
func NewChecker(store Pinger, agent AgentProbe, artifact ArtifactProbe) *Checker {
	return &Checker{store: store, agent: agent, artifact: artifact}
}

// Check runs all three probes, each capped at a 2s deadline.
func (c *Checker) Check(ctx context.Context) Status {
	backends := map[string]Backend{
		"store":    c.checkStore(ctx),
		"consul":   c.checkAgent(ctx),
		"apicurio": c.checkArtifact(ctx),
	}

	up := true
	for _, b := range backends {
		up = up && b.Up
	}

	return Status{Up: up, Backends: backends}
}

func (c *Checker) checkStore(ctx context.Context) Backend {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := c.store.Ping(ctx); err != nil {
		return Backend{Up: false, Error: err.Error()}
	}
	return Backend{Up: true}
}

func (c *Checker) checkAgent(ctx context.Context) Backend {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if !c.agent.AgentInfo(ctx) {
		return Backend{Up: false, Error: "consul agent unreachable"}
	}
	return Backend{Up: true}
}

func (c *Checker) checkArtifact(ctx context.Context) Backend {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if !c.artifact.IsHealthy(ctx) {
		return Backend{Up: false, Error: "artifact registry unreachable"}
	}
	return Backend{Up: true}
}
