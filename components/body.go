// Package components defines ECS components for the simulation.
package components

import (
	"github.com/pthm-cable/spark/config"
	"github.com/pthm-cable/spark/space"
)

// Body ties an entity to the node that represents it in a space.
type Body struct {
	Node *space.Node
}

// Capabilities holds per-walker movement and foraging parameters.
type Capabilities struct {
	Speed       float64 // distance per tick
	SenseRadius float64 // neighbour and crowding radius
	Deposit     float64 // amount added to the deposit layer per tick
	Consume     float64 // amount grazed from the food layer per tick
}

// CapabilitiesFromConfig returns capabilities for the configured walkers.
func CapabilitiesFromConfig(cfg *config.AgentsConfig) Capabilities {
	return Capabilities{
		Speed:       cfg.Speed,
		SenseRadius: cfg.SenseRadius,
		Deposit:     cfg.Deposit,
		Consume:     cfg.Consume,
	}
}
