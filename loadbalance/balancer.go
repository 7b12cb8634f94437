// Package loadbalance picks which gateway instance serves a session.
//
// Three strategies are implemented:
//   - RoundRobin:      Equal-capacity gateways
//   - WeightedRandom:  Gateways with different capacity
//   - ConsistentHash:  Affinity, e.g. all sessions for one target process on one gateway
package loadbalance

import (
	"errors"
	"fmt"

	"ipc-bridge/registry"
)

// ErrNoInstances is returned when there is nothing to pick from.
var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer selects one instance for a session.
type Balancer interface {
	// Pick selects one instance. key is an affinity hint; strategies without
	// affinity ignore it. Must be goroutine-safe.
	Pick(instances []registry.GatewayInstance, key string) (*registry.GatewayInstance, error)

	// Name returns the strategy name used in configuration.
	Name() string
}

// New returns the balancer registered under name.
func New(name string) (Balancer, error) {
	switch name {
	case "", "round_robin":
		return &RoundRobinBalancer{}, nil
	case "weighted_random":
		return &WeightedRandomBalancer{}, nil
	case "consistent_hash":
		return NewConsistentHashBalancer(), nil
	default:
		return nil, fmt.Errorf("loadbalance: unknown strategy %q", name)
	}
}
