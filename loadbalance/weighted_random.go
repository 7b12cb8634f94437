package loadbalance

import (
	"math/rand/v2"

	"ipc-bridge/registry"
)

// WeightedRandomBalancer picks an instance with probability proportional to its
// weight. Instances with a weight below 1 count as weight 1.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(instances []registry.GatewayInstance, _ string) (*registry.GatewayInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	totalWeight := 0
	for _, v := range instances {
		totalWeight += effectiveWeight(v)
	}

	r := rand.IntN(totalWeight)
	for i := range instances {
		r -= effectiveWeight(instances[i])
		if r < 0 {
			return &instances[i], nil
		}
	}
	return &instances[len(instances)-1], nil
}

func (b *WeightedRandomBalancer) Name() string {
	return "weighted_random"
}

func effectiveWeight(inst registry.GatewayInstance) int {
	return max(inst.Weight, 1)
}
