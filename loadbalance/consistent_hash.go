package loadbalance

import (
	"fmt"
	"hash/crc32"
	"slices"
	"sort"
	"strings"
	"sync"

	"ipc-bridge/registry"
)

// ConsistentHashBalancer maps keys to instances on a hash ring, so the same key
// keeps landing on the same gateway while the instance set is unchanged.
//
// Each real instance is placed on the ring as many virtual nodes so that a handful
// of gateways still spread evenly.
//
//	                  0
//	                ╱   ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	                ╲   ╱
type ConsistentHashBalancer struct {
	replicas int

	mu    sync.Mutex
	sig   string                              // Address set the ring was built from
	ring  []uint32                            // Sorted hash values
	nodes map[uint32]registry.GatewayInstance // Hash value → instance
}

// NewConsistentHashBalancer creates a ring with 100 virtual nodes per instance.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]registry.GatewayInstance),
	}
}

// Pick hashes key and walks clockwise to the first virtual node. The ring is
// rebuilt whenever the set of instance addresses changes.
func (b *ConsistentHashBalancer) Pick(instances []registry.GatewayInstance, key string) (*registry.GatewayInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rebuild(instances)

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	// Past the last node: wrap around to the first.
	if idx == len(b.ring) {
		idx = 0
	}

	inst := b.nodes[b.ring[idx]]
	return &inst, nil
}

func (b *ConsistentHashBalancer) rebuild(instances []registry.GatewayInstance) {
	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.Addr
	}
	slices.Sort(addrs)
	sig := strings.Join(addrs, ",")
	if sig == b.sig {
		return
	}

	b.sig = sig
	b.ring = b.ring[:0]
	clear(b.nodes)
	for _, inst := range instances {
		for i := 0; i < b.replicas; i++ {
			hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", inst.Addr, i)))
			b.ring = append(b.ring, hash)
			b.nodes[hash] = inst
		}
	}
	slices.Sort(b.ring)
}

func (b *ConsistentHashBalancer) Name() string {
	return "consistent_hash"
}
