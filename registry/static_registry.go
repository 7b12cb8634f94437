package registry

import (
	"context"
	"slices"
	"sync"
)

// StaticRegistry is an in-memory Registry, typically seeded from configured addresses.
// TTLs are ignored.
type StaticRegistry struct {
	mu        sync.Mutex
	instances map[string][]GatewayInstance
	watchers  map[string][]chan []GatewayInstance
}

// NewStaticRegistry creates a registry serving addrs for gateway, each with weight 1.
func NewStaticRegistry(gateway string, addrs ...string) *StaticRegistry {
	r := &StaticRegistry{
		instances: make(map[string][]GatewayInstance),
		watchers:  make(map[string][]chan []GatewayInstance),
	}
	for _, addr := range addrs {
		r.instances[gateway] = append(r.instances[gateway], GatewayInstance{Addr: addr, Weight: 1})
	}
	return r
}

func (r *StaticRegistry) Register(_ context.Context, gateway string, instance GatewayInstance, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	insts := slices.DeleteFunc(r.instances[gateway], func(i GatewayInstance) bool {
		return i.Addr == instance.Addr
	})
	r.instances[gateway] = append(insts, instance)
	r.notify(gateway)
	return nil
}

func (r *StaticRegistry) Deregister(_ context.Context, gateway string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[gateway] = slices.DeleteFunc(r.instances[gateway], func(i GatewayInstance) bool {
		return i.Addr == addr
	})
	r.notify(gateway)
	return nil
}

func (r *StaticRegistry) Discover(_ context.Context, gateway string) ([]GatewayInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.instances[gateway]), nil
}

// Watch delivers the current list first, then every change.
func (r *StaticRegistry) Watch(ctx context.Context, gateway string) <-chan []GatewayInstance {
	ch := make(chan []GatewayInstance, 1)
	r.mu.Lock()
	ch <- slices.Clone(r.instances[gateway])
	r.watchers[gateway] = append(r.watchers[gateway], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		r.watchers[gateway] = slices.DeleteFunc(r.watchers[gateway], func(c chan []GatewayInstance) bool {
			return c == ch
		})
		close(ch)
	}()
	return ch
}

// notify must be called with r.mu held. Each watcher keeps only the latest list.
func (r *StaticRegistry) notify(gateway string) {
	snapshot := slices.Clone(r.instances[gateway])
	for _, ch := range r.watchers[gateway] {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}
