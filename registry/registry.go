package registry

import "context"

// GatewayInstance is one reachable bridge gateway endpoint.
type GatewayInstance struct {
	Addr    string
	Weight  int // Weight for load balancing
	Version string
}

// Registry resolves a gateway name to the instances currently serving it.
type Registry interface {
	Register(ctx context.Context, gateway string, instance GatewayInstance, ttl int64) error
	Deregister(ctx context.Context, gateway string, addr string) error
	Discover(ctx context.Context, gateway string) ([]GatewayInstance, error)
	// Watch emits the full instance list after every change until ctx is done.
	Watch(ctx context.Context, gateway string) <-chan []GatewayInstance
}
