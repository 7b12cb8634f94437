// Package registry provides gateway discovery.
//
// The etcd implementation stores one key per gateway instance:
//
//	Key:   /ipc-bridge/{gateway}/{addr}
//	Value: JSON-encoded GatewayInstance
//
// Registration uses TTL-based leases: if a gateway dies without deregistering, the
// lease expires and the entry disappears on its own.
package registry

import (
	"context"
	"encoding/json"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/ipc-bridge/"

// EtcdRegistry implements Registry using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // Safe for concurrent use
}

// NewEtcdRegistry creates a registry connected to the given etcd endpoints.
// The connection is established lazily by the etcd client.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

func gatewayPrefix(gateway string) string {
	return keyPrefix + gateway + "/"
}

// Register adds a gateway instance under a lease of ttl seconds and keeps the lease
// alive until ctx is done.
//
// The lease ID stays local to this call so several instances can share one registry.
func (r *EtcdRegistry) Register(ctx context.Context, gateway string, instance GatewayInstance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, gatewayPrefix(gateway)+instance.Addr, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}

	// Drain KeepAlive responses so the channel never fills up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes a gateway instance.
func (r *EtcdRegistry) Deregister(ctx context.Context, gateway string, addr string) error {
	_, err := r.client.Delete(ctx, gatewayPrefix(gateway)+addr)
	return err
}

// Watch re-reads the instance list whenever anything under the gateway prefix changes.
func (r *EtcdRegistry) Watch(ctx context.Context, gateway string) <-chan []GatewayInstance {
	ch := make(chan []GatewayInstance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, gatewayPrefix(gateway), clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch rather than apply individual events.
			instances, err := r.Discover(ctx, gateway)
			if err != nil {
				continue
			}
			select {
			case ch <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Discover returns all currently registered instances of a gateway.
func (r *EtcdRegistry) Discover(ctx context.Context, gateway string) ([]GatewayInstance, error) {
	resp, err := r.client.Get(ctx, gatewayPrefix(gateway), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]GatewayInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance GatewayInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // Skip malformed entries
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Close releases the etcd client.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
