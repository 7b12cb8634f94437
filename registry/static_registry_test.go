package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticRegistryDiscover(t *testing.T) {
	reg := NewStaticRegistry("bridge", "127.0.0.1:31337", "127.0.0.1:31338")
	ctx := context.Background()

	instances, err := reg.Discover(ctx, "bridge")
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, 1, instances[0].Weight)

	instances, err = reg.Discover(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestStaticRegistryRegisterReplaces(t *testing.T) {
	reg := NewStaticRegistry("bridge", "127.0.0.1:31337")
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, "bridge", GatewayInstance{Addr: "127.0.0.1:31337", Weight: 7}, 0))
	instances, _ := reg.Discover(ctx, "bridge")
	require.Len(t, instances, 1)
	assert.Equal(t, 7, instances[0].Weight)

	require.NoError(t, reg.Deregister(ctx, "bridge", "127.0.0.1:31337"))
	instances, _ = reg.Discover(ctx, "bridge")
	assert.Empty(t, instances)
}

func TestStaticRegistryWatch(t *testing.T) {
	reg := NewStaticRegistry("bridge")
	ctx, cancel := context.WithCancel(context.Background())

	updates := reg.Watch(ctx, "bridge")
	require.NoError(t, reg.Register(ctx, "bridge", GatewayInstance{Addr: "a:1"}, 0))
	require.NoError(t, reg.Register(ctx, "bridge", GatewayInstance{Addr: "b:2"}, 0))

	// Only the latest snapshot is kept for a slow watcher.
	select {
	case instances := <-updates:
		assert.Len(t, instances, 2)
	case <-time.After(time.Second):
		t.Fatal("no watch update")
	}

	cancel()
	select {
	case _, ok := <-updates:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed")
	}
}
