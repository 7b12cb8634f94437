package transport

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeFactory struct {
	mu    sync.Mutex
	peers []net.Conn
	made  int
}

func (f *pipeFactory) dial(ctx context.Context) (*Conn, error) {
	client, server := net.Pipe()
	f.mu.Lock()
	f.peers = append(f.peers, server)
	f.made++
	f.mu.Unlock()
	return NewConn(client, Options{}), nil
}

func (f *pipeFactory) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.peers {
		p.Close()
	}
}

func TestPoolReusesConnections(t *testing.T) {
	f := &pipeFactory{}
	defer f.close()
	pool := NewConnPool("pipe", 2, f.dial)
	defer pool.Close()
	ctx := context.Background()

	c1, err := pool.Get(ctx)
	require.NoError(t, err)
	pool.Put(c1)

	c2, err := pool.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	pool.Put(c2)

	assert.Equal(t, 1, f.made)
	assert.Equal(t, 1, pool.Open())
}

func TestPoolDiscardsBrokenConnections(t *testing.T) {
	f := &pipeFactory{}
	defer f.close()
	pool := NewConnPool("pipe", 2, f.dial)
	defer pool.Close()
	ctx := context.Background()

	c1, err := pool.Get(ctx)
	require.NoError(t, err)
	c1.broken.Store(true)
	pool.Put(c1)
	assert.Equal(t, 0, pool.Open())

	c2, err := pool.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, c1, c2)
	assert.Equal(t, 2, f.made)
	pool.Put(c2)
}

func TestPoolBlocksAtCapacity(t *testing.T) {
	f := &pipeFactory{}
	defer f.close()
	pool := NewConnPool("pipe", 1, f.dial)
	defer pool.Close()

	c1, err := pool.Get(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = pool.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got := make(chan *Conn, 1)
	go func() {
		c, err := pool.Get(context.Background())
		if err == nil {
			got <- c
		}
	}()
	time.Sleep(20 * time.Millisecond)
	pool.Put(c1)

	select {
	case c := <-got:
		assert.Same(t, c1, c)
		pool.Put(c)
	case <-time.After(time.Second):
		t.Fatal("waiter not released")
	}
}

func TestPoolClose(t *testing.T) {
	f := &pipeFactory{}
	defer f.close()
	pool := NewConnPool("pipe", 2, f.dial)

	c, err := pool.Get(context.Background())
	require.NoError(t, err)
	require.NoError(t, pool.Close())

	pool.Put(c)
	assert.True(t, c.Broken())

	_, err = pool.Get(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}
