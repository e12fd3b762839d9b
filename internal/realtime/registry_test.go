package realtime

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestRegistry() *Registry {
	return NewRegistry(NewMetrics(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegistryTracksMultipleConnectionsPerUser(t *testing.T) {
	registry := newTestRegistry()

	phone := newFakeConn(10, "alice")
	laptop := newFakeConn(10, "alice")
	registry.Register(phone)
	registry.Register(laptop)

	assert.Len(t, registry.ConnectionsFor(10), 2)

	// Re-registering the same connection changes nothing.
	registry.Register(phone)
	assert.Len(t, registry.ConnectionsFor(10), 2)

	registry.Deregister(phone)
	assert.Len(t, registry.ConnectionsFor(10), 1)

	// Deregister is idempotent.
	registry.Deregister(phone)
	assert.Len(t, registry.ConnectionsFor(10), 1)

	registry.Deregister(laptop)
	assert.Empty(t, registry.ConnectionsFor(10))
}

func TestNotifyUserReachesEveryDevice(t *testing.T) {
	registry := newTestRegistry()

	phone := newFakeConn(10, "alice")
	laptop := newFakeConn(10, "alice")
	other := newFakeConn(20, "bob")
	registry.Register(phone)
	registry.Register(laptop)
	registry.Register(other)

	registry.NotifyUser(10, map[string]string{"type": "chat_deleted"})

	for _, conn := range []*fakeConn{phone, laptop} {
		conn.mu.Lock()
		assert.Len(t, conn.delivered, 1)
		conn.mu.Unlock()
	}
	other.mu.Lock()
	assert.Empty(t, other.delivered)
	other.mu.Unlock()
}

func TestNotifyUserClosesSlowConnection(t *testing.T) {
	registry := newTestRegistry()

	slow := newFakeConn(10, "alice")
	slow.capacity = 0
	registry.Register(slow)

	registry.NotifyUser(10, map[string]string{"type": "chat_deleted"})

	closed, code, reason := slow.closedWith()
	assert.True(t, closed)
	assert.Equal(t, 1008, code)
	assert.Equal(t, "slow consumer", reason)
}
