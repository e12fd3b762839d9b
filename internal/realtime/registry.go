package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Registry tracks every live connection per user. A user may hold several
// simultaneous connections (multi-device); each is registered and
// deregistered independently.
type Registry struct {
	mu      sync.RWMutex
	conns   map[int64]map[Conn]struct{}
	metrics *Metrics
	logger  *slog.Logger
}

func NewRegistry(metrics *Metrics, logger *slog.Logger) *Registry {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Registry{
		conns:   make(map[int64]map[Conn]struct{}),
		metrics: metrics,
		logger:  logger,
	}
}

func (r *Registry) Register(c Conn) {
	userID := c.User().ID

	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[userID] = set
	}
	if _, dup := set[c]; dup {
		r.mu.Unlock()
		return
	}
	set[c] = struct{}{}
	r.mu.Unlock()

	r.metrics.ActiveConnections.Inc()
	r.logger.Info("connection registered", "userID", userID)
}

// Deregister removes a connection. Unknown connections are a no-op:
// disconnect cleanup can race with explicit removal.
func (r *Registry) Deregister(c Conn) {
	userID := c.User().ID

	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := set[c]; !ok {
		r.mu.Unlock()
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
	r.mu.Unlock()

	r.metrics.ActiveConnections.Dec()
	r.logger.Info("connection deregistered", "userID", userID)
}

func (r *Registry) ConnectionsFor(userID int64) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.conns[userID]))
	for c := range r.conns[userID] {
		conns = append(conns, c)
	}
	return conns
}

// NotifyUser pushes an event frame to every live connection of a user.
// A connection that cannot absorb the event is dropped, not waited on.
func (r *Registry) NotifyUser(userID int64, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("failed to marshal event", "error", err)
		return
	}

	for _, c := range r.ConnectionsFor(userID) {
		if !c.Deliver(payload) {
			r.logger.Warn("event dropped, closing slow connection", "userID", userID)
			r.metrics.SlowConsumerDrops.Inc()
			c.Close(websocket.ClosePolicyViolation, "slow consumer")
		}
	}
}
