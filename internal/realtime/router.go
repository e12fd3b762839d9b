package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/IlyacloudDev/QuickTalk/internal/models"
	"github.com/IlyacloudDev/QuickTalk/internal/ports"

	"github.com/gorilla/websocket"
)

// Router owns one fan-out session per chat. Sessions are created lazily on
// the first subscribe and removed when their subscriber set empties, both
// under the router lock, so no sweep pass is needed.
//
// Ordering contract: Publish persists the message and then delivers it,
// holding the session's publish lock for the whole step. Broadcast order
// for a chat therefore always matches persistence order. Distinct chats
// hold distinct locks and proceed concurrently.
type Router struct {
	mu       sync.RWMutex
	sessions map[int64]*session

	directory ports.MembershipDirectory
	store     ports.MessageStore
	metrics   *Metrics
	logger    *slog.Logger
}

type session struct {
	chatID int64

	// pubMu serializes persist-then-deliver for the chat.
	pubMu sync.Mutex

	// subMu guards subs; held only for set mutation and snapshots.
	subMu sync.Mutex
	subs  map[Conn]struct{}
}

func NewRouter(directory ports.MembershipDirectory, store ports.MessageStore, metrics *Metrics, logger *slog.Logger) *Router {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Router{
		sessions:  make(map[int64]*session),
		directory: directory,
		store:     store,
		metrics:   metrics,
		logger:    logger,
	}
}

// Subscribe attaches a connection to a chat's session. Membership is
// re-checked against the directory at call time; a connection is never
// registered on failure.
func (r *Router) Subscribe(ctx context.Context, chatID int64, c Conn) error {
	member, err := r.directory.IsMember(ctx, chatID, c.User().ID)
	if err != nil {
		return err
	}
	if !member {
		return ports.ErrNotAMember
	}

	r.mu.Lock()
	s, ok := r.sessions[chatID]
	if !ok {
		s = &session{chatID: chatID, subs: make(map[Conn]struct{})}
		r.sessions[chatID] = s
	}
	s.subMu.Lock()
	s.subs[c] = struct{}{}
	s.subMu.Unlock()
	r.mu.Unlock()

	r.logger.Info("subscribed to chat", "chatID", chatID, "userID", c.User().ID)
	return nil
}

// Unsubscribe removes a connection if present; unknown connections are a
// no-op. The session is destroyed together with its last subscriber.
func (r *Router) Unsubscribe(chatID int64, c Conn) {
	r.mu.Lock()
	s, ok := r.sessions[chatID]
	if !ok {
		r.mu.Unlock()
		return
	}
	s.subMu.Lock()
	delete(s.subs, c)
	empty := len(s.subs) == 0
	s.subMu.Unlock()
	if empty {
		delete(r.sessions, chatID)
	}
	r.mu.Unlock()

	if empty {
		r.logger.Debug("chat session closed", "chatID", chatID)
	}
}

// Publish appends the message to the store and fans it out to the chat's
// current subscribers. The subscriber set is decided atomically per
// message: a subscription completing after that point misses the frame and
// finds it in history instead. A store failure is returned to the caller
// and nothing is broadcast.
func (r *Router) Publish(ctx context.Context, chatID int64, sender models.User, body string) (*models.Message, error) {
	r.mu.RLock()
	s := r.sessions[chatID]
	r.mu.RUnlock()

	if s == nil {
		// Nobody is live; the message is still durable.
		msg, err := r.store.Append(ctx, chatID, sender.ID, body)
		if err == nil {
			r.metrics.MessagesPersisted.Inc()
		}
		return msg, err
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	msg, err := r.store.Append(ctx, chatID, sender.ID, body)
	if err != nil {
		return nil, err
	}
	r.metrics.MessagesPersisted.Inc()

	payload, err := json.Marshal(NewOutboundFrame(msg))
	if err != nil {
		return msg, err
	}
	r.deliver(s, payload)
	return msg, nil
}

// NotifyChat pushes an event frame to every subscriber of a chat, ordered
// with the chat's message stream.
func (r *Router) NotifyChat(chatID int64, event any) {
	r.mu.RLock()
	s := r.sessions[chatID]
	r.mu.RUnlock()
	if s == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("failed to marshal event", "error", err)
		return
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	r.deliver(s, payload)
}

// deliver sends one payload to a snapshot of the session's subscribers.
// A subscriber that cannot absorb the frame is evicted and closed; the
// delivery itself never fails.
func (r *Router) deliver(s *session, payload []byte) {
	s.subMu.Lock()
	targets := make([]Conn, 0, len(s.subs))
	for c := range s.subs {
		targets = append(targets, c)
	}
	s.subMu.Unlock()

	var failed []Conn
	for _, c := range targets {
		if c.Deliver(payload) {
			r.metrics.FramesDelivered.Inc()
		} else {
			failed = append(failed, c)
		}
	}

	for _, c := range failed {
		r.logger.Warn("dropping slow consumer", "chatID", s.chatID, "userID", c.User().ID)
		r.metrics.SlowConsumerDrops.Inc()
		r.Unsubscribe(s.chatID, c)
		c.Close(websocket.ClosePolicyViolation, "slow consumer")
	}
}

// CloseChat force-unsubscribes every connection of a chat, used when the
// chat itself is deleted.
func (r *Router) CloseChat(chatID int64, reason string) {
	r.mu.Lock()
	s, ok := r.sessions[chatID]
	if ok {
		delete(r.sessions, chatID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	s.subMu.Lock()
	targets := make([]Conn, 0, len(s.subs))
	for c := range s.subs {
		targets = append(targets, c)
	}
	s.subs = make(map[Conn]struct{})
	s.subMu.Unlock()

	for _, c := range targets {
		c.Close(websocket.CloseGoingAway, reason)
	}
	r.logger.Info("chat session force-closed", "chatID", chatID, "reason", reason)
}

// Subscribers reports the current subscriber count for a chat.
func (r *Router) Subscribers(chatID int64) int {
	r.mu.RLock()
	s := r.sessions[chatID]
	r.mu.RUnlock()
	if s == nil {
		return 0
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}
