package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IlyacloudDev/QuickTalk/internal/models"
	"github.com/IlyacloudDev/QuickTalk/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	user models.User

	mu        sync.Mutex
	delivered [][]byte
	capacity  int
	closed    bool
	closeCode int
	reason    string
}

func newFakeConn(userID int64, username string) *fakeConn {
	return &fakeConn{
		user:     models.User{ID: userID, Username: username},
		capacity: 64,
	}
}

func (c *fakeConn) User() models.User { return c.user }

func (c *fakeConn) Deliver(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.delivered) >= c.capacity {
		return false
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	c.delivered = append(c.delivered, buf)
	return true
}

func (c *fakeConn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeCode = code
	c.reason = reason
}

func (c *fakeConn) frames(t *testing.T) []OutboundFrame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	frames := make([]OutboundFrame, 0, len(c.delivered))
	for _, payload := range c.delivered {
		var frame OutboundFrame
		require.NoError(t, json.Unmarshal(payload, &frame))
		frames = append(frames, frame)
	}
	return frames
}

func (c *fakeConn) closedWith() (bool, int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode, c.reason
}

type fakeDirectory struct {
	mu      sync.Mutex
	members map[string]bool
	err     error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{members: make(map[string]bool)}
}

func (d *fakeDirectory) add(chatID, userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[fmt.Sprintf("%d:%d", chatID, userID)] = true
}

func (d *fakeDirectory) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	return d.members[fmt.Sprintf("%d:%d", chatID, userID)], nil
}

type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	log    map[int64][]models.Message
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{log: make(map[int64][]models.Message)}
}

func (s *fakeStore) Append(ctx context.Context, chatID, senderID int64, body string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.nextID++
	msg := models.Message{
		ID:        s.nextID,
		ChatID:    chatID,
		SenderID:  senderID,
		Sender:    fmt.Sprintf("user%d", senderID),
		Content:   body,
		CreatedAt: time.Now(),
	}
	s.log[chatID] = append(s.log[chatID], msg)
	return &msg, nil
}

func (s *fakeStore) ListSince(ctx context.Context, chatID, sinceID int64, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, msg := range s.log[chatID] {
		if msg.ID > sinceID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *fakeStore) bodies(chatID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	bodies := make([]string, 0, len(s.log[chatID]))
	for _, msg := range s.log[chatID] {
		bodies = append(bodies, msg.Content)
	}
	return bodies
}

func newTestRouter() (*Router, *fakeDirectory, *fakeStore) {
	directory := newFakeDirectory()
	store := newFakeStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(directory, store, NewMetrics(), logger), directory, store
}

func TestSubscribeRejectsNonMember(t *testing.T) {
	router, directory, _ := newTestRouter()
	directory.add(1, 10)

	outsider := newFakeConn(99, "outsider")
	err := router.Subscribe(context.Background(), 1, outsider)

	assert.ErrorIs(t, err, ports.ErrNotAMember)
	assert.Equal(t, 0, router.Subscribers(1))
}

func TestSubscribePropagatesDirectoryError(t *testing.T) {
	router, directory, _ := newTestRouter()
	directory.err = errors.New("db down")

	err := router.Subscribe(context.Background(), 1, newFakeConn(10, "alice"))

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrNotAMember)
	assert.Equal(t, 0, router.Subscribers(1))
}

func TestSessionLifecycle(t *testing.T) {
	router, directory, _ := newTestRouter()
	directory.add(1, 10)
	directory.add(1, 20)

	alice := newFakeConn(10, "alice")
	bob := newFakeConn(20, "bob")

	require.NoError(t, router.Subscribe(context.Background(), 1, alice))
	require.NoError(t, router.Subscribe(context.Background(), 1, bob))
	assert.Equal(t, 2, router.Subscribers(1))

	router.Unsubscribe(1, alice)
	assert.Equal(t, 1, router.Subscribers(1))

	// Repeated and unknown removals are no-ops.
	router.Unsubscribe(1, alice)
	router.Unsubscribe(42, bob)
	assert.Equal(t, 1, router.Subscribers(1))

	router.Unsubscribe(1, bob)
	assert.Equal(t, 0, router.Subscribers(1))
}

func TestPublishDeliversToAllSubscribersIncludingSender(t *testing.T) {
	router, directory, _ := newTestRouter()
	directory.add(1, 10)
	directory.add(1, 20)

	alice := newFakeConn(10, "alice")
	bob := newFakeConn(20, "bob")
	require.NoError(t, router.Subscribe(context.Background(), 1, alice))
	require.NoError(t, router.Subscribe(context.Background(), 1, bob))

	msg, err := router.Publish(context.Background(), 1, alice.User(), "hello")
	require.NoError(t, err)
	require.NotNil(t, msg)

	for _, conn := range []*fakeConn{alice, bob} {
		frames := conn.frames(t)
		require.Len(t, frames, 1)
		assert.Equal(t, int64(10), frames[0].UserID)
		assert.Equal(t, "hello", frames[0].Message)
		_, err := time.Parse(time.RFC3339, frames[0].Timestamp)
		assert.NoError(t, err)
	}
}

func TestPublishWithoutSubscribersStillPersists(t *testing.T) {
	router, _, store := newTestRouter()

	msg, err := router.Publish(context.Background(), 1, models.User{ID: 10}, "into the void")
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, []string{"into the void"}, store.bodies(1))
}

func TestPublishStoreFailureBroadcastsNothing(t *testing.T) {
	router, directory, store := newTestRouter()
	directory.add(1, 10)
	directory.add(1, 20)

	alice := newFakeConn(10, "alice")
	bob := newFakeConn(20, "bob")
	require.NoError(t, router.Subscribe(context.Background(), 1, alice))
	require.NoError(t, router.Subscribe(context.Background(), 1, bob))

	store.err = ports.ErrSenderNotMember

	msg, err := router.Publish(context.Background(), 1, alice.User(), "hello")
	assert.ErrorIs(t, err, ports.ErrSenderNotMember)
	assert.Nil(t, msg)
	assert.Empty(t, alice.frames(t))
	assert.Empty(t, bob.frames(t))
}

func TestBroadcastOrderMatchesPersistenceOrder(t *testing.T) {
	router, directory, store := newTestRouter()
	directory.add(1, 10)
	directory.add(1, 20)
	directory.add(1, 30)

	observer := newFakeConn(30, "observer")
	observer.capacity = 1024
	require.NoError(t, router.Subscribe(context.Background(), 1, observer))

	const perSender = 50
	var wg sync.WaitGroup
	for _, senderID := range []int64{10, 20} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			sender := models.User{ID: id}
			for i := 0; i < perSender; i++ {
				_, err := router.Publish(context.Background(), 1, sender, fmt.Sprintf("%d-%d", id, i))
				assert.NoError(t, err)
			}
		}(senderID)
	}
	wg.Wait()

	persisted := store.bodies(1)
	require.Len(t, persisted, 2*perSender)

	frames := observer.frames(t)
	require.Len(t, frames, 2*perSender)
	for i, frame := range frames {
		assert.Equal(t, persisted[i], frame.Message)
	}
}

func TestChatsAreIsolated(t *testing.T) {
	router, directory, _ := newTestRouter()
	directory.add(1, 10)
	directory.add(2, 20)

	alice := newFakeConn(10, "alice")
	bob := newFakeConn(20, "bob")
	require.NoError(t, router.Subscribe(context.Background(), 1, alice))
	require.NoError(t, router.Subscribe(context.Background(), 2, bob))

	_, err := router.Publish(context.Background(), 1, alice.User(), "chat one only")
	require.NoError(t, err)

	assert.Len(t, alice.frames(t), 1)
	assert.Empty(t, bob.frames(t))
}

func TestSlowConsumerEvictedWithoutStallingBroadcast(t *testing.T) {
	router, directory, _ := newTestRouter()
	directory.add(1, 10)
	directory.add(1, 20)

	healthy := newFakeConn(10, "alice")
	slow := newFakeConn(20, "bob")
	slow.capacity = 0
	require.NoError(t, router.Subscribe(context.Background(), 1, healthy))
	require.NoError(t, router.Subscribe(context.Background(), 1, slow))

	_, err := router.Publish(context.Background(), 1, healthy.User(), "hello")
	require.NoError(t, err)

	assert.Len(t, healthy.frames(t), 1)

	closed, code, reason := slow.closedWith()
	assert.True(t, closed)
	assert.Equal(t, 1008, code)
	assert.Equal(t, "slow consumer", reason)
	assert.Equal(t, 1, router.Subscribers(1))
}

func TestNotifyChatReachesSubscribersOnly(t *testing.T) {
	router, directory, _ := newTestRouter()
	directory.add(1, 10)

	alice := newFakeConn(10, "alice")
	require.NoError(t, router.Subscribe(context.Background(), 1, alice))

	router.NotifyChat(1, map[string]string{"type": "chat_updated", "chat_name": "renamed"})
	router.NotifyChat(99, map[string]string{"type": "chat_updated"})

	alice.mu.Lock()
	defer alice.mu.Unlock()
	require.Len(t, alice.delivered, 1)
	assert.Contains(t, string(alice.delivered[0]), "chat_updated")
}

func TestCloseChatClosesEveryConnection(t *testing.T) {
	router, directory, _ := newTestRouter()
	directory.add(1, 10)
	directory.add(1, 20)

	alice := newFakeConn(10, "alice")
	bob := newFakeConn(20, "bob")
	require.NoError(t, router.Subscribe(context.Background(), 1, alice))
	require.NoError(t, router.Subscribe(context.Background(), 1, bob))

	router.CloseChat(1, "chat deleted")

	assert.Equal(t, 0, router.Subscribers(1))
	for _, conn := range []*fakeConn{alice, bob} {
		closed, code, reason := conn.closedWith()
		assert.True(t, closed)
		assert.Equal(t, 1001, code)
		assert.Equal(t, "chat deleted", reason)
	}

	// Closing an already-gone chat is a no-op.
	router.CloseChat(1, "chat deleted")
}

func TestResubscribeAfterEvictionRequiresMembership(t *testing.T) {
	router, directory, _ := newTestRouter()
	directory.add(1, 10)

	alice := newFakeConn(10, "alice")
	require.NoError(t, router.Subscribe(context.Background(), 1, alice))

	router.CloseChat(1, "chat deleted")

	directory.mu.Lock()
	directory.members = make(map[string]bool)
	directory.mu.Unlock()

	err := router.Subscribe(context.Background(), 1, alice)
	assert.ErrorIs(t, err, ports.ErrNotAMember)
}
