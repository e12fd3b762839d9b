package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IlyacloudDev/QuickTalk/internal/models"
	"github.com/IlyacloudDev/QuickTalk/internal/ports"
	"github.com/IlyacloudDev/QuickTalk/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSessions struct {
	users map[string]*models.User
}

func (s *stubSessions) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	if user, ok := s.users[token]; ok {
		return user, nil
	}
	return nil, ports.ErrUnauthorized
}

type memDirectory struct {
	mu      sync.Mutex
	members map[string]bool
}

func (d *memDirectory) add(chatID, userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[fmt.Sprintf("%d:%d", chatID, userID)] = true
}

func (d *memDirectory) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.members[fmt.Sprintf("%d:%d", chatID, userID)], nil
}

type memStore struct {
	mu     sync.Mutex
	nextID int64
	names  map[int64]string
	log    []models.Message
}

func (s *memStore) Append(ctx context.Context, chatID, senderID int64, body string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg := models.Message{
		ID:        s.nextID,
		ChatID:    chatID,
		SenderID:  senderID,
		Sender:    s.names[senderID],
		Content:   body,
		CreatedAt: time.Now(),
	}
	s.log = append(s.log, msg)
	return &msg, nil
}

func (s *memStore) ListSince(ctx context.Context, chatID, sinceID int64, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, msg := range s.log {
		if msg.ChatID == chatID && msg.ID > sinceID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *memStore) bodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	bodies := make([]string, 0, len(s.log))
	for _, msg := range s.log {
		bodies = append(bodies, msg.Content)
	}
	return bodies
}

type gatewayFixture struct {
	server    *httptest.Server
	router    *realtime.Router
	directory *memDirectory
	store     *memStore
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	directory := &memDirectory{members: make(map[string]bool)}
	store := &memStore{names: map[int64]string{10: "alice", 20: "bob"}}

	metrics := realtime.NewMetrics()
	router := realtime.NewRouter(directory, store, metrics, logger)
	registry := realtime.NewRegistry(metrics, logger)

	sessions := &stubSessions{users: map[string]*models.User{
		"alice-token": {ID: 10, Username: "alice"},
		"bob-token":   {ID: 20, Username: "bob"},
	}}

	handler := NewGatewayHandler(router, registry, sessions, logger)

	engine := gin.New()
	engine.GET("/api/ws/chats/:chatId", handler.HandleWebSocket)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	return &gatewayFixture{server: server, router: router, directory: directory, store: store}
}

func (f *gatewayFixture) dial(t *testing.T, chatID int64, token string) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("%s/api/ws/chats/%d?token=%s",
		strings.Replace(f.server.URL, "http", "ws", 1), chatID, token)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return conn
}

// waitForSubscribers blocks until the chat has the expected number of live
// subscriptions; the subscribe step finishes after the handshake response.
func (f *gatewayFixture) waitForSubscribers(t *testing.T, chatID int64, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.router.Subscribers(chatID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("chat %d never reached %d subscribers", chatID, want)
}

type receivedFrame struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func TestMessageReachesAllSubscribers(t *testing.T) {
	f := newGatewayFixture(t)
	f.directory.add(1, 10)
	f.directory.add(1, 20)

	alice := f.dial(t, 1, "alice-token")
	bob := f.dial(t, 1, "bob-token")
	f.waitForSubscribers(t, 1, 2)

	require.NoError(t, alice.WriteJSON(map[string]string{"message": "hello"}))

	for _, conn := range []*websocket.Conn{alice, bob} {
		var frame receivedFrame
		require.NoError(t, conn.ReadJSON(&frame))
		assert.Equal(t, int64(10), frame.UserID)
		assert.Equal(t, "alice", frame.Username)
		assert.Equal(t, "hello", frame.Message)
		_, err := time.Parse(time.RFC3339, frame.Timestamp)
		assert.NoError(t, err)
	}

	assert.Equal(t, []string{"hello"}, f.store.bodies())
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	f := newGatewayFixture(t)

	url := strings.Replace(f.server.URL, "http", "ws", 1) + "/api/ws/chats/1?token=wrong"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)

	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Nil(t, conn)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestHandshakeRejectsNonMember(t *testing.T) {
	f := newGatewayFixture(t)
	f.directory.add(1, 10)

	// Bob's token is valid but he is not in chat 1: the upgrade succeeds
	// and the server immediately closes with a policy violation.
	bob := f.dial(t, 1, "bob-token")

	_, _, err := bob.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "not a member of this chat", closeErr.Text)
	assert.Equal(t, 0, f.router.Subscribers(1))
}

func TestBlankMessagesAreDropped(t *testing.T) {
	f := newGatewayFixture(t)
	f.directory.add(1, 10)

	alice := f.dial(t, 1, "alice-token")
	f.waitForSubscribers(t, 1, 1)

	require.NoError(t, alice.WriteJSON(map[string]string{"message": "   "}))
	require.NoError(t, alice.WriteJSON(map[string]string{"message": "real"}))

	var frame receivedFrame
	require.NoError(t, alice.ReadJSON(&frame))
	assert.Equal(t, "real", frame.Message)

	assert.Equal(t, []string{"real"}, f.store.bodies())
}

func TestDisconnectReleasesSubscription(t *testing.T) {
	f := newGatewayFixture(t)
	f.directory.add(1, 10)
	f.directory.add(1, 20)

	alice := f.dial(t, 1, "alice-token")
	bob := f.dial(t, 1, "bob-token")
	f.waitForSubscribers(t, 1, 2)

	alice.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	alice.Close()
	f.waitForSubscribers(t, 1, 1)

	// The remaining subscriber keeps receiving.
	require.NoError(t, bob.WriteJSON(map[string]string{"message": "still here"}))
	var frame receivedFrame
	require.NoError(t, bob.ReadJSON(&frame))
	assert.Equal(t, "still here", frame.Message)
}

func TestInvalidChatIDRejectedBeforeUpgrade(t *testing.T) {
	f := newGatewayFixture(t)

	url := strings.Replace(f.server.URL, "http", "ws", 1) + "/api/ws/chats/abc?token=alice-token"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, 400, resp.StatusCode)
}
