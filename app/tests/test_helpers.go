package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/IlyacloudDev/QuickTalk/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetUserByName(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	args := m.Called(ctx, query, limit)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *MockUserRepository) CreateUser(ctx context.Context, username, passwordHash, email string) (int64, error) {
	args := m.Called(ctx, username, passwordHash, email)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) UpdateUser(ctx context.Context, id int64, email, passwordHash string) error {
	args := m.Called(ctx, id, email, passwordHash)
	return args.Error(0)
}

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockChatRepository) CreateGroupChat(ctx context.Context, name string, createdBy int64, memberIDs []int64) (int64, error) {
	args := m.Called(ctx, name, createdBy, memberIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChatRepository) FindPersonalChat(ctx context.Context, userA, userB int64) (*models.Chat, error) {
	args := m.Called(ctx, userA, userB)
	chat, _ := args.Get(0).(*models.Chat)
	return chat, args.Error(1)
}

func (m *MockChatRepository) CreatePersonalChat(ctx context.Context, userA, userB int64) (int64, error) {
	args := m.Called(ctx, userA, userB)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChatRepository) GetChatByID(ctx context.Context, chatID int64) (*models.Chat, error) {
	args := m.Called(ctx, chatID)
	chat, _ := args.Get(0).(*models.Chat)
	return chat, args.Error(1)
}

func (m *MockChatRepository) GetUserChats(ctx context.Context, userID int64) ([]models.Chat, error) {
	args := m.Called(ctx, userID)
	chats, _ := args.Get(0).([]models.Chat)
	return chats, args.Error(1)
}

func (m *MockChatRepository) UpdateChatName(ctx context.Context, chatID int64, name string) error {
	args := m.Called(ctx, chatID, name)
	return args.Error(0)
}

func (m *MockChatRepository) DeleteChat(ctx context.Context, chatID int64) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *MockChatRepository) AddMember(ctx context.Context, chatID, userID int64) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *MockChatRepository) SearchGroupChats(ctx context.Context, query string, limit int) ([]models.Chat, error) {
	args := m.Called(ctx, query, limit)
	chats, _ := args.Get(0).([]models.Chat)
	return chats, args.Error(1)
}

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Append(ctx context.Context, chatID, senderID int64, body string) (*models.Message, error) {
	args := m.Called(ctx, chatID, senderID, body)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *MockMessageStore) ListSince(ctx context.Context, chatID, sinceID int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, chatID, sinceID, limit)
	messages, _ := args.Get(0).([]models.Message)
	return messages, args.Error(1)
}

type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	args := m.Called(ctx, tokenHash)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenRepository) Revoke(ctx context.Context, tokenHash string, expiration time.Duration) error {
	args := m.Called(ctx, tokenHash, expiration)
	return args.Error(0)
}

type MockRealtimeBridge struct {
	mock.Mock
}

func (m *MockRealtimeBridge) NotifyUser(userID int64, event any) {
	m.Called(userID, event)
}

func (m *MockRealtimeBridge) NotifyChat(chatID int64, event any) {
	m.Called(chatID, event)
}

func (m *MockRealtimeBridge) CloseChat(chatID int64, reason string) {
	m.Called(chatID, reason)
}

type MockHasher struct {
	mock.Mock
}

func (m *MockHasher) GenerateFromPassword(password []byte, cost int) ([]byte, error) {
	args := m.Called(password, cost)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockHasher) CompareHashAndPassword(storedPassword []byte, userPassword []byte) error {
	args := m.Called(storedPassword, userPassword)
	return args.Error(0)
}

func (m *MockHasher) DefaultCost() int {
	return m.Called().Int(0)
}

func CreateTestRequest(url, method string, body interface{}) *http.Request {
	var buffer bytes.Buffer
	if body != nil {
		json.NewEncoder(&buffer).Encode(body)
	}

	req := httptest.NewRequest(method, url, &buffer)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func ExecuteHandler(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
