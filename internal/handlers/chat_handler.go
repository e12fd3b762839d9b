package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/IlyacloudDev/QuickTalk/internal/services"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type ChatHandler struct {
	service *services.ChatService
	logger  *slog.Logger
	tracer  trace.Tracer
}

func NewChatHandler(service *services.ChatService, logger *slog.Logger, tracer trace.Tracer) *ChatHandler {
	return &ChatHandler{service: service, logger: logger, tracer: tracer}
}

func (h *ChatHandler) CreateGroupChat(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		ChatName string   `json:"chat_name"`
		Members  []string `json:"members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	ctx := c.Request.Context()
	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "chat.create_group")
		defer span.End()
	}

	chat, err := h.service.CreateGroupChat(ctx, req.ChatName, user.ID, req.Members)
	if err != nil {
		h.logger.Error("group chat creation failed", "error", err)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"detail": "Group chat created successfully.", "chat": chat})
}

func (h *ChatHandler) CreatePersonalChat(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	chat, created, err := h.service.CreatePersonalChat(c.Request.Context(), user.ID, req.Username)
	if err != nil {
		h.logger.Error("personal chat creation failed", "error", err)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"chat": chat})
}

func (h *ChatHandler) GetUserChats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	chats, err := h.service.GetUserChats(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// GetChatDetail is the initial load a client does before opening the
// websocket: name, type, permissions, full history.
func (h *ChatHandler) GetChatDetail(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	chatID, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	ctx := c.Request.Context()
	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "chat.detail")
		defer span.End()
	}

	detail, err := h.service.GetChatDetail(ctx, chatID, user.ID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"detail": detail})
}

func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	chatID, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	sinceID, _ := strconv.ParseInt(c.DefaultQuery("since", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := h.service.GetChatMessages(c.Request.Context(), chatID, user.ID, sinceID, limit)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *ChatHandler) UpdateChat(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	chatID, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	var req struct {
		ChatName string `json:"chat_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := h.service.UpdateGroupChat(c.Request.Context(), chatID, user.ID, req.ChatName); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"detail": "Chat updated successfully."})
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	chatID, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	if err := h.service.DeleteChat(c.Request.Context(), chatID, user.ID); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

func (h *ChatHandler) JoinChat(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	chatID, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	joined, err := h.service.JoinGroupChat(c.Request.Context(), chatID, user.ID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	if !joined {
		c.JSON(http.StatusOK, gin.H{"detail": "The user has already joined this group chat."})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"detail": "The user was successfully added to the chat."})
}

func (h *ChatHandler) Search(c *gin.Context) {
	query := c.Query("query")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	chats, err := h.service.SearchGroupChats(c.Request.Context(), query, limit)
	if err != nil {
		h.logger.Error("chat search failed", "query", query, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}
