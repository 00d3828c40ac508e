package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"directchat/internal/auth"
	"directchat/internal/service"
	"directchat/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxPageSize = 200

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	chat    *service.ChatService
	store   store.Store
	timeout time.Duration
}

func NewHandler(chat *service.ChatService, st store.Store, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handler{chat: chat, store: st, timeout: timeout}
}

func (h *Handler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// writeError 按错误码输出统一的错误结构，非预期错误只记录日志不外泄细节。
func writeError(c *gin.Context, err error, op string) {
	code := service.CodeOf(err)
	status := http.StatusInternalServerError
	msg := "internal error"
	switch code {
	case service.CodeInvalidInput:
		status, msg = http.StatusBadRequest, err.Error()
	case service.CodeNotFound:
		status, msg = http.StatusNotFound, err.Error()
	case service.CodeInsufficientPermissions:
		status, msg = http.StatusForbidden, err.Error()
	default:
		log.Error().Err(err).Str("op", op).Str("user_id", auth.GetUserID(c).String()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

func invalid(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg, "code": service.CodeInvalidInput})
}

func roomIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalid(c, "invalid room id")
		return uuid.Nil, false
	}
	return id, true
}

type createRoomRequest struct {
	Usernames []string `json:"usernames" binding:"required,min=1,max=50"`
}

// CreateRoom 返回调用者与指定用户组成的房间，不存在则创建。
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "invalid payload")
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	room, err := h.chat.GetOrCreateRoom(ctx, auth.GetUserID(c), req.Usernames)
	if err != nil {
		writeError(c, err, "create room")
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

// ListRooms 返回调用者所在的房间，按最近活跃排序。
func (h *Handler) ListRooms(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	rooms, err := h.chat.GetUserRooms(ctx, auth.GetUserID(c))
	if err != nil {
		writeError(c, err, "list rooms")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *Handler) GetRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	room, err := h.chat.GetRoomByID(ctx, auth.GetUserID(c), roomID)
	if err != nil {
		writeError(c, err, "get room")
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

// GetRoomByUsername 查找与某个用户的一对一房间，不会创建。
func (h *Handler) GetRoomByUsername(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	room, err := h.chat.GetRoomByUsername(ctx, auth.GetUserID(c), c.Param("username"))
	if err != nil {
		writeError(c, err, "get room by username")
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

// ListMessages 返回房间历史消息。limit 缺省时返回全部，before_id 用于向前翻页。
func (h *Handler) ListMessages(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	var q store.MessageQuery
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxPageSize {
			invalid(c, "invalid limit")
			return
		}
		q.Limit = limit
	}
	if raw := c.Query("before_id"); raw != "" {
		bid, err := uuid.Parse(raw)
		if err != nil {
			invalid(c, "invalid before_id")
			return
		}
		q.BeforeID = &bid
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	msgs, err := h.chat.GetMessages(ctx, auth.GetUserID(c), roomID, q)
	if err != nil {
		writeError(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage 写入消息并广播给房间订阅者。
func (h *Handler) SendMessage(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	// 请求体无法解析时按空内容处理，房间存在与成员校验仍先于内容校验
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = sendMessageRequest{}
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	msg, err := h.chat.SendMessage(ctx, auth.GetUserID(c), roomID, req.Content)
	if err != nil {
		writeError(c, err, "send message")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// Healthz 检查数据库连通性。
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("health check")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
