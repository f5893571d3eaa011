package httpapi

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Louaq/Awesome-poetize-open/internal/service"
	"github.com/Louaq/Awesome-poetize-open/pkg/response"
)

// ReadState 已读状态服务入口
type ReadState interface {
	MarkRead(ctx context.Context, userID int64, chatType int, chatID int64) error
	Hide(ctx context.Context, userID int64, chatType int, chatID int64) error
	Unhide(ctx context.Context, userID int64, chatType int, chatID int64) error
	UnreadCount(ctx context.Context, userID int64, chatType int, chatID int64) (int, error)
	AllUnreadCounts(ctx context.Context, userID int64) (*service.UnreadSummary, error)
	ChatList(ctx context.Context, userID int64) (*service.ChatListSummary, error)
}

// ReadStateHandler 已读状态相关接口
type ReadStateHandler struct {
	readState ReadState
}

// NewReadStateHandler 创建已读状态处理器
func NewReadStateHandler(readState ReadState) *ReadStateHandler {
	return &ReadStateHandler{readState: readState}
}

type chatRequest struct {
	ChatType int   `json:"chatType" binding:"required"`
	ChatID   int64 `json:"chatId" binding:"required"`
}

// MarkRead 标记会话已读
// POST /api/im/read
func (h *ReadStateHandler) MarkRead(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidParams(c)
		return
	}

	if err := h.readState.MarkRead(c.Request.Context(), GetUserID(c), req.ChatType, req.ChatID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Hide 隐藏会话
// POST /api/im/hide
func (h *ReadStateHandler) Hide(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidParams(c)
		return
	}

	if err := h.readState.Hide(c.Request.Context(), GetUserID(c), req.ChatType, req.ChatID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Unhide 取消隐藏会话
// POST /api/im/unhide
func (h *ReadStateHandler) Unhide(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidParams(c)
		return
	}

	if err := h.readState.Unhide(c.Request.Context(), GetUserID(c), req.ChatType, req.ChatID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// UnreadCount 单个会话的未读数
// GET /api/im/unread?chatType=1&chatId=2
func (h *ReadStateHandler) UnreadCount(c *gin.Context) {
	chatType, err1 := strconv.Atoi(c.Query("chatType"))
	chatID, err2 := strconv.ParseInt(c.Query("chatId"), 10, 64)
	if err1 != nil || err2 != nil {
		response.InvalidParams(c)
		return
	}

	count, err := h.readState.UnreadCount(c.Request.Context(), GetUserID(c), chatType, chatID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"count": count})
}

// AllUnreadCounts 全部会话的未读数
// GET /api/im/unread/all
func (h *ReadStateHandler) AllUnreadCounts(c *gin.Context) {
	summary, err := h.readState.AllUnreadCounts(c.Request.Context(), GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, summary)
}

// ChatList 聊天列表
// GET /api/im/chats
func (h *ReadStateHandler) ChatList(c *gin.Context) {
	list, err := h.readState.ChatList(c.Request.Context(), GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}
