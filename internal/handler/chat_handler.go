package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/quic-go/webtransport-go"

	"github.com/Louaq/Awesome-poetize-open/internal/connection"
	"github.com/Louaq/Awesome-poetize-open/internal/protocol"
)

// Broadcaster 消息发送入口
type Broadcaster interface {
	SendDirect(ctx context.Context, fromID, toID int64, content string) (int64, error)
	SendGroup(ctx context.Context, fromID, groupID int64, content string) (int64, error)
}

// ChatHandler 处理一条连接上的入站消息流
type ChatHandler struct {
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewChatHandler 创建消息处理器
func NewChatHandler(broadcaster Broadcaster, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// HandleStream 循环读取入站帧直到流关闭
// 坏帧只丢弃不断连，流读错误或对端关闭时返回
func (h *ChatHandler) HandleStream(ctx context.Context, conn *connection.Connection, stream *webtransport.Stream) {
	defer stream.Close()

	for {
		msg, err := protocol.ReadFrame(stream)
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrMalformed):
				h.logger.Warn("Malformed frame dropped", "conn_id", conn.ID(), "user_id", conn.UserID())
				conn.UpdateActive()
				continue
			case errors.Is(err, io.EOF):
				return
			default:
				h.logger.Debug("Failed to read frame", "conn_id", conn.ID(), "error", err)
				return
			}
		}

		conn.UpdateActive()
		h.dispatch(ctx, conn, msg)
	}
}

func (h *ChatHandler) dispatch(ctx context.Context, conn *connection.Connection, msg *protocol.ImMessage) {
	switch msg.MessageType {
	case protocol.MessageTypeFriend:
		h.handleDirect(ctx, conn, msg)
	case protocol.MessageTypeGroup:
		h.handleGroup(ctx, conn, msg)
	default:
		// 在线人数帧只下行，上行收到按未知类型处理
		h.logger.Warn("Unknown message type dropped",
			"conn_id", conn.ID(),
			"message_type", msg.MessageType)
	}
}

func (h *ChatHandler) handleDirect(ctx context.Context, conn *connection.Connection, msg *protocol.ImMessage) {
	// 发送者以连接的认证身份为准，不信任帧里的 fromId
	msgID, err := h.broadcaster.SendDirect(ctx, conn.UserID(), msg.ToID, msg.Content)
	if err != nil {
		h.logger.Warn("Direct message rejected",
			"from_id", conn.UserID(),
			"to_id", msg.ToID,
			"error", err)
		return
	}
	h.logger.Debug("Direct message sent", "msg_id", msgID, "from_id", conn.UserID(), "to_id", msg.ToID)
}

func (h *ChatHandler) handleGroup(ctx context.Context, conn *connection.Connection, msg *protocol.ImMessage) {
	msgID, err := h.broadcaster.SendGroup(ctx, conn.UserID(), msg.GroupID, msg.Content)
	if err != nil {
		h.logger.Warn("Group message rejected",
			"from_id", conn.UserID(),
			"group_id", msg.GroupID,
			"error", err)
		return
	}
	h.logger.Debug("Group message sent", "msg_id", msgID, "from_id", conn.UserID(), "group_id", msg.GroupID)
}
