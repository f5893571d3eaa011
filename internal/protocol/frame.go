package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
)

const (
	// 帧头：4 字节大端长度
	HeaderSize = 4

	// 单帧最大长度，超过按坏帧处理
	MaxFrameSize = 64 * 1024
)

// 消息类型
const (
	MessageTypeFriend      = 1 // 私聊消息
	MessageTypeGroup       = 2 // 群聊消息
	MessageTypeOnlineCount = 3 // 在线人数通知
)

var (
	ErrFrameTooLarge = errors.New("frame exceeds max size")
	ErrMalformed     = errors.New("malformed frame")
)

// ImMessage 传输层的消息信封
// avatar 和 username 是发送者的冗余展示信息
type ImMessage struct {
	MessageType int    `json:"messageType"`
	Content     string `json:"content,omitempty"`
	FromID      int64  `json:"fromId,omitempty"`
	ToID        int64  `json:"toId,omitempty"`
	GroupID     int64  `json:"groupId,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Username    string `json:"username,omitempty"`
	OnlineCount int    `json:"onlineCount,omitempty"`
}

// KnownType 是否为协议定义的消息类型
func (m *ImMessage) KnownType() bool {
	switch m.MessageType {
	case MessageTypeFriend, MessageTypeGroup, MessageTypeOnlineCount:
		return true
	}
	return false
}

// Encode 序列化为带长度前缀的帧
func (m *ImMessage) Encode() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[:HeaderSize], uint32(len(body)))
	copy(frame[HeaderSize:], body)
	return frame, nil
}

// ReadFrame 从流中读取一帧并解析
// io.EOF 表示对端正常关闭；JSON 解析失败返回 ErrMalformed，
// 调用方丢弃该帧即可，不需要断开连接
func ReadFrame(r io.Reader) (*ImMessage, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header)
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	var msg ImMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, ErrMalformed
	}
	return &msg, nil
}

// NewOnlineCount 构造在线人数通知帧
func NewOnlineCount(count int) *ImMessage {
	return &ImMessage{
		MessageType: MessageTypeOnlineCount,
		OnlineCount: count,
	}
}
