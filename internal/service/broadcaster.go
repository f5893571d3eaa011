package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Louaq/Awesome-poetize-open/internal/connection"
	"github.com/Louaq/Awesome-poetize-open/internal/model"
	"github.com/Louaq/Awesome-poetize-open/internal/protocol"
	"github.com/Louaq/Awesome-poetize-open/internal/workerpool"
	"github.com/Louaq/Awesome-poetize-open/pkg/errors"
	"github.com/Louaq/Awesome-poetize-open/pkg/snowflake"
)

// MessageStore 消息持久化
type MessageStore interface {
	SaveDirect(ctx context.Context, msg *model.DirectMessage) error
	SaveGroup(ctx context.Context, msg *model.GroupMessage) error
}

// MarkerWriter 已读标记写入，广播器只需要取消隐藏
type MarkerWriter interface {
	Unhide(ctx context.Context, userID int64, chatType int, chatID int64) error
}

// FriendSource 好友关系查询
type FriendSource interface {
	IsFriend(ctx context.Context, userID, friendID int64) (bool, error)
}

// GroupSource 群成员关系查询
type GroupSource interface {
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
	MemberIDs(ctx context.Context, groupID int64) ([]int64, error)
}

// ProfileSource 发送者展示信息查询
type ProfileSource interface {
	GetProfile(ctx context.Context, userID int64) (*model.UserProfile, error)
}

// Registry 在线连接查询
type Registry interface {
	SessionsFor(userID int64) []connection.Conn
	AllSessions() []connection.Conn
	OnlineUserCount() int
}

// Relay 跨节点转发，单节点部署时为 nil
type Relay interface {
	PublishPush(userID int64, frame []byte)
}

// BroadcastService 消息广播器
// 先落库再投递：持久化失败整个发送失败；
// 投递失败只记日志，消息已经落库，接收方下次拉取仍能看到
type BroadcastService struct {
	messages MessageStore
	markers  MarkerWriter
	friends  FriendSource
	groups   GroupSource
	profiles ProfileSource
	registry Registry
	relay    Relay
	idGen    *snowflake.Node
	pool     *workerpool.Pool
	logger   *slog.Logger
}

// NewBroadcastService 创建消息广播器
func NewBroadcastService(
	messages MessageStore,
	markers MarkerWriter,
	friends FriendSource,
	groups GroupSource,
	profiles ProfileSource,
	registry Registry,
	relay Relay,
	idGen *snowflake.Node,
	pool *workerpool.Pool,
) *BroadcastService {
	return &BroadcastService{
		messages: messages,
		markers:  markers,
		friends:  friends,
		groups:   groups,
		profiles: profiles,
		registry: registry,
		relay:    relay,
		idGen:    idGen,
		pool:     pool,
		logger:   slog.Default(),
	}
}

// SendDirect 发送私聊消息，返回持久化后的消息 ID
func (s *BroadcastService) SendDirect(ctx context.Context, fromID, toID int64, content string) (int64, error) {
	if fromID == toID {
		return 0, errors.ErrCannotChatSelf
	}

	isFriend, err := s.friends.IsFriend(ctx, fromID, toID)
	if err != nil {
		return 0, errors.ErrDBError.Wrap(err)
	}
	if !isFriend {
		return 0, errors.ErrNotFriend
	}

	msg := &model.DirectMessage{
		ID:         s.idGen.Generate(),
		FromID:     fromID,
		ToID:       toID,
		Content:    content,
		CreateTime: time.Now(),
	}
	if err := s.messages.SaveDirect(ctx, msg); err != nil {
		return 0, errors.ErrDBError.Wrap(err)
	}

	// 收到新消息后接收方的聊天重新出现在列表里
	if err := s.markers.Unhide(ctx, toID, model.ChatTypeFriend, fromID); err != nil {
		s.logger.Error("Failed to unhide chat", "user_id", toID, "friend_id", fromID, "error", err)
	}

	frame := s.buildFrame(ctx, &protocol.ImMessage{
		MessageType: protocol.MessageTypeFriend,
		Content:     content,
		FromID:      fromID,
		ToID:        toID,
	})
	if frame != nil {
		s.deliver(toID, frame)
	}

	return msg.ID, nil
}

// SendGroup 发送群聊消息，返回持久化后的消息 ID
// 每个接收者独立投递，单个失败不影响其他成员
func (s *BroadcastService) SendGroup(ctx context.Context, fromID, groupID int64, content string) (int64, error) {
	isMember, err := s.groups.IsMember(ctx, groupID, fromID)
	if err != nil {
		return 0, errors.ErrDBError.Wrap(err)
	}
	if !isMember {
		return 0, errors.ErrNotGroupMember
	}

	msg := &model.GroupMessage{
		ID:         s.idGen.Generate(),
		GroupID:    groupID,
		FromID:     fromID,
		Content:    content,
		CreateTime: time.Now(),
	}
	if err := s.messages.SaveGroup(ctx, msg); err != nil {
		return 0, errors.ErrDBError.Wrap(err)
	}

	memberIDs, err := s.groups.MemberIDs(ctx, groupID)
	if err != nil {
		// 消息已落库，成员查询失败只影响实时推送
		s.logger.Error("Failed to load group members", "group_id", groupID, "error", err)
		return msg.ID, nil
	}

	frame := s.buildFrame(ctx, &protocol.ImMessage{
		MessageType: protocol.MessageTypeGroup,
		Content:     content,
		FromID:      fromID,
		GroupID:     groupID,
	})

	for _, memberID := range memberIDs {
		if memberID == fromID {
			continue
		}
		if err := s.markers.Unhide(ctx, memberID, model.ChatTypeGroup, groupID); err != nil {
			s.logger.Error("Failed to unhide chat", "user_id", memberID, "group_id", groupID, "error", err)
		}
		if frame != nil {
			s.deliver(memberID, frame)
		}
	}

	return msg.ID, nil
}

// BroadcastOnlineCount 向所有在线连接广播当前在线人数
// 尽力而为：队列满或发送失败都直接跳过
func (s *BroadcastService) BroadcastOnlineCount() {
	frame, err := protocol.NewOnlineCount(s.registry.OnlineUserCount()).Encode()
	if err != nil {
		s.logger.Error("Failed to encode online count frame", "error", err)
		return
	}

	for _, conn := range s.registry.AllSessions() {
		c := conn
		s.pool.TrySubmit(func() {
			if err := c.Send(frame); err != nil {
				s.logger.Debug("Online count push failed", "conn_id", c.ID(), "error", err)
			}
		})
	}
}

// buildFrame 填充发送者展示信息并编码
// 展示信息查不到不阻塞发送，帧里留空
func (s *BroadcastService) buildFrame(ctx context.Context, msg *protocol.ImMessage) []byte {
	profile, err := s.profiles.GetProfile(ctx, msg.FromID)
	if err != nil {
		s.logger.Warn("Failed to load sender profile", "user_id", msg.FromID, "error", err)
	} else {
		msg.Avatar = profile.Avatar
		msg.Username = profile.Username
	}

	frame, err := msg.Encode()
	if err != nil {
		s.logger.Error("Failed to encode frame", "error", err)
		return nil
	}
	return frame
}

// deliver 投递到某个用户的所有在线连接
// 接收方不在线时什么都不做，消息留待下次拉取
func (s *BroadcastService) deliver(userID int64, frame []byte) {
	for _, conn := range s.registry.SessionsFor(userID) {
		c := conn
		s.pool.Submit(func() {
			if err := c.Send(frame); err != nil {
				s.logger.Warn("Message push failed",
					"user_id", userID,
					"conn_id", c.ID(),
					"error", err)
			}
		})
	}

	if s.relay != nil {
		s.relay.PublishPush(userID, frame)
	}
}
