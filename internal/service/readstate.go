package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Louaq/Awesome-poetize-open/internal/model"
	"github.com/Louaq/Awesome-poetize-open/pkg/errors"
)

// MarkerStore 已读标记存取
type MarkerStore interface {
	MarkRead(ctx context.Context, userID int64, chatType int, chatID int64) error
	Hide(ctx context.Context, userID int64, chatType int, chatID int64) error
	Unhide(ctx context.Context, userID int64, chatType int, chatID int64) error
	Get(ctx context.Context, userID int64, chatType int, chatID int64) (*model.ChatLastRead, error)
}

// UnreadSource 未读数与聊天列表查询
type UnreadSource interface {
	FriendUnreadCount(ctx context.Context, userID, friendID int64) (int, error)
	GroupUnreadCount(ctx context.Context, userID, groupID int64) (int, error)
	FriendUnreadCounts(ctx context.Context, userID int64) (map[int64]int, error)
	GroupUnreadCounts(ctx context.Context, userID int64) (map[int64]int, error)
	FriendChatList(ctx context.Context, userID int64) ([]int64, error)
	GroupChatList(ctx context.Context, userID int64) ([]int64, error)
}

// UnreadSummary 一个用户全部会话的未读数
type UnreadSummary struct {
	Friend map[int64]int `json:"friend"`
	Group  map[int64]int `json:"group"`
}

// ChatListSummary 一个用户的聊天列表（已按最后查看时间倒序）
type ChatListSummary struct {
	Friend []int64 `json:"friend"`
	Group  []int64 `json:"group"`
}

// ReadStateService 已读状态服务
// 对外暴露标记已读、隐藏、未读数和聊天列表，
// 所有操作先校验用户和会话的关系
type ReadStateService struct {
	markers      MarkerStore
	messages     UnreadSource
	friends      FriendSource
	groups       GroupSource
	epochDefault time.Time
	logger       *slog.Logger
}

// NewReadStateService 创建已读状态服务
func NewReadStateService(
	markers MarkerStore,
	messages UnreadSource,
	friends FriendSource,
	groups GroupSource,
	epochDefault time.Time,
) *ReadStateService {
	return &ReadStateService{
		markers:      markers,
		messages:     messages,
		friends:      friends,
		groups:       groups,
		epochDefault: epochDefault,
		logger:       slog.Default(),
	}
}

// MarkRead 标记会话已读，最后查看时间推进到当前时刻
// 幂等，重复调用安全
func (s *ReadStateService) MarkRead(ctx context.Context, userID int64, chatType int, chatID int64) error {
	if err := s.checkRelation(ctx, userID, chatType, chatID); err != nil {
		return err
	}
	if err := s.markers.MarkRead(ctx, userID, chatType, chatID); err != nil {
		return errors.ErrDBError.Wrap(err)
	}
	return nil
}

// Hide 隐藏会话，直到有新消息到达才重新出现
func (s *ReadStateService) Hide(ctx context.Context, userID int64, chatType int, chatID int64) error {
	if err := s.checkRelation(ctx, userID, chatType, chatID); err != nil {
		return err
	}
	if err := s.markers.Hide(ctx, userID, chatType, chatID); err != nil {
		return errors.ErrDBError.Wrap(err)
	}
	return nil
}

// Unhide 取消隐藏
func (s *ReadStateService) Unhide(ctx context.Context, userID int64, chatType int, chatID int64) error {
	if err := s.checkRelation(ctx, userID, chatType, chatID); err != nil {
		return err
	}
	if err := s.markers.Unhide(ctx, userID, chatType, chatID); err != nil {
		return errors.ErrDBError.Wrap(err)
	}
	return nil
}

// UnreadCount 单个会话的未读数
func (s *ReadStateService) UnreadCount(ctx context.Context, userID int64, chatType int, chatID int64) (int, error) {
	if err := s.checkRelation(ctx, userID, chatType, chatID); err != nil {
		return 0, err
	}

	var count int
	var err error
	if chatType == model.ChatTypeFriend {
		count, err = s.messages.FriendUnreadCount(ctx, userID, chatID)
	} else {
		count, err = s.messages.GroupUnreadCount(ctx, userID, chatID)
	}
	if err != nil {
		return 0, errors.ErrDBError.Wrap(err)
	}
	return count, nil
}

// AllUnreadCounts 全部会话的未读数
func (s *ReadStateService) AllUnreadCounts(ctx context.Context, userID int64) (*UnreadSummary, error) {
	friendCounts, err := s.messages.FriendUnreadCounts(ctx, userID)
	if err != nil {
		return nil, errors.ErrDBError.Wrap(err)
	}
	groupCounts, err := s.messages.GroupUnreadCounts(ctx, userID)
	if err != nil {
		return nil, errors.ErrDBError.Wrap(err)
	}
	return &UnreadSummary{Friend: friendCounts, Group: groupCounts}, nil
}

// ChatList 聊天列表，隐藏的会话不出现
func (s *ReadStateService) ChatList(ctx context.Context, userID int64) (*ChatListSummary, error) {
	friendList, err := s.messages.FriendChatList(ctx, userID)
	if err != nil {
		return nil, errors.ErrDBError.Wrap(err)
	}
	groupList, err := s.messages.GroupChatList(ctx, userID)
	if err != nil {
		return nil, errors.ErrDBError.Wrap(err)
	}
	return &ChatListSummary{Friend: friendList, Group: groupList}, nil
}

// EffectiveLastRead 有标记取标记时间，没有标记取兜底纪元时间，
// 从未打开过的会话等价于所有历史消息未读
func (s *ReadStateService) EffectiveLastRead(ctx context.Context, userID int64, chatType int, chatID int64) (time.Time, error) {
	marker, err := s.markers.Get(ctx, userID, chatType, chatID)
	if err != nil {
		return time.Time{}, errors.ErrDBError.Wrap(err)
	}
	if marker == nil {
		return s.epochDefault, nil
	}
	return marker.LastReadTime, nil
}

// checkRelation 校验用户与会话的关系，没有关系直接拒绝
func (s *ReadStateService) checkRelation(ctx context.Context, userID int64, chatType int, chatID int64) error {
	if !model.ValidChatType(chatType) {
		return errors.ErrInvalidParams
	}

	if chatType == model.ChatTypeFriend {
		isFriend, err := s.friends.IsFriend(ctx, userID, chatID)
		if err != nil {
			return errors.ErrDBError.Wrap(err)
		}
		if !isFriend {
			return errors.ErrNotFriend
		}
		return nil
	}

	isMember, err := s.groups.IsMember(ctx, chatID, userID)
	if err != nil {
		return errors.ErrDBError.Wrap(err)
	}
	if !isMember {
		return errors.ErrNotGroupMember
	}
	return nil
}
