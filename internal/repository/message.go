package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Louaq/Awesome-poetize-open/internal/model"
)

// MessageRepository 消息仓库
// 未读数和聊天列表都以持久化的消息时间为准计算，
// 没有已读标记时用注入的 epochDefault 兜底
type MessageRepository struct {
	db           *pgxpool.Pool
	epochDefault time.Time
}

// NewMessageRepository 创建消息仓库
func NewMessageRepository(db *pgxpool.Pool, epochDefault time.Time) *MessageRepository {
	return &MessageRepository{db: db, epochDefault: epochDefault}
}

// SaveDirect 保存私聊消息
func (r *MessageRepository) SaveDirect(ctx context.Context, msg *model.DirectMessage) error {
	query := `
		INSERT INTO direct_messages (id, from_id, to_id, content, create_time)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, msg.ID, msg.FromID, msg.ToID, msg.Content, msg.CreateTime)
	return err
}

// SaveGroup 保存群聊消息
func (r *MessageRepository) SaveGroup(ctx context.Context, msg *model.GroupMessage) error {
	query := `
		INSERT INTO group_messages (id, group_id, from_id, content, create_time)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, msg.ID, msg.GroupID, msg.FromID, msg.Content, msg.CreateTime)
	return err
}

// FriendUnreadCount 单个好友的未读消息数
func (r *MessageRepository) FriendUnreadCount(ctx context.Context, userID, friendID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM direct_messages m
		LEFT JOIN chat_last_read lr
		  ON lr.user_id = $1 AND lr.chat_type = $3 AND lr.chat_id = $2
		WHERE m.from_id = $2 AND m.to_id = $1
		  AND m.create_time > COALESCE(lr.last_read_time, $4)
	`

	var count int
	err := r.db.QueryRow(ctx, query, userID, friendID, model.ChatTypeFriend, r.epochDefault).Scan(&count)
	return count, err
}

// GroupUnreadCount 单个群的未读消息数，自己发的消息不算
func (r *MessageRepository) GroupUnreadCount(ctx context.Context, userID, groupID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM group_messages gm
		LEFT JOIN chat_last_read lr
		  ON lr.user_id = $1 AND lr.chat_type = $3 AND lr.chat_id = $2
		WHERE gm.group_id = $2
		  AND gm.from_id != $1
		  AND gm.create_time > COALESCE(lr.last_read_time, $4)
	`

	var count int
	err := r.db.QueryRow(ctx, query, userID, groupID, model.ChatTypeGroup, r.epochDefault).Scan(&count)
	return count, err
}

// FriendUnreadCounts 所有正常好友的未读消息数
// 结果与逐个调用 FriendUnreadCount 一致
func (r *MessageRepository) FriendUnreadCounts(ctx context.Context, userID int64) (map[int64]int, error) {
	query := `
		SELECT f.friend_id, COUNT(m.id)
		FROM friends f
		LEFT JOIN chat_last_read lr
		  ON lr.user_id = $1 AND lr.chat_type = $2 AND lr.chat_id = f.friend_id
		LEFT JOIN direct_messages m
		  ON m.from_id = f.friend_id AND m.to_id = $1
		  AND m.create_time > COALESCE(lr.last_read_time, $4)
		WHERE f.user_id = $1 AND f.friend_status = $3
		GROUP BY f.friend_id
	`

	rows, err := r.db.Query(ctx, query, userID, model.ChatTypeFriend, model.FriendStatusNormal, r.epochDefault)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var friendID int64
		var count int
		if err := rows.Scan(&friendID, &count); err != nil {
			return nil, err
		}
		counts[friendID] = count
	}
	return counts, rows.Err()
}

// GroupUnreadCounts 所有群的未读消息数
// 只统计状态为正常或禁言的群成员关系，其他状态的群不出现在结果里
func (r *MessageRepository) GroupUnreadCounts(ctx context.Context, userID int64) (map[int64]int, error) {
	query := `
		SELECT gu.group_id, COUNT(gm.id)
		FROM group_members gu
		LEFT JOIN chat_last_read lr
		  ON lr.user_id = $1 AND lr.chat_type = $2 AND lr.chat_id = gu.group_id
		LEFT JOIN group_messages gm
		  ON gm.group_id = gu.group_id
		  AND gm.from_id != $1
		  AND gm.create_time > COALESCE(lr.last_read_time, $5)
		WHERE gu.user_id = $1 AND gu.user_status IN ($3, $4)
		GROUP BY gu.group_id
	`

	rows, err := r.db.Query(ctx, query, userID, model.ChatTypeGroup,
		model.GroupUserStatusNormal, model.GroupUserStatusMuted, r.epochDefault)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var groupID int64
		var count int
		if err := rows.Scan(&groupID, &count); err != nil {
			return nil, err
		}
		counts[groupID] = count
	}
	return counts, rows.Err()
}

// FriendChatList 私聊列表，按最后查看时间倒序，过滤隐藏的聊天
// 从未打开过的聊天取纪元时间，排在最后
func (r *MessageRepository) FriendChatList(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT f.friend_id
		FROM friends f
		LEFT JOIN chat_last_read lr
		  ON lr.user_id = $1 AND lr.chat_type = $2 AND lr.chat_id = f.friend_id
		WHERE f.user_id = $1 AND f.friend_status = $3
		  AND COALESCE(lr.is_hidden, FALSE) = FALSE
		ORDER BY COALESCE(lr.last_read_time, $4) DESC
	`

	rows, err := r.db.Query(ctx, query, userID, model.ChatTypeFriend, model.FriendStatusNormal, r.epochDefault)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GroupChatList 群聊列表，按最后查看时间倒序，过滤隐藏的聊天
func (r *MessageRepository) GroupChatList(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT gu.group_id
		FROM group_members gu
		LEFT JOIN chat_last_read lr
		  ON lr.user_id = $1 AND lr.chat_type = $2 AND lr.chat_id = gu.group_id
		WHERE gu.user_id = $1 AND gu.user_status IN ($3, $4)
		  AND COALESCE(lr.is_hidden, FALSE) = FALSE
		ORDER BY COALESCE(lr.last_read_time, $5) DESC
	`

	rows, err := r.db.Query(ctx, query, userID, model.ChatTypeGroup,
		model.GroupUserStatusNormal, model.GroupUserStatusMuted, r.epochDefault)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
