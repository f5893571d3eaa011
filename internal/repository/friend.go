package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Louaq/Awesome-poetize-open/internal/model"
)

// FriendRepository 好友关系读取
// 好友的增删由外部模块负责，这里只消费
type FriendRepository struct {
	db *pgxpool.Pool
}

// NewFriendRepository 创建好友仓库
func NewFriendRepository(db *pgxpool.Pool) *FriendRepository {
	return &FriendRepository{db: db}
}

// IsFriend 检查是否为正常状态的好友
func (r *FriendRepository) IsFriend(ctx context.Context, userID, friendID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM friends
			WHERE user_id = $1 AND friend_id = $2 AND friend_status = $3
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query, userID, friendID, model.FriendStatusNormal).Scan(&exists)
	return exists, err
}

// FriendIDs 正常状态的好友 ID 列表
func (r *FriendRepository) FriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT friend_id FROM friends WHERE user_id = $1 AND friend_status = $2`

	rows, err := r.db.Query(ctx, query, userID, model.FriendStatusNormal)
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
