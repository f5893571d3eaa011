package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Louaq/Awesome-poetize-open/internal/model"
)

// GroupRepository 群成员关系读取
// 建群、进群、退群由外部模块负责，这里只消费
type GroupRepository struct {
	db *pgxpool.Pool
}

// NewGroupRepository 创建群组仓库
func NewGroupRepository(db *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{db: db}
}

// IsMember 检查用户是否为群成员（正常或禁言状态）
func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM group_members
			WHERE group_id = $1 AND user_id = $2 AND user_status IN ($3, $4)
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query, groupID, userID,
		model.GroupUserStatusNormal, model.GroupUserStatusMuted).Scan(&exists)
	return exists, err
}

// MemberIDs 群成员 ID 列表（正常或禁言状态），用于消息分发
func (r *GroupRepository) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	query := `
		SELECT user_id FROM group_members
		WHERE group_id = $1 AND user_status IN ($2, $3)
	`

	rows, err := r.db.Query(ctx, query, groupID,
		model.GroupUserStatusNormal, model.GroupUserStatusMuted)
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
