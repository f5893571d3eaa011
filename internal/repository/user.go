package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Louaq/Awesome-poetize-open/internal/model"
)

// ErrUserNotFound 用户不存在
var ErrUserNotFound = errors.New("user not found")

// UserRepository 用户展示信息读取
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// GetProfile 查询用户名和头像
func (r *UserRepository) GetProfile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	query := `SELECT id, username, avatar FROM users WHERE id = $1`

	var p model.UserProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.ID, &p.Username, &p.Avatar)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &p, nil
}
