package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Louaq/Awesome-poetize-open/internal/model"
)

const (
	// 并发首次插入撞唯一约束时的重试次数
	upsertMaxAttempts = 3
	upsertRetryDelay  = 10 * time.Millisecond

	uniqueViolationCode = "23505"
)

// ErrUpsertConflict 重试次数耗尽仍然冲突
var ErrUpsertConflict = errors.New("last read upsert conflict after retries")

// LastReadRepository 聊天最后查看时间仓库（私聊+群聊）
type LastReadRepository struct {
	db *pgxpool.Pool
}

// NewLastReadRepository 创建最后查看时间仓库
func NewLastReadRepository(db *pgxpool.Pool) *LastReadRepository {
	return &LastReadRepository{db: db}
}

// MarkRead 更新最后查看时间为当前时间，没有记录时插入
// 重复调用安全，以执行时刻的时间为准
func (r *LastReadRepository) MarkRead(ctx context.Context, userID int64, chatType int, chatID int64) error {
	update := `
		UPDATE chat_last_read
		SET last_read_time = NOW(), update_time = NOW()
		WHERE user_id = $1 AND chat_type = $2 AND chat_id = $3
	`
	insert := `
		INSERT INTO chat_last_read (user_id, chat_type, chat_id, last_read_time, is_hidden, create_time, update_time)
		VALUES ($1, $2, $3, NOW(), FALSE, NOW(), NOW())
	`
	return r.upsert(ctx, userID, chatType, chatID, update, insert)
}

// Hide 隐藏聊天，没有记录时插入一条已隐藏的记录
func (r *LastReadRepository) Hide(ctx context.Context, userID int64, chatType int, chatID int64) error {
	update := `
		UPDATE chat_last_read
		SET is_hidden = TRUE, update_time = NOW()
		WHERE user_id = $1 AND chat_type = $2 AND chat_id = $3
	`
	insert := `
		INSERT INTO chat_last_read (user_id, chat_type, chat_id, last_read_time, is_hidden, create_time, update_time)
		VALUES ($1, $2, $3, NOW(), TRUE, NOW(), NOW())
	`
	return r.upsert(ctx, userID, chatType, chatID, update, insert)
}

// Unhide 取消隐藏，不改动最后查看时间
// 没有记录等价于未隐藏，直接返回
func (r *LastReadRepository) Unhide(ctx context.Context, userID int64, chatType int, chatID int64) error {
	query := `
		UPDATE chat_last_read
		SET is_hidden = FALSE, update_time = NOW()
		WHERE user_id = $1 AND chat_type = $2 AND chat_id = $3
	`
	_, err := r.db.Exec(ctx, query, userID, chatType, chatID)
	return err
}

// Get 查询已读标记，没有记录时返回 nil
// 调用方把 nil 当作 last_read_time = 纪元、未隐藏处理
func (r *LastReadRepository) Get(ctx context.Context, userID int64, chatType int, chatID int64) (*model.ChatLastRead, error) {
	query := `
		SELECT id, user_id, chat_type, chat_id, last_read_time, is_hidden, create_time, update_time
		FROM chat_last_read
		WHERE user_id = $1 AND chat_type = $2 AND chat_id = $3
	`

	var lr model.ChatLastRead
	err := r.db.QueryRow(ctx, query, userID, chatType, chatID).Scan(
		&lr.ID,
		&lr.UserID,
		&lr.ChatType,
		&lr.ChatID,
		&lr.LastReadTime,
		&lr.IsHidden,
		&lr.CreateTime,
		&lr.UpdateTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &lr, nil
}

// upsert 先更新，更新不到再插入
// 两个初次 markRead 并发时插入会撞唯一约束，这是预期情况而不是错误，
// 捕获 23505 后退避重试，下一轮会走到更新分支
func (r *LastReadRepository) upsert(ctx context.Context, userID int64, chatType int, chatID int64, update, insert string) error {
	for attempt := 1; attempt <= upsertMaxAttempts; attempt++ {
		result, err := r.db.Exec(ctx, update, userID, chatType, chatID)
		if err != nil {
			return err
		}
		if result.RowsAffected() > 0 {
			return nil
		}

		_, err = r.db.Exec(ctx, insert, userID, chatType, chatID)
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * upsertRetryDelay):
		}
	}
	return ErrUpsertConflict
}
