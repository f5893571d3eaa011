package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Louaq/Awesome-poetize-open/internal/model"
)

const (
	userProfileKeyPrefix = "im:user:profile:"
	userProfileTTL       = 10 * time.Minute
)

// UserCacheService 用户展示信息缓存
// 推送每条消息都要带发送者昵称和头像，用 Redis 挡住数据库
type UserCacheService struct {
	redisClient *redis.Client
	users       ProfileSource
	logger      *slog.Logger
}

// NewUserCacheService 创建用户缓存服务
func NewUserCacheService(redisClient *redis.Client, users ProfileSource) *UserCacheService {
	return &UserCacheService{
		redisClient: redisClient,
		users:       users,
		logger:      slog.Default(),
	}
}

// GetProfile 查询用户展示信息，优先走缓存
func (s *UserCacheService) GetProfile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	key := userProfileKeyPrefix + strconv.FormatInt(userID, 10)

	data, err := s.redisClient.HGetAll(ctx, key).Result()
	if err == nil && len(data) > 0 {
		return &model.UserProfile{
			ID:       userID,
			Username: data["username"],
			Avatar:   data["avatar"],
		}, nil
	}
	if err != nil {
		// 缓存故障退化为直查数据库
		s.logger.Warn("Profile cache read failed", "user_id", userID, "error", err)
	}

	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	pipe := s.redisClient.Pipeline()
	pipe.HSet(ctx, key, "username", profile.Username, "avatar", profile.Avatar)
	pipe.Expire(ctx, key, userProfileTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("Profile cache write failed", "user_id", userID, "error", err)
	}

	return profile, nil
}
