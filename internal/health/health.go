package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	natsclient "github.com/Louaq/Awesome-poetize-open/internal/nats"
)

// Status 健康状态
type Status struct {
	Service     string `json:"service"`
	Database    string `json:"database"`
	Redis       string `json:"redis"`
	NATS        string `json:"nats"`
	Connections int    `json:"connections"`
}

// ConnectionCounter 连接计数器接口
type ConnectionCounter interface {
	ConnCount() int
}

// Checker 健康检查器
// NATS 是可选组件，未启用时报告 not configured 且不影响健康判定
type Checker struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
	natsClient  *natsclient.Client
	connCounter ConnectionCounter
}

// NewChecker 创建健康检查器
func NewChecker(db *pgxpool.Pool, redisClient *redis.Client, natsClient *natsclient.Client, connCounter ConnectionCounter) *Checker {
	return &Checker{
		db:          db,
		redisClient: redisClient,
		natsClient:  natsClient,
		connCounter: connCounter,
	}
}

// Check 执行健康检查
func (h *Checker) Check(ctx context.Context) *Status {
	status := &Status{
		Service: "poetize-im",
	}

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if h.db != nil && h.db.Ping(checkCtx) == nil {
		status.Database = "connected"
	} else {
		status.Database = "disconnected"
	}

	if h.redisClient != nil {
		if err := h.redisClient.Ping(checkCtx).Err(); err == nil {
			status.Redis = "connected"
		} else {
			status.Redis = "disconnected"
		}
	} else {
		status.Redis = "not configured"
	}

	if h.natsClient == nil {
		status.NATS = "not configured"
	} else if h.natsClient.IsConnected() {
		status.NATS = "connected"
	} else {
		status.NATS = "disconnected"
	}

	if h.connCounter != nil {
		status.Connections = h.connCounter.ConnCount()
	}

	return status
}

// IsHealthy 消息必须能落库，数据库不可用即不健康
// Redis 和 NATS 故障都有降级路径，不算不健康
func (h *Checker) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Database == "connected"
}

// HTTPStatus 健康检查对应的 HTTP 状态码
func (h *Checker) HTTPStatus(ctx context.Context) int {
	if h.IsHealthy(ctx) {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}
