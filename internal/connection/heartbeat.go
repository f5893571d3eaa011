package connection

import (
	"context"
	"log/slog"
	"time"
)

// IdleChecker 空闲连接检测器
// 只负责关闭超时连接；注销统一发生在会话协程的清理路径上，
// 保证每个连接恰好注销一次
type IdleChecker struct {
	manager       *Manager
	timeout       time.Duration
	checkInterval time.Duration
	logger        *slog.Logger
}

// NewIdleChecker 创建空闲检测器
func NewIdleChecker(manager *Manager, timeout, checkInterval time.Duration, logger *slog.Logger) *IdleChecker {
	// 设置默认值
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if checkInterval <= 0 {
		checkInterval = 30 * time.Second
	}

	return &IdleChecker{
		manager:       manager,
		timeout:       timeout,
		checkInterval: checkInterval,
		logger:        logger,
	}
}

// Start 启动空闲检测（阻塞，应在 goroutine 中调用）
func (h *IdleChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.checkInterval)
	defer ticker.Stop()

	h.logger.Info("Idle checker started",
		"timeout", h.timeout,
		"check_interval", h.checkInterval)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Idle checker stopped")
			return
		case <-ticker.C:
			h.checkConnections()
		}
	}
}

// checkConnections 关闭超过空闲时限的连接
func (h *IdleChecker) checkConnections() {
	conns := h.manager.AllSessions()
	now := time.Now()
	timeoutCount := 0

	for _, conn := range conns {
		if now.Sub(conn.LastActiveTime()) > h.timeout {
			timeoutCount++
			h.logger.Debug("Connection idle timeout",
				"conn_id", conn.ID(),
				"user_id", conn.UserID(),
				"last_active", conn.LastActiveTime())
			conn.Close()
		}
	}

	if timeoutCount > 0 {
		h.logger.Info("Idle check completed",
			"total", len(conns),
			"timeout", timeoutCount)
	}
}
