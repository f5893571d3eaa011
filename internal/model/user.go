package model

// UserProfile 用户展示信息
// 推送消息时冗余到帧里，避免客户端再查一次
type UserProfile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}
