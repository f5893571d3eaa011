package model

import "time"

// DirectMessage 私聊消息（持久化后不可变）
type DirectMessage struct {
	ID         int64     `json:"id"`
	FromID     int64     `json:"fromId"`
	ToID       int64     `json:"toId"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"createTime"`
}

// GroupMessage 群聊消息（持久化后不可变）
type GroupMessage struct {
	ID         int64     `json:"id"`
	GroupID    int64     `json:"groupId"`
	FromID     int64     `json:"fromId"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"createTime"`
}
