package model

import "time"

// 聊天类型[1:私聊，2:群聊]
const (
	ChatTypeFriend = 1
	ChatTypeGroup  = 2
)

// 好友状态
const (
	FriendStatusNormal = 1 // 正常好友
)

// 群成员状态
const (
	GroupUserStatusNormal = 1 // 正常成员
	GroupUserStatusMuted  = 2 // 禁言但仍是成员
)

// ChatLastRead 聊天最后查看时间（私聊+群聊）
// 每个 (user_id, chat_type, chat_id) 最多一行
type ChatLastRead struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	ChatType     int       `json:"chatType"`
	ChatID       int64     `json:"chatId"` // 私聊为 friendId，群聊为 groupId
	LastReadTime time.Time `json:"lastReadTime"`
	IsHidden     bool      `json:"isHidden"`
	CreateTime   time.Time `json:"createTime"`
	UpdateTime   time.Time `json:"updateTime"`
}

// ValidChatType 校验聊天类型取值
func ValidChatType(chatType int) bool {
	return chatType == ChatTypeFriend || chatType == ChatTypeGroup
}
