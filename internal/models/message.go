package models

import "time"

// Message is one immutable entry of a chat's log. Seq is assigned by the storage under a
// per-chat lock and breaks ties between equal timestamps.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    uint      `gorm:"not null;uniqueIndex:idx_messages_chat_seq,priority:1;index:idx_messages_chat_time,priority:1" json:"chat_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Body      string    `gorm:"column:message;type:text;not null" json:"body"`
	Datetime  time.Time `gorm:"not null;index:idx_messages_chat_time,priority:2" json:"timestamp"`
	Seq       uint64    `gorm:"not null;uniqueIndex:idx_messages_chat_seq,priority:2" json:"seq"`
	CreatedAt time.Time `json:"-"`
}

// MessageView is a history entry with its sender resolved.
type MessageView struct {
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Sender    UserView  `json:"sender"`
}

// Envelope is the result of a successful append: the stored message together with the chat
// and the resolved sender, so routing needs no further lookups.
type Envelope struct {
	Message Message
	Chat    Chat
	Sender  User
}
