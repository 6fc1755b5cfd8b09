package models

import "time"

// InboundFrame is the only payload accepted on the chat socket.
type InboundFrame struct {
	ChatID         uint      `json:"chatId" validate:"required"`
	SenderUsername string    `json:"senderUsername" validate:"required,min=3,max=30"`
	Body           string    `json:"body" validate:"required,max=4096"`
	Timestamp      time.Time `json:"timestamp" validate:"required"`
}

// ErrorFrame is written back to the sender when a frame is rejected.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	ChatID  uint   `json:"chatId,omitempty"`
}

// NewErrorFrame builds an error frame.
func NewErrorFrame(code, message string, chatID uint) ErrorFrame {
	return ErrorFrame{Type: "error", Code: code, Message: message, ChatID: chatID}
}
