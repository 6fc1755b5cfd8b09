package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is a registered account. Username is immutable once created.
// Password holds the bcrypt hash and is never serialized.
type User struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	Username  string  `gorm:"type:varchar(30);uniqueIndex;not null" json:"username"`
	Password  string  `gorm:"type:varchar(128);not null" json:"-"`
	FirstName *string `gorm:"type:varchar(50)" json:"first_name,omitempty"`
	LastName  *string `gorm:"type:varchar(50)" json:"last_name,omitempty"`

	// Telegram is the external handle the user told us about; TelegramChatID is filled in
	// only after the user runs /start in the bot.
	Telegram       *string `gorm:"type:varchar(64);index" json:"-"`
	TelegramChatID *int64  `json:"-"`
	Notice         bool    `gorm:"not null;default:false" json:"-"`

	CreatedAt time.Time `json:"-"`
}

// UserView is the outward projection of a User.
type UserView struct {
	ID        uint    `json:"id"`
	Username  string  `json:"username"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// BeforeCreate normalizes the Telegram handle so linking can match on it.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	u.Telegram = NormalizeHandle(u.Telegram)
	return
}

// View projects the user for API responses.
func (u User) View() UserView {
	return UserView{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// DisplayName is "First Last" when both names are set, otherwise the username.
func (u User) DisplayName() string {
	if u.FirstName != nil && u.LastName != nil && *u.FirstName != "" && *u.LastName != "" {
		return *u.FirstName + " " + *u.LastName
	}
	return u.Username
}

// CanBeNotified reports whether a push may be sent to the user.
func (u User) CanBeNotified() bool {
	return u.Notice && u.TelegramChatID != nil
}

// NormalizeHandle strips a leading "@" and lowercases the handle. Telegram usernames are
// case-insensitive. Empty handles become nil.
func NormalizeHandle(handle *string) *string {
	if handle == nil {
		return nil
	}
	h := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(*handle), "@"))
	if h == "" {
		return nil
	}
	return &h
}
