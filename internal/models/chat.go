package models

import (
	"time"

	"github.com/lib/pq"
)

// Chat is a permanent conversation between exactly two users. Members is stored sorted
// ascending so the unique index on the array enforces one chat per unordered pair.
type Chat struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Members   pq.Int64Array `gorm:"type:bigint[];not null;uniqueIndex;check:chk_chats_pair,cardinality(members) = 2 AND members[1] < members[2]" json:"members"`
	CreatedAt time.Time     `json:"created_at"`
}

// ChatView is a chat as seen by one of its members.
type ChatView struct {
	ChatID      uint     `json:"chat_id"`
	OtherMember UserView `json:"other_member"`
}

// NewChat builds a chat for the pair in canonical order.
func NewChat(a, b uint) *Chat {
	if a > b {
		a, b = b, a
	}
	return &Chat{Members: pq.Int64Array{int64(a), int64(b)}}
}

// HasMember reports whether userID is one of the two members.
func (c Chat) HasMember(userID uint) bool {
	for _, m := range c.Members {
		if m == int64(userID) {
			return true
		}
	}
	return false
}

// Other returns the member that is not userID. ok is false when userID is not a member.
func (c Chat) Other(userID uint) (other uint, ok bool) {
	if len(c.Members) != 2 || !c.HasMember(userID) {
		return 0, false
	}
	if c.Members[0] == int64(userID) {
		return uint(c.Members[1]), true
	}
	return uint(c.Members[0]), true
}
