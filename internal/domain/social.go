package domain

import (
	"time"
)

const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
	FriendshipDeclined = "declined"
)

// Friendship is a request from UserID to FriendID. Once accepted it is
// symmetric: either side lists the other as a friend.
type Friendship struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `gorm:"uniqueIndex:idx_friendship_pair;not null;index" json:"user_id"`
	FriendID  uint64    `gorm:"uniqueIndex:idx_friendship_pair;not null;index" json:"friend_id"`
	Status    string    `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	Friend    User      `gorm:"foreignKey:FriendID" json:"-"`
}

// Other returns the side of the friendship that is not userID.
func (f *Friendship) Other(userID uint64) *User {
	if f.UserID == userID {
		return &f.Friend
	}
	return &f.User
}

const (
	AgentRoleUser      = "user"
	AgentRoleAssistant = "assistant"
)

// AgentChat is one conversation with the reading assistant.
type AgentChat struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AgentMessage struct {
	ID        uint64    `json:"id"`
	ChatID    uint64    `gorm:"index;not null" json:"chat_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
