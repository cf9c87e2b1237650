package chat

import (
	"time"
)

// MaxEmojiLength bounds a reaction's emoji column.
const MaxEmojiLength = 191

// User is a registered chat participant.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:191;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Room is a named channel that scopes messages and live delivery.
type Room struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:191;not null" json:"name"`
}

// Message is a persisted chat line. It is removed with its room or author.
type Message struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    uint      `gorm:"not null;index"`
	UserID    uint      `gorm:"not null;index"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index"`

	Room *Room `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	User *User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// Reaction is an emoji attached to a message. Duplicates are allowed.
type Reaction struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	MessageID uint   `gorm:"not null;index" json:"message_id"`
	UserID    uint   `gorm:"not null;index" json:"user_id"`
	Emoji     string `gorm:"size:191;not null" json:"emoji"`

	Message *Message `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	User    *User    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// ReactionView is the public shape of a reaction inside a message.
type ReactionView struct {
	UserID uint   `json:"user_id"`
	Emoji  string `json:"emoji"`
}

// MessageView is a message joined with its author and reactions.
// It is both the HTTP response body and the broadcast payload.
type MessageView struct {
	ID        uint           `json:"id"`
	RoomID    uint           `json:"room_id"`
	UserID    uint           `json:"user_id"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	Username  string         `json:"username"`
	Reactions []ReactionView `json:"reactions"`
}

// Claims is the identity carried by a validated bearer token.
type Claims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	SessionID string `json:"session_id"`
}

// Token is an issued bearer credential.
type Token struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int64  `json:"expires_in"`
}
