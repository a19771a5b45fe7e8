package chat

import (
	"time"

	"github.com/trezcool/madrasa/core"
)

// Peer is the other participant of a conversation.
type Peer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      core.Role `json:"role"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
}

// Contact is directory data used to seed a new Conversation.
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      core.Role `json:"role"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
}

func (c Contact) Peer() Peer {
	return Peer{ID: c.ID, Name: c.Name, Role: c.Role, AvatarURL: c.AvatarURL}
}

// Conversation summarizes the thread with one peer. Its ID is the peer ID.
type Conversation struct {
	ID                 string    `json:"id"`
	Peer               Peer      `json:"peer"`
	LastMessagePreview string    `json:"lastMessagePreview"`
	LastActivityAt     time.Time `json:"lastActivityAt"`
	UnreadCount        int       `json:"unreadCount"`
}

// ChatMessage is one message of a thread.
// Pending is set on optimistic messages until the store confirms them.
type ChatMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	IsRead    bool      `json:"isRead"`
	Pending   bool      `json:"-"`
}

// DayGroup is a run of consecutive messages sent on the same calendar day.
type DayGroup struct {
	Date     time.Time
	Label    string
	Messages []ChatMessage
}
