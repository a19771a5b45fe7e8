package message

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/madrasa/core"
)

// Actions of a Request
const (
	ActionSend     = "SEND"
	ActionMarkRead = "MARK_READ"
)

const (
	MaxContentLength = 4000
	previewLength    = 80
)

type Message struct {
	ID          string    `json:"id" db:"id"`
	SenderID    string    `json:"senderId" db:"sender_id"`
	RecipientID string    `json:"-" db:"recipient_id"`
	Content     string    `json:"content" db:"content"`
	IsRead      bool      `json:"isRead" db:"is_read"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"` // UTC
}

// Request is the body of POST /messages.
type Request struct {
	Action  string `json:"action" validate:"required,oneof=SEND MARK_READ"`
	PeerID  string `json:"peerId" validate:"required,nonblank"`
	Content string `json:"content" validate:"required_if=Action SEND,max=4000"`
}

func (r *Request) Validate(validate *validator.Validate) error {
	r.Action = strings.ToUpper(core.CleanString(r.Action))
	r.PeerID = core.CleanString(r.PeerID)
	r.Content = core.CleanString(r.Content)
	return validate.Struct(r)
}

// ThreadStat summarizes the thread between a user and one of their peers.
type ThreadStat struct {
	PeerID        string    `db:"peer_id"`
	LastContent   string    `db:"last_content"`
	LastMessageAt time.Time `db:"last_message_at"`
	UnreadCount   int       `db:"unread_count"` // messages from the peer not read by the user
}

// NewMessageEmail is the data of the "new_message" email template.
type NewMessageEmail struct {
	SenderID   string
	SenderName string
	Preview    string
}
