package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/contact"
	"github.com/trezcool/madrasa/core/message"
)

func CreateContact(t *testing.T, repo contact.Repository, id, name string, role core.Role, email ...string) contact.Contact {
	t.Helper()
	now := time.Now().UTC()
	c := contact.Contact{
		ID:        id,
		Name:      name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(email) > 0 {
		c.Email = null.StringFrom(email[0])
	}
	c, err := repo.UpsertContact(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateContact() failed: %v", err)
	}
	return c
}

func CreateMessage(
	t *testing.T,
	repo message.Repository,
	from, to, content string,
	createdAt time.Time,
	isRead bool,
) message.Message {
	t.Helper()
	msg, err := repo.CreateMessage(context.Background(), message.Message{
		ID:          uuid.NewString(),
		SenderID:    from,
		RecipientID: to,
		Content:     content,
		IsRead:      isRead,
		CreatedAt:   createdAt.UTC(),
	})
	if err != nil {
		t.Fatalf("CreateMessage() failed: %v", err)
	}
	return msg
}
