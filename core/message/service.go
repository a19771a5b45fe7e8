package message

import (
	"context"
	"net/mail"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/chat"
	"github.com/trezcool/madrasa/core/contact"
)

var (
	ErrPeerNotFound = errors.New("peer not found")

	errSelfMessage = "cannot send a message to yourself"
)

type (
	Repository interface {
		// ListBetween returns every message exchanged by a and b, oldest first.
		ListBetween(ctx context.Context, a, b string) ([]Message, error)
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// MarkRead flags the messages of senderID to readerID as read and returns how many changed.
		MarkRead(ctx context.Context, senderID, readerID string) (int, error)
		ListThreadStats(ctx context.Context, userID string) ([]ThreadStat, error)
	}

	// Directory resolves contacts; contact.Service implements it.
	Directory interface {
		Get(ctx context.Context, id string) (contact.Contact, error)
	}

	Service struct {
		repo     Repository
		contacts Directory
		mailSvc  core.EmailService
		conf     *core.Config
		logger   core.Logger
		now      func() time.Time // mockable
	}
)

func NewService(repo Repository, contacts Directory, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Service {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Service{
		repo:     repo,
		contacts: contacts,
		mailSvc:  mailSvc,
		conf:     conf,
		logger:   logger,
		now:      time.Now,
	}
}

// History returns the thread of userID with peerID. Unknown peers have an empty thread.
func (svc *Service) History(ctx context.Context, userID, peerID string) ([]Message, error) {
	msgs, err := svc.repo.ListBetween(ctx, userID, core.CleanString(peerID))
	if err != nil {
		return nil, errors.Wrap(err, "listing messages")
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

// Send stores a message from senderID to req.PeerID, unread, and notifies the recipient by email when enabled.
// req must have been validated.
func (svc *Service) Send(ctx context.Context, senderID string, req Request) (Message, error) {
	if req.PeerID == senderID {
		return Message{}, core.NewFieldValidationError("peerId", errSelfMessage)
	}
	recipient, err := svc.contacts.Get(ctx, req.PeerID)
	if err != nil {
		if errors.Cause(err) == contact.ErrNotFound {
			return Message{}, ErrPeerNotFound
		}
		return Message{}, errors.Wrap(err, "getting recipient")
	}

	msg, err := svc.repo.CreateMessage(ctx, Message{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipient.ID,
		Content:     req.Content,
		CreatedAt:   svc.now().UTC(),
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}

	if svc.conf.NotifyByEmail && svc.mailSvc != nil {
		if to, ok := recipient.Address(); ok {
			svc.notify(ctx, senderID, to, msg)
		}
	}
	return msg, nil
}

func (svc *Service) notify(ctx context.Context, senderID string, to mail.Address, msg Message) {
	senderName := senderID
	if sender, err := svc.contacts.Get(ctx, senderID); err == nil {
		senderName = sender.Name
	} else {
		svc.logger.Warn("new message email: unknown sender", err, map[string]interface{}{"sender": senderID})
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      "New message from " + senderName,
		TemplateName: "new_message",
		TemplateData: NewMessageEmail{
			SenderID:   senderID,
			SenderName: senderName,
			Preview:    core.Truncate(msg.Content, previewLength),
		},
	})
}

// MarkRead flags every message of peerID to readerID as read.
func (svc *Service) MarkRead(ctx context.Context, readerID, peerID string) (int, error) {
	n, err := svc.repo.MarkRead(ctx, core.CleanString(peerID), readerID)
	return n, errors.Wrap(err, "marking messages read")
}

// Conversations returns the conversation summaries of userID, most recent first.
func (svc *Service) Conversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	stats, err := svc.repo.ListThreadStats(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing threads")
	}

	convs := make([]chat.Conversation, 0, len(stats))
	for _, st := range stats {
		peer := chat.Peer{ID: st.PeerID}
		c, err := svc.contacts.Get(ctx, st.PeerID)
		switch {
		case err == nil:
			peer = c.Peer()
		case errors.Cause(err) != contact.ErrNotFound:
			return nil, errors.Wrapf(err, "getting peer %q", st.PeerID)
		}
		convs = append(convs, chat.Conversation{
			ID:                 st.PeerID,
			Peer:               peer,
			LastMessagePreview: core.Truncate(st.LastContent, previewLength),
			LastActivityAt:     st.LastMessageAt,
			UnreadCount:        st.UnreadCount,
		})
	}
	sort.SliceStable(convs, func(i, j int) bool { return convs[i].LastActivityAt.After(convs[j].LastActivityAt) })
	return convs, nil
}
