package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/madrasa/core/message"
)

type messageRepository struct {
	db *messageTable
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *DB) message.Repository {
	return &messageRepository{db: db.message}
}

func between(msg message.Message, a, b string) bool {
	return (msg.SenderID == a && msg.RecipientID == b) || (msg.SenderID == b && msg.RecipientID == a)
}

func (repo *messageRepository) ListBetween(_ context.Context, a, b string) ([]message.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	msgs := make([]message.Message, 0)
	for _, msg := range repo.db.table {
		if between(msg, a, b) {
			msgs = append(msgs, msg)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (repo *messageRepository) CreateMessage(_ context.Context, msg message.Message) (message.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table = append(repo.db.table, msg)
	return msg, nil
}

func (repo *messageRepository) MarkRead(_ context.Context, senderID, readerID string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for i := range repo.db.table {
		msg := &repo.db.table[i]
		if msg.SenderID == senderID && msg.RecipientID == readerID && !msg.IsRead {
			msg.IsRead = true
			n++
		}
	}
	return n, nil
}

func (repo *messageRepository) ListThreadStats(_ context.Context, userID string) ([]message.ThreadStat, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	byPeer := make(map[string]*message.ThreadStat)
	order := make([]string, 0)
	for _, msg := range repo.db.table {
		var peerID string
		switch userID {
		case msg.SenderID:
			peerID = msg.RecipientID
		case msg.RecipientID:
			peerID = msg.SenderID
		default:
			continue
		}
		st, ok := byPeer[peerID]
		if !ok {
			st = &message.ThreadStat{PeerID: peerID}
			byPeer[peerID] = st
			order = append(order, peerID)
		}
		if !msg.CreatedAt.Before(st.LastMessageAt) {
			st.LastContent = msg.Content
			st.LastMessageAt = msg.CreatedAt
		}
		if msg.SenderID == peerID && !msg.IsRead {
			st.UnreadCount++
		}
	}

	stats := make([]message.ThreadStat, 0, len(order))
	for _, peerID := range order {
		stats = append(stats, *byPeer[peerID])
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].LastMessageAt.After(stats[j].LastMessageAt) })
	return stats, nil
}
