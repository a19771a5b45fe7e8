package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/message"
)

const messageColumns = `id, sender_id, recipient_id, content, is_read, created_at`

type messageRepository struct {
	exec core.DBExecutor
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(exec core.DBExecutor) message.Repository {
	return &messageRepository{exec: exec}
}

func (repo messageRepository) ListBetween(ctx context.Context, a, b string) ([]message.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at ASC, id ASC`

	msgs := make([]message.Message, 0)
	if err := repo.exec.SelectContext(ctx, &msgs, q, a, b); err != nil {
		return nil, errors.Wrap(err, "selecting messages")
	}
	return msgs, nil
}

func (repo messageRepository) CreateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	msg.CreatedAt = msg.CreatedAt.UTC()
	q := `INSERT INTO messages (` + messageColumns + `)
		VALUES (:id, :sender_id, :recipient_id, :content, :is_read, :created_at)`
	if _, err := repo.exec.NamedExecContext(ctx, q, msg); err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo messageRepository) MarkRead(ctx context.Context, senderID, readerID string) (int, error) {
	q := `UPDATE messages SET is_read = TRUE WHERE sender_id = $1 AND recipient_id = $2 AND NOT is_read`
	res, err := repo.exec.ExecContext(ctx, q, senderID, readerID)
	if err != nil {
		return 0, errors.Wrap(err, "updating messages")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting updated messages")
	}
	return int(n), nil
}

func (repo messageRepository) ListThreadStats(ctx context.Context, userID string) ([]message.ThreadStat, error) {
	q := `WITH thread AS (
			SELECT CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END AS peer_id,
				sender_id, content, is_read, created_at, id
			FROM messages
			WHERE sender_id = $1 OR recipient_id = $1
		),
		unread AS (
			SELECT peer_id, COUNT(*) AS unread_count
			FROM thread
			WHERE sender_id = peer_id AND NOT is_read
			GROUP BY peer_id
		),
		last AS (
			SELECT DISTINCT ON (peer_id) peer_id, content, created_at
			FROM thread
			ORDER BY peer_id, created_at DESC, id DESC
		)
		SELECT last.peer_id,
			last.content AS last_content,
			last.created_at AS last_message_at,
			COALESCE(unread.unread_count, 0) AS unread_count
		FROM last LEFT JOIN unread ON unread.peer_id = last.peer_id
		ORDER BY last.created_at DESC`

	stats := make([]message.ThreadStat, 0)
	if err := repo.exec.SelectContext(ctx, &stats, q, userID); err != nil {
		return nil, errors.Wrap(err, "selecting thread stats")
	}
	return stats, nil
}
