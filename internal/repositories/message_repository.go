package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"forum-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for topic messages. Every mutating
// method returns the canonical record, aggregate included, read inside the
// committed write transaction.
type MessageRepository interface {
	CreateMessage(ctx context.Context, topicID int, parentID *int, userID int, body string) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListMessages(ctx context.Context, topicID int) ([]models.Message, error)
	SetReaction(ctx context.Context, messageID int, userID int, value int) (models.Message, error)
	UpdateMessage(ctx context.Context, messageID int, userID int, body string) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageSelect = `SELECT m.id, m.topic_id, m.parent_id, m.body, m.created_at, u.username,
        COALESCE(SUM(CASE WHEN r.value = 1 THEN 1 ELSE 0 END), 0) AS likes,
        COALESCE(SUM(CASE WHEN r.value = -1 THEN 1 ELSE 0 END), 0) AS dislikes
        FROM messages m
        JOIN users u ON u.id = m.user_id
        LEFT JOIN reactions r ON r.message_id = m.id`

const messageGroup = ` GROUP BY m.id, m.topic_id, m.parent_id, m.body, m.created_at, u.username`

// queryer is satisfied by both *DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func getMessage(ctx context.Context, q queryer, messageID int) (models.Message, error) {
	var msg models.Message
	err := sqlx.GetContext(ctx, q, &msg, q.Rebind(messageSelect+` WHERE m.id=?`+messageGroup), messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// CreateMessage appends a message to a topic. A parent that does not name a
// message of the same topic is dropped and the message is stored top-level.
func (r *MessageRepo) CreateMessage(ctx context.Context, topicID int, parentID *int, userID int, body string) (models.Message, error) {
	var msg models.Message
	err := r.db.WithWrite(ctx, func(tx *sqlx.Tx) error {
		if parentID != nil {
			var sameTopic bool
			if err := tx.GetContext(ctx, &sameTopic,
				tx.Rebind(`SELECT EXISTS(SELECT 1 FROM messages WHERE id=? AND topic_id=?)`), *parentID, topicID); err != nil {
				return err
			}
			if !sameTopic {
				parentID = nil
			}
		}

		var id int
		if err := tx.QueryRowxContext(ctx,
			tx.Rebind(`INSERT INTO messages (topic_id, parent_id, user_id, body, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`),
			topicID, parentID, userID, body, now()).Scan(&id); err != nil {
			return err
		}

		var err error
		msg, err = getMessage(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// GetMessage retrieves a single message with its aggregate.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	return getMessage(ctx, r.db, messageID)
}

// ListMessages returns a topic's messages in posting order.
func (r *MessageRepo) ListMessages(ctx context.Context, topicID int) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs,
		r.db.Rebind(messageSelect+` WHERE m.topic_id=?`+messageGroup+` ORDER BY m.created_at ASC, m.id ASC`), topicID)
	return msgs, err
}

// SetReaction upserts the user's reaction. Repeating the current value still
// succeeds and returns the (unchanged) record.
func (r *MessageRepo) SetReaction(ctx context.Context, messageID int, userID int, value int) (models.Message, error) {
	if !models.ValidReaction(value) {
		return models.Message{}, errors.New("reaction value must be 1 or -1")
	}
	var msg models.Message
	err := r.db.WithWrite(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO reactions (message_id, user_id, value, created_at) VALUES (?, ?, ?, ?)
            ON CONFLICT (message_id, user_id) DO UPDATE SET value = excluded.value, created_at = excluded.created_at`),
			messageID, userID, value, now()); err != nil {
			return err
		}
		var err error
		msg, err = getMessage(ctx, tx, messageID)
		return err
	})
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// UpdateMessage replaces the body of a message owned by userID. The author
// check is part of the UPDATE itself; zero affected rows yields
// ErrMessageNotFound whether the message is missing or owned by someone else.
func (r *MessageRepo) UpdateMessage(ctx context.Context, messageID int, userID int, body string) (models.Message, error) {
	var msg models.Message
	err := r.db.WithWrite(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE messages SET body=? WHERE id=? AND user_id=?`), body, messageID, userID)
		if err != nil {
			return err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrMessageNotFound
		}
		msg, err = getMessage(ctx, tx, messageID)
		return err
	})
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}
