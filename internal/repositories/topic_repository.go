package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"forum-service/internal/models"
)

var ErrTopicNotFound = errors.New("topic not found")

// TopicRepository abstracts topic persistence.
type TopicRepository interface {
	CreateTopic(ctx context.Context, title string, userID int) (models.Topic, error)
	GetTopic(ctx context.Context, topicID int) (models.Topic, error)
	ListTopics(ctx context.Context) ([]models.Topic, error)
}

// TopicRepo is a sqlx implementation of TopicRepository.
type TopicRepo struct {
	db *DB
}

// NewTopicRepo constructs a TopicRepo.
func NewTopicRepo(db *DB) *TopicRepo {
	return &TopicRepo{db: db}
}

const topicSelect = `SELECT t.id, t.title, t.created_by, t.created_at, u.username AS author
        FROM topics t JOIN users u ON u.id = t.created_by`

// CreateTopic stores a topic and returns it with its author's username.
func (r *TopicRepo) CreateTopic(ctx context.Context, title string, userID int) (models.Topic, error) {
	var topic models.Topic
	err := r.db.WithWrite(ctx, func(tx *sqlx.Tx) error {
		var id int
		if err := tx.QueryRowxContext(ctx,
			tx.Rebind(`INSERT INTO topics (title, created_by, created_at) VALUES (?, ?, ?) RETURNING id`),
			title, userID, now()).Scan(&id); err != nil {
			return err
		}
		return tx.GetContext(ctx, &topic, tx.Rebind(topicSelect+` WHERE t.id=?`), id)
	})
	if err != nil {
		return models.Topic{}, err
	}
	return topic, nil
}

// GetTopic fetches a single topic.
func (r *TopicRepo) GetTopic(ctx context.Context, topicID int) (models.Topic, error) {
	var topic models.Topic
	err := r.db.GetContext(ctx, &topic, r.db.Rebind(topicSelect+` WHERE t.id=?`), topicID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Topic{}, ErrTopicNotFound
	}
	return topic, err
}

// ListTopics returns every topic, newest first.
func (r *TopicRepo) ListTopics(ctx context.Context) ([]models.Topic, error) {
	topics := []models.Topic{}
	err := r.db.SelectContext(ctx, &topics, topicSelect+` ORDER BY t.created_at DESC, t.id DESC`)
	return topics, err
}
