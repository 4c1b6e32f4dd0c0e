package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"forum-service/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository resolves bearer tokens to users.
type SessionRepository interface {
	CreateSession(ctx context.Context, userID int) (string, error)
	GetUserBySession(ctx context.Context, token string) (models.User, error)
	DeleteSession(ctx context.Context, token string) error
}

// SessionRepo is a sqlx implementation of SessionRepository.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo constructs a SessionRepo.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// CreateSession issues a new token for the user.
func (r *SessionRepo) CreateSession(ctx context.Context, userID int) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	ts := now()
	err = r.db.WithWrite(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO sessions (token, user_id, created_at, last_seen) VALUES (?, ?, ?, ?)`),
			token, userID, ts, ts)
		return err
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// GetUserBySession resolves the token and refreshes its last_seen. A token
// whose user no longer exists resolves to ErrSessionNotFound.
func (r *SessionRepo) GetUserBySession(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, ErrSessionNotFound
	}
	var user models.User
	err := r.db.WithWrite(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &user,
			tx.Rebind(`SELECT u.id, u.username, u.created_at FROM sessions s JOIN users u ON u.id = s.user_id WHERE s.token=?`), token)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE sessions SET last_seen=? WHERE token=?`), now(), token)
		return err
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// DeleteSession removes the token. Deleting an unknown token is not an error.
func (r *SessionRepo) DeleteSession(ctx context.Context, token string) error {
	return r.db.WithWrite(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM sessions WHERE token=?`), token)
		return err
	})
}
