package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"forum-service/internal/models"
)

var (
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// UserRepository abstracts account persistence.
type UserRepository interface {
	CreateUser(ctx context.Context, username, password string) (models.User, error)
	VerifyUser(ctx context.Context, username, password string) (models.User, error)
	UserExists(ctx context.Context, username string) (bool, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser registers a new account with a freshly salted digest.
func (r *UserRepo) CreateUser(ctx context.Context, username, password string) (models.User, error) {
	salt, err := newSalt()
	if err != nil {
		return models.User{}, err
	}
	digest, err := hashPassword(password, salt)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{Username: username, PasswordHash: digest, PasswordSalt: salt, CreatedAt: now()}
	err = r.db.WithWrite(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE username=?)`), username); err != nil {
			return err
		}
		if exists {
			return ErrUserExists
		}
		return tx.QueryRowxContext(ctx,
			tx.Rebind(`INSERT INTO users (username, password_hash, password_salt, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
			user.Username, user.PasswordHash, user.PasswordSalt, user.CreatedAt).Scan(&user.ID)
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// VerifyUser returns the account when the password matches. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (r *UserRepo) VerifyUser(ctx context.Context, username, password string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		r.db.Rebind(`SELECT id, username, password_hash, password_salt, created_at FROM users WHERE username=?`), username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if !passwordMatches(password, user.PasswordSalt, user.PasswordHash) {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// UserExists reports whether the username is taken.
func (r *UserRepo) UserExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE username=?)`), username)
	return exists, err
}
