package models

// User is a registered account.
type User struct {
	ID           int    `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
	PasswordSalt string `db:"password_salt" json:"-"`
	CreatedAt    string `db:"created_at" json:"created_at,omitempty"`
}

// Session maps an opaque bearer token to a user.
type Session struct {
	Token     string `db:"token" json:"-"`
	UserID    int    `db:"user_id" json:"user_id"`
	CreatedAt string `db:"created_at" json:"created_at"`
	LastSeen  string `db:"last_seen" json:"last_seen"`
}
