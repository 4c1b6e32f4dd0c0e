package models

// Topic is a named discussion scope. Every topic has its own broadcast room.
type Topic struct {
	ID        int    `db:"id" json:"id"`
	Title     string `db:"title" json:"title"`
	CreatedBy int    `db:"created_by" json:"-"`
	Author    string `db:"author" json:"author"`
	CreatedAt string `db:"created_at" json:"created_at"`
}
