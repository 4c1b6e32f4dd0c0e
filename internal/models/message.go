package models

// Reaction values accepted by the store.
const (
	ReactionLike    = 1
	ReactionDislike = -1
)

// Message is the canonical message record sent to clients. Likes and Dislikes
// are computed from reaction rows on every read.
type Message struct {
	ID        int    `db:"id" json:"id"`
	TopicID   int    `db:"topic_id" json:"topic_id"`
	ParentID  *int   `db:"parent_id" json:"parent_id"`
	Body      string `db:"body" json:"body"`
	CreatedAt string `db:"created_at" json:"created_at"`
	Username  string `db:"username" json:"username"`
	Likes     int    `db:"likes" json:"likes"`
	Dislikes  int    `db:"dislikes" json:"dislikes"`
}

// Reaction is one user's vote on a message.
type Reaction struct {
	MessageID int    `db:"message_id" json:"message_id"`
	UserID    int    `db:"user_id" json:"user_id"`
	Value     int    `db:"value" json:"value"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

// ValidReaction reports whether v is one of the two accepted reaction values.
func ValidReaction(v int) bool {
	return v == ReactionLike || v == ReactionDislike
}
