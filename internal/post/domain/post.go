package domain

import "time"

type Post struct {
	ID        string
	AuthorID  string
	Content   string
	Hidden    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FeedPost is a public-feed row: a visible post joined with its author's
// username.
type FeedPost struct {
	ID             string
	AuthorUsername string
	Content        string
	CreatedAt      time.Time
}
