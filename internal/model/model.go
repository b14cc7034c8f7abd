package model

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Nickname     string    `json:"nickname"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Post struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Joined author identity and derived comment count.
	Username     string `json:"username"`
	Nickname     string `json:"nickname"`
	CommentCount int    `json:"comment_count"`
}

type Comment struct {
	ID               int64     `json:"id"`
	PostID           int64     `json:"post_id"`
	UserID           int64     `json:"user_id"`
	Content          string    `json:"content"`
	ReplyToCommentID *int64    `json:"reply_to_comment_id"`
	ReplyToUserID    *int64    `json:"reply_to_user_id"`
	CreatedAt        time.Time `json:"created_at"`

	// Joined author identity. Reply-target identity is nil when the
	// comment is not a reply; it is display metadata, not a tree link.
	Username        string  `json:"username"`
	Nickname        string  `json:"nickname"`
	ReplyToUsername *string `json:"reply_to_username"`
	ReplyToNickname *string `json:"reply_to_nickname"`
}

type Pagination struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	TotalPages  int `json:"total_pages"`
}

type SiteStats struct {
	Users    int `json:"users"`
	Posts    int `json:"posts"`
	Comments int `json:"comments"`
}
