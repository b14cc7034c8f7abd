package store

import (
	"context"
	"errors"

	"github.com/antlerhq/antler/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrDuplicateEmail    = errors.New("duplicate email")
)

type PostListOpts struct {
	Page    int
	PerPage int
}

type Store interface {
	UserStore
	PostStore
	CommentStore
	GetSiteStats(ctx context.Context) (model.SiteStats, error)
	Close() error
}

type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) (int64, error)
	GetUser(ctx context.Context, id int64) (model.User, error)
	// FindUserByLogin matches by username OR email.
	FindUserByLogin(ctx context.Context, usernameOrEmail string) (model.User, error)
}

type PostStore interface {
	CreatePost(ctx context.Context, post *model.Post) (int64, error)
	GetPost(ctx context.Context, id int64) (model.Post, error)
	ListPosts(ctx context.Context, opts PostListOpts) ([]model.Post, int, error)
	// DeletePost removes the post; comments go with it via the
	// storage-level cascade.
	DeletePost(ctx context.Context, id int64) error
}

type CommentStore interface {
	CreateComment(ctx context.Context, comment *model.Comment) (int64, error)
	GetComment(ctx context.Context, id int64) (model.Comment, error)
	// ListCommentsByPost returns all comments for a post in ascending
	// creation-time order, with author and reply-target identity joined.
	ListCommentsByPost(ctx context.Context, postID int64) ([]model.Comment, error)
}
