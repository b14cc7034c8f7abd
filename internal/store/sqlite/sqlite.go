package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antlerhq/antler/internal/model"
	"github.com/antlerhq/antler/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open opens the database and applies pending migrations. maxConns
// bounds the connection pool; acquisition beyond the bound queues
// without a timeout.
func Open(path string, maxConns int) (*Store, error) {
	// Foreign keys default to off in SQLite and are per-connection
	// state, so they must go through the DSN to cover every connection
	// database/sql opens, not a one-off PRAGMA exec.
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&_pragma=foreign_keys(1)"
	} else {
		dsn += "?_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	// Migration 1: Initial schema
	`
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	nickname TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);

CREATE TABLE IF NOT EXISTS comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	content TEXT NOT NULL,
	reply_to_comment_id INTEGER,
	reply_to_user_id INTEGER,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(post_id) REFERENCES posts(id) ON DELETE CASCADE,
	FOREIGN KEY(user_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
`,
	// Future migrations go here:
	// Migration 2: `ALTER TABLE ...`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO users (username, email, nickname, password_hash, created_at)
VALUES (?, ?, ?, ?, ?)
`, user.Username, user.Email, user.Nickname, user.PasswordHash, user.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err, "users.username") {
			return 0, store.ErrDuplicateUsername
		}
		if isUniqueViolation(err, "users.email") {
			return 0, store.ErrDuplicateEmail
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, username, email, nickname, password_hash, created_at
FROM users
WHERE id = ?
`, id)
	return scanUser(row)
}

func (s *Store) FindUserByLogin(ctx context.Context, usernameOrEmail string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, username, email, nickname, password_hash, created_at
FROM users
WHERE username = ? OR email = ?
LIMIT 1
`, usernameOrEmail, usernameOrEmail)
	return scanUser(row)
}

func (s *Store) CreatePost(ctx context.Context, post *model.Post) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO posts (user_id, title, content, created_at)
VALUES (?, ?, ?, ?)
`, post.UserID, post.Title, post.Content, post.CreatedAt.Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetPost(ctx context.Context, id int64) (model.Post, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT p.id, p.user_id, p.title, p.content, p.created_at, u.username, u.nickname,
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count
FROM posts p
JOIN users u ON u.id = p.user_id
WHERE p.id = ?
LIMIT 1
`, id)
	return scanPost(row)
}

// ListPosts returns one page of posts, newest first, plus the total
// post count. Page and per-page values outside their valid range fall
// back to the defaults (1, 10).
func (s *Store) ListPosts(ctx context.Context, opts store.PostListOpts) ([]model.Post, int, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	offset := (page - 1) * perPage

	rows, err := s.db.QueryContext(ctx, `
SELECT p.id, p.user_id, p.title, p.content, p.created_at, u.username, u.nickname,
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count
FROM posts p
JOIN users u ON u.id = p.user_id
ORDER BY p.created_at DESC, p.id DESC
LIMIT ? OFFSET ?
`, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (s *Store) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateComment(ctx context.Context, comment *model.Comment) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO comments (post_id, user_id, content, reply_to_comment_id, reply_to_user_id, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, comment.PostID, comment.UserID, comment.Content,
		nullableInt(comment.ReplyToCommentID), nullableInt(comment.ReplyToUserID), comment.CreatedAt.Unix())
	if err != nil {
		// Backstop for the handler's existence check losing a race
		// with a concurrent post delete.
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetComment(ctx context.Context, id int64) (model.Comment, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT c.id, c.post_id, c.user_id, c.content, c.reply_to_comment_id, c.reply_to_user_id, c.created_at,
	u.username, u.nickname, ru.username, ru.nickname
FROM comments c
JOIN users u ON u.id = c.user_id
LEFT JOIN users ru ON ru.id = c.reply_to_user_id
WHERE c.id = ?
LIMIT 1
`, id)
	return scanComment(row)
}

func (s *Store) ListCommentsByPost(ctx context.Context, postID int64) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.id, c.post_id, c.user_id, c.content, c.reply_to_comment_id, c.reply_to_user_id, c.created_at,
	u.username, u.nickname, ru.username, ru.nickname
FROM comments c
JOIN users u ON u.id = c.user_id
LEFT JOIN users ru ON ru.id = c.reply_to_user_id
WHERE c.post_id = ?
ORDER BY c.created_at ASC, c.id ASC
`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *Store) GetSiteStats(ctx context.Context) (model.SiteStats, error) {
	var stats model.SiteStats
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`)
	if err := row.Scan(&stats.Users); err != nil {
		return stats, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`)
	if err := row.Scan(&stats.Posts); err != nil {
		return stats, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`)
	if err := row.Scan(&stats.Comments); err != nil {
		return stats, err
	}
	return stats, nil
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (model.User, error) {
	var u model.User
	var created int64
	if err := scanner.Scan(&u.ID, &u.Username, &u.Email, &u.Nickname, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, err
	}
	u.CreatedAt = time.Unix(created, 0)
	return u, nil
}

func scanPost(scanner interface{ Scan(dest ...any) error }) (model.Post, error) {
	var p model.Post
	var created int64
	if err := scanner.Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &created, &p.Username, &p.Nickname, &p.CommentCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Post{}, store.ErrNotFound
		}
		return model.Post{}, err
	}
	p.CreatedAt = time.Unix(created, 0)
	return p, nil
}

func scanComment(scanner interface{ Scan(dest ...any) error }) (model.Comment, error) {
	var c model.Comment
	var created int64
	var replyToComment sql.NullInt64
	var replyToUser sql.NullInt64
	var replyToUsername sql.NullString
	var replyToNickname sql.NullString
	if err := scanner.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &replyToComment, &replyToUser, &created,
		&c.Username, &c.Nickname, &replyToUsername, &replyToNickname); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Comment{}, store.ErrNotFound
		}
		return model.Comment{}, err
	}
	if replyToComment.Valid {
		id := replyToComment.Int64
		c.ReplyToCommentID = &id
	}
	if replyToUser.Valid {
		id := replyToUser.Int64
		c.ReplyToUserID = &id
	}
	if replyToUsername.Valid {
		name := replyToUsername.String
		c.ReplyToUsername = &name
	}
	if replyToNickname.Valid {
		nick := replyToNickname.String
		c.ReplyToNickname = &nick
	}
	c.CreatedAt = time.Unix(created, 0)
	return c, nil
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func isUniqueViolation(err error, col string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, col)
}
