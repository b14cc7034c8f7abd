// Package client provides a Go client for the Antler API.
//
// The client holds its identity in an explicit Session that can be
// loaded from, saved to, and cleared in a SessionStore. Every call
// takes a context; callers set per-call timeouts through it. Calls are
// never retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/antlerhq/antler/internal/model"
)

// Session is the client-side identity state. The server keeps no
// session state at all; clearing this is the whole of logout.
type Session struct {
	Token     string     `json:"token"`
	User      model.User `json:"user"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func (s Session) Valid() bool {
	return s.Token != "" && time.Now().Before(s.ExpiresAt)
}

// SessionStore persists a session between runs.
type SessionStore interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

var ErrNoSession = errors.New("no saved session")

// FileSessionStore keeps the session as a JSON file.
type FileSessionStore struct {
	Path string
}

// DefaultSessionStore stores the session under the user config dir.
func DefaultSessionStore() (*FileSessionStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return &FileSessionStore{Path: filepath.Join(dir, "antler", "session.json")}, nil
}

func (f *FileSessionStore) Load() (Session, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, ErrNoSession
		}
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (f *FileSessionStore) Save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, b, 0o600)
}

func (f *FileSessionStore) Clear() error {
	err := os.Remove(f.Path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Client is an Antler API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Session    Session
}

// New creates a new Antler client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type authResponse struct {
	Message   string     `json:"message"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      model.User `json:"user"`
	Error     string     `json:"error"`
}

// Register creates an account and adopts the returned session.
func (c *Client) Register(ctx context.Context, username, password, email, nickname string) (model.User, error) {
	reqBody := map[string]string{
		"username": username,
		"password": password,
		"email":    email,
	}
	if nickname != "" {
		reqBody["nickname"] = nickname
	}
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/register", reqBody)
	if err != nil {
		return model.User{}, err
	}
	defer resp.Body.Close()

	var result authResponse
	if err := decodeOrError(resp, http.StatusCreated, &result, "register"); err != nil {
		return model.User{}, err
	}
	c.adoptSession(result)
	return result.User, nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, usernameOrEmail, password string) (model.User, error) {
	reqBody := map[string]string{
		"username": usernameOrEmail,
		"password": password,
	}
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/login", reqBody)
	if err != nil {
		return model.User{}, err
	}
	defer resp.Body.Close()

	var result authResponse
	if err := decodeOrError(resp, http.StatusOK, &result, "login"); err != nil {
		return model.User{}, err
	}
	c.adoptSession(result)
	return result.User, nil
}

func (c *Client) adoptSession(result authResponse) {
	c.Session = Session{
		Token: result.Token,
		User:  result.User,
		// The server reports when the token expires so the CLI can
		// warn before a request fails. Its TTL is configurable; never
		// assume the default.
		ExpiresAt: result.ExpiresAt,
	}
}

// Logout clears the local session. The token itself stays valid on
// the server until it expires.
func (c *Client) Logout() {
	c.Session = Session{}
}

// CreatePost publishes a new post.
func (c *Client) CreatePost(ctx context.Context, title, content string) (model.Post, error) {
	reqBody := map[string]string{"title": title, "content": content}
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/posts", reqBody)
	if err != nil {
		return model.Post{}, err
	}
	defer resp.Body.Close()

	var result struct {
		Post  model.Post `json:"post"`
		Error string     `json:"error"`
	}
	if err := decodeOrError(resp, http.StatusCreated, &result, "create post"); err != nil {
		return model.Post{}, err
	}
	return result.Post, nil
}

// PostPage is one page of the post listing.
type PostPage struct {
	Posts      []model.Post     `json:"posts"`
	Pagination model.Pagination `json:"pagination"`
}

// ListPosts fetches one page of posts, newest first.
func (c *Client) ListPosts(ctx context.Context, page, limit int) (PostPage, error) {
	path := fmt.Sprintf("/api/posts?page=%d&limit=%d", page, limit)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return PostPage{}, err
	}
	defer resp.Body.Close()

	var result PostPage
	if err := decodeOrError(resp, http.StatusOK, &result, "list posts"); err != nil {
		return PostPage{}, err
	}
	return result, nil
}

// GetPost fetches a post with all its comments.
func (c *Client) GetPost(ctx context.Context, id int64) (model.Post, []model.Comment, error) {
	path := fmt.Sprintf("/api/posts/%d", id)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return model.Post{}, nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Post     model.Post      `json:"post"`
		Comments []model.Comment `json:"comments"`
		Error    string          `json:"error"`
	}
	if err := decodeOrError(resp, http.StatusOK, &result, "get post"); err != nil {
		return model.Post{}, nil, err
	}
	return result.Post, result.Comments, nil
}

// DeletePost deletes a post you own.
func (c *Client) DeletePost(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/posts/%d", id)
	resp, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete post failed (%d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// CreateComment comments on a post, optionally as a reply.
func (c *Client) CreateComment(ctx context.Context, postID int64, content string, replyToCommentID, replyToUserID *int64) (model.Comment, error) {
	reqBody := map[string]any{"content": content}
	if replyToCommentID != nil {
		reqBody["reply_to_comment_id"] = *replyToCommentID
	}
	if replyToUserID != nil {
		reqBody["reply_to_user_id"] = *replyToUserID
	}
	path := fmt.Sprintf("/api/posts/%d/comments", postID)
	resp, err := c.doRequest(ctx, http.MethodPost, path, reqBody)
	if err != nil {
		return model.Comment{}, err
	}
	defer resp.Body.Close()

	var result struct {
		Comment model.Comment `json:"comment"`
		Error   string        `json:"error"`
	}
	if err := decodeOrError(resp, http.StatusCreated, &result, "create comment"); err != nil {
		return model.Comment{}, err
	}
	return result.Comment, nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed (%d)", resp.StatusCode)
	}
	return nil
}

// doRequest performs one HTTP request, attaching the session token
// when present.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Session.Token)
	}
	return c.HTTPClient.Do(req)
}

func decodeOrError(resp *http.Response, wantStatus int, dest any, op string) error {
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s failed (%d): %s", op, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s failed (%d): %s", op, resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, dest)
}
