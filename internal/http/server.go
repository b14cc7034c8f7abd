package httpapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/antlerhq/antler/internal/auth"
	"github.com/antlerhq/antler/internal/config"
	"github.com/antlerhq/antler/internal/model"
	"github.com/antlerhq/antler/internal/store"

	_ "github.com/antlerhq/antler/docs" // swagger docs

	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

type Server struct {
	store store.Store
	auth  *auth.Service
	cfg   config.Config
}

func NewServer(store store.Store, authSvc *auth.Service, cfg config.Config) *Server {
	return &Server{store: store, auth: authSvc, cfg: cfg}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/swagger/") {
		httpSwagger.WrapHandler.ServeHTTP(w, r)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		s.handleAPI(w, r)
		return
	}
	notFound(w)
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	segments := splitPath(path)

	switch {
	case len(segments) == 1 && segments[0] == "register":
		if r.Method == http.MethodPost {
			s.handleRegister(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "login":
		if r.Method == http.MethodPost {
			s.handleLogin(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "posts":
		if r.Method == http.MethodGet {
			s.handleListPosts(w, r)
			return
		}
		if r.Method == http.MethodPost {
			s.handleCreatePost(w, r)
			return
		}
	case len(segments) == 2 && segments[0] == "posts":
		if r.Method == http.MethodGet {
			s.handleGetPost(w, r, segments[1])
			return
		}
		if r.Method == http.MethodDelete {
			s.handleDeletePost(w, r, segments[1])
			return
		}
	case len(segments) == 3 && segments[0] == "posts" && segments[2] == "comments":
		if r.Method == http.MethodPost {
			s.handleCreateComment(w, r, segments[1])
			return
		}
	case len(segments) == 1 && segments[0] == "health":
		if r.Method == http.MethodGet {
			s.handleHealth(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "stats":
		if r.Method == http.MethodGet {
			s.handleGetStats(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "openapi.json":
		if r.Method == http.MethodGet {
			s.serveOpenAPIJSON(w, r)
			return
		}
	}

	notFound(w)
}

// handleRegister godoc
//
//	@Summary		Register a user
//	@Description	Create a new account. Username and email must be unique. Returns a session token alongside the created user.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			user	body		object{username=string,password=string,email=string,nickname=string}	true	"Registration data (nickname optional)"
//	@Success		201		{object}	map[string]interface{}	"Token and user"
//	@Failure		400		{object}	map[string]string		"Validation error or duplicate username/email"
//	@Router			/api/register [post]
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
		Nickname string `json:"nickname"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Nickname = strings.TrimSpace(req.Nickname)

	// Fail fast on the first violated field.
	if n := utf8.RuneCountInString(req.Username); n < 3 || n > 20 {
		writeError(w, http.StatusBadRequest, errors.New("username must be 3-20 characters"))
		return
	}
	if len(req.Password) < 6 || len(req.Password) > 72 {
		writeError(w, http.StatusBadRequest, errors.New("password must be 6-72 characters"))
		return
	}
	if !emailRe.MatchString(req.Email) {
		writeError(w, http.StatusBadRequest, errors.New("email must be a valid address"))
		return
	}

	user, err := s.auth.Register(r.Context(), req.Username, req.Email, req.Nickname, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) || errors.Is(err, auth.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, errors.New("username or email already exists"))
			return
		}
		internalError(w, err)
		return
	}

	token, expiresAt, err := s.auth.IssueToken(user.ID, user.Username)
	if err != nil {
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "registered",
		"token":      token,
		"expires_at": expiresAt.UTC(),
		"user":       user,
	})
}

// handleLogin godoc
//
//	@Summary		Log in
//	@Description	Exchange username (or email) and password for a session token. The token is valid for 7 days; there is no server-side revocation.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			credentials	body		object{username=string,password=string}	true	"Login credentials"
//	@Success		200			{object}	map[string]interface{}	"Token and user"
//	@Failure		400			{object}	map[string]string		"Bad credentials"
//	@Router			/api/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		writeError(w, http.StatusBadRequest, errors.New("username is required"))
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, errors.New("password is required"))
		return
	}

	user, err := s.auth.Login(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		internalError(w, err)
		return
	}

	token, expiresAt, err := s.auth.IssueToken(user.ID, user.Username)
	if err != nil {
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "logged in",
		"token":      token,
		"expires_at": expiresAt.UTC(),
		"user":       user,
	})
}

// handleListPosts godoc
//
//	@Summary		List posts
//	@Description	Get one page of posts, newest first, each with author identity and comment count.
//	@Tags			Posts
//	@Produce		json
//	@Param			page	query		int	false	"Page number"		default(1)
//	@Param			limit	query		int	false	"Posts per page"	default(10)	maximum(100)
//	@Success		200		{object}	map[string]interface{}	"Posts and pagination"
//	@Router			/api/posts [get]
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	page := parseIntDefault(r.URL.Query().Get("page"), 1)
	limit := parseIntDefault(r.URL.Query().Get("limit"), 10)

	posts, total, err := s.store.ListPosts(r.Context(), store.PostListOpts{Page: page, PerPage: limit})
	if err != nil {
		internalError(w, err)
		return
	}
	if posts == nil {
		posts = []model.Post{}
	}
	if page < 1 {
		page = 1
	}
	perPage := limit
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"posts": posts,
		"pagination": model.Pagination{
			CurrentPage: page,
			PerPage:     perPage,
			Total:       total,
			TotalPages:  (total + perPage - 1) / perPage,
		},
	})
}

// handleCreatePost godoc
//
//	@Summary		Publish a post
//	@Description	Create a new post. Requires authentication. Posts are immutable once created.
//	@Tags			Posts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			post	body		object{title=string,content=string}	true	"Post data"
//	@Success		201		{object}	map[string]interface{}	"Created post"
//	@Failure		400		{object}	map[string]string		"Validation error"
//	@Failure		401		{object}	map[string]string		"Authentication required"
//	@Router			/api/posts [post]
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if n := utf8.RuneCountInString(req.Title); n < 1 || n > 200 {
		writeError(w, http.StatusBadRequest, errors.New("title must be 1-200 characters"))
		return
	}
	if n := utf8.RuneCountInString(req.Content); n < 1 || n > 10000 {
		writeError(w, http.StatusBadRequest, errors.New("content must be 1-10000 characters"))
		return
	}

	post := model.Post{
		UserID:    claims.UserID,
		Title:     req.Title,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}
	id, err := s.store.CreatePost(r.Context(), &post)
	if err != nil {
		internalError(w, err)
		return
	}

	created, err := s.store.GetPost(r.Context(), id)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "post created",
		"post":    created,
	})
}

// handleGetPost godoc
//
//	@Summary		Get a post with comments
//	@Description	Get a single post with author identity and all its comments in ascending creation-time order.
//	@Tags			Posts
//	@Produce		json
//	@Param			id	path		int	true	"Post ID"
//	@Success		200	{object}	map[string]interface{}	"Post and comments"
//	@Failure		404	{object}	map[string]string		"Post not found"
//	@Router			/api/posts/{id} [get]
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		notFound(w)
		return
	}
	post, err := s.store.GetPost(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, errors.New("post not found"))
			return
		}
		internalError(w, err)
		return
	}
	comments, err := s.store.ListCommentsByPost(r.Context(), id)
	if err != nil {
		internalError(w, err)
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"post":     post,
		"comments": comments,
	})
}

// handleDeletePost godoc
//
//	@Summary		Delete a post
//	@Description	Delete your own post. All comments on it are deleted by the storage cascade.
//	@Tags			Posts
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Post ID"
//	@Success		200	{object}	map[string]string	"Success message"
//	@Failure		401	{object}	map[string]string	"Authentication required"
//	@Failure		403	{object}	map[string]string	"Not your post"
//	@Failure		404	{object}	map[string]string	"Post not found"
//	@Router			/api/posts/{id} [delete]
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request, idStr string) {
	claims, ok := s.requireAuth(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		notFound(w)
		return
	}
	post, err := s.store.GetPost(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, errors.New("post not found"))
			return
		}
		internalError(w, err)
		return
	}
	if post.UserID != claims.UserID {
		writeError(w, http.StatusForbidden, errors.New("you can only delete your own posts"))
		return
	}

	if err := s.store.DeletePost(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, errors.New("post not found"))
			return
		}
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "post deleted"})
}

// handleCreateComment godoc
//
//	@Summary		Comment on a post
//	@Description	Add a comment to a post, optionally marked as a reply to another comment/user. Comments form a flat, time-ordered sequence; reply-target fields are display metadata only.
//	@Tags			Comments
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int	true	"Post ID"
//	@Param			comment	body		object{content=string,reply_to_comment_id=int,reply_to_user_id=int}	true	"Comment data"
//	@Success		201		{object}	map[string]interface{}	"Created comment"
//	@Failure		400		{object}	map[string]string		"Validation error"
//	@Failure		401		{object}	map[string]string		"Authentication required"
//	@Failure		404		{object}	map[string]string		"Post not found"
//	@Router			/api/posts/{id}/comments [post]
func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request, idStr string) {
	claims, ok := s.requireAuth(w, r)
	if !ok {
		return
	}

	postID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		notFound(w)
		return
	}

	var req struct {
		Content          string `json:"content"`
		ReplyToCommentID *int64 `json:"reply_to_comment_id"`
		ReplyToUserID    *int64 `json:"reply_to_user_id"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if n := utf8.RuneCountInString(req.Content); n < 1 || n > 1000 {
		writeError(w, http.StatusBadRequest, errors.New("content must be 1-1000 characters"))
		return
	}

	if _, err := s.store.GetPost(r.Context(), postID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, errors.New("post not found"))
			return
		}
		internalError(w, err)
		return
	}

	// Reply targets are passed through unchecked unless the deployment
	// opts in to referential validation.
	if s.cfg.ValidateReplyTargets && req.ReplyToCommentID != nil {
		target, err := s.store.GetComment(r.Context(), *req.ReplyToCommentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusBadRequest, errors.New("reply_to_comment_id does not reference an existing comment"))
				return
			}
			internalError(w, err)
			return
		}
		if target.PostID != postID {
			writeError(w, http.StatusBadRequest, errors.New("reply_to_comment_id references a comment on another post"))
			return
		}
	}

	comment := model.Comment{
		PostID:           postID,
		UserID:           claims.UserID,
		Content:          req.Content,
		ReplyToCommentID: req.ReplyToCommentID,
		ReplyToUserID:    req.ReplyToUserID,
		CreatedAt:        time.Now(),
	}
	id, err := s.store.CreateComment(r.Context(), &comment)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, errors.New("post not found"))
			return
		}
		internalError(w, err)
		return
	}

	created, err := s.store.GetComment(r.Context(), id)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "comment created",
		"comment": created,
	})
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Liveness probe for the service.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	map[string]string	"Status payload"
//	@Router			/api/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.cfg.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleGetStats godoc
//
//	@Summary		Site statistics
//	@Description	Counts of users, posts, and comments.
//	@Tags			Stats
//	@Produce		json
//	@Success		200	{object}	model.SiteStats
//	@Router			/api/stats [get]
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetSiteStats(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) serveOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	fmt.Fprint(w, doc)
}

func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
		return auth.Claims{}, false
	}
	bearer := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	claims, err := s.auth.VerifyToken(bearer)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return auth.Claims{}, false
	}
	return claims, true
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func readJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// internalError logs the fault in full and hands the client a generic
// message.
func internalError(w http.ResponseWriter, err error) {
	log.Printf("internal error: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal server error"})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, errors.New("not found"))
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return def
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
