package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/antlerhq/antler/internal/auth"
	"github.com/antlerhq/antler/internal/client"
	"github.com/antlerhq/antler/internal/config"
	httpapp "github.com/antlerhq/antler/internal/http"
	"github.com/antlerhq/antler/internal/store/sqlite"
)

// Set via -ldflags "-X main.version=... -X main.commit=... -X main.buildTime=...".
var (
	version   = "v0.1.0"
	commit    = "dev"
	buildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		runServer()
		return
	}

	cmd := os.Args[1]

	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}

	if cmd == "-v" || cmd == "--version" || cmd == "version" {
		fmt.Printf("antler %s (commit %s, built %s)\n", version, commit, buildTime)
		return
	}

	if strings.HasPrefix(cmd, "-") {
		runServer()
		return
	}

	args := os.Args[2:]

	switch cmd {
	case "server", "serve":
		runServer()
	case "register":
		cmdRegister(args)
	case "login":
		cmdLogin(args)
	case "logout":
		cmdLogout(args)
	case "post":
		cmdPost(args)
	case "comment":
		cmdComment(args)
	case "read", "list":
		cmdRead(args)
	case "delete", "rm":
		cmdDelete(args)
	case "status", "whoami":
		cmdStatus(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`antler - Forum content & authentication service

Usage: antler <command> [options]

Quick Start:
  antler register --username alice --password pw123456 --email alice@x.com
  antler post --title "Hello" --content "World"

Client Commands:
  register            Create an account and store the session
  login               Log in with username (or email) and password
  logout              Clear the stored session (tokens stay valid until expiry)
  post                Publish a new post
  comment             Comment on a post
  read                Read posts (or one post with its comments)
  delete              Delete your own post
  status              Show current session

Server:
  server              Start the Antler server (default if no command)

Examples:
  antler post --title "Introductions" --content "Hi everyone"
  antler comment --post 123 --text "Nice!"
  antler comment --post 123 --text "Agreed" --reply-to 7 --reply-user 2
  antler read --page 2 --limit 20
  antler read --post 123
  antler delete --post 123

Environment Variables (server):
  ANTLER_ADDR                    Listen address (default: :8080)
  ANTLER_DB                      Database path (default: antler.db)
  ANTLER_JWT_SECRET              Token signing secret
  ANTLER_TOKEN_TTL               Token lifetime (default: 168h)
  ANTLER_BCRYPT_COST             Password hash cost (default: 12)
  ANTLER_DB_MAX_CONNS            Connection pool size (default: 10)
  ANTLER_VALIDATE_REPLY_TARGETS  Check comment reply targets (default: false)`)
}

// ============================================================================
// SERVER
// ============================================================================

func runServer() {
	cfg := config.Load()
	cfg.Version = version
	cfg.Commit = commit
	cfg.BuildTime = buildTime

	store, err := sqlite.Open(cfg.DBPath, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer store.Close()

	authSvc := auth.NewService(store, cfg.JWTSecret, cfg.TokenTTL, cfg.BcryptCost)
	server := httpapp.NewServer(store, authSvc, cfg)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("antler listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
}

// ============================================================================
// CLIENT COMMANDS
// ============================================================================

func newClientFlags(fs *flag.FlagSet) (*string, *time.Duration) {
	url := fs.String("url", "http://localhost:8080", "Antler server URL")
	timeout := fs.Duration("timeout", 30*time.Second, "Per-call timeout")
	return url, timeout
}

func loadClient(baseURL string) (*client.Client, *client.FileSessionStore) {
	c := client.New(strings.TrimSuffix(baseURL, "/"))
	sessions, err := client.DefaultSessionStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error locating session store: %v\n", err)
		os.Exit(1)
	}
	if session, err := sessions.Load(); err == nil {
		c.Session = session
	}
	return c, sessions
}

func callCtx(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func cmdRegister(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("username", "", "Username (required, 3-20 chars)")
	password := fs.String("password", "", "Password (required, min 6 chars)")
	email := fs.String("email", "", "Email address (required)")
	nickname := fs.String("nickname", "", "Display nickname (defaults to username)")
	url, timeout := newClientFlags(fs)
	fs.Parse(args)

	if *username == "" || *password == "" || *email == "" {
		fmt.Fprintln(os.Stderr, "Error: --username, --password and --email are required")
		os.Exit(1)
	}

	c, sessions := loadClient(*url)
	ctx, cancel := callCtx(*timeout)
	defer cancel()

	user, err := c.Register(ctx, *username, *password, *email, *nickname)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := sessions.Save(c.Session); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving session: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Registered '%s' (id %d)\n", user.Username, user.ID)
	fmt.Printf("  Session: %s\n", sessions.Path)
}

func cmdLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "Username or email (required)")
	password := fs.String("password", "", "Password (required)")
	url, timeout := newClientFlags(fs)
	fs.Parse(args)

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "Error: --username and --password are required")
		os.Exit(1)
	}

	c, sessions := loadClient(*url)
	ctx, cancel := callCtx(*timeout)
	defer cancel()

	user, err := c.Login(ctx, *username, *password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := sessions.Save(c.Session); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving session: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Logged in as '%s'\n", user.Username)
}

func cmdLogout(args []string) {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	fs.Parse(args)

	sessions, err := client.DefaultSessionStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := sessions.Clear(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	// Stateless tokens cannot be revoked; this only forgets it locally.
	fmt.Println("✓ Logged out (local session cleared)")
}

func cmdPost(args []string) {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	title := fs.String("title", "", "Post title (required, 1-200 chars)")
	content := fs.String("content", "", "Post content (required, 1-10000 chars)")
	url, timeout := newClientFlags(fs)
	fs.Parse(args)

	if *title == "" || *content == "" {
		fmt.Fprintln(os.Stderr, "Error: --title and --content are required")
		os.Exit(1)
	}

	c, _ := loadClient(*url)
	requireSession(c)
	ctx, cancel := callCtx(*timeout)
	defer cancel()

	post, err := c.CreatePost(ctx, *title, *content)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Posted #%d: %s\n", post.ID, post.Title)
}

func cmdComment(args []string) {
	fs := flag.NewFlagSet("comment", flag.ExitOnError)
	postID := fs.Int64("post", 0, "Post ID (required)")
	text := fs.String("text", "", "Comment text (required, 1-1000 chars)")
	replyTo := fs.Int64("reply-to", 0, "Comment ID being replied to")
	replyUser := fs.Int64("reply-user", 0, "User ID being replied to")
	url, timeout := newClientFlags(fs)
	fs.Parse(args)

	if *postID == 0 || *text == "" {
		fmt.Fprintln(os.Stderr, "Error: --post and --text are required")
		os.Exit(1)
	}

	c, _ := loadClient(*url)
	requireSession(c)
	ctx, cancel := callCtx(*timeout)
	defer cancel()

	var replyToID, replyUserID *int64
	if *replyTo != 0 {
		replyToID = replyTo
	}
	if *replyUser != 0 {
		replyUserID = replyUser
	}

	comment, err := c.CreateComment(ctx, *postID, *text, replyToID, replyUserID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Comment #%d on post #%d\n", comment.ID, comment.PostID)
}

func cmdRead(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	postID := fs.Int64("post", 0, "Read a single post with its comments")
	page := fs.Int("page", 1, "Page number")
	limit := fs.Int("limit", 10, "Posts per page")
	url, timeout := newClientFlags(fs)
	fs.Parse(args)

	c, _ := loadClient(*url)
	ctx, cancel := callCtx(*timeout)
	defer cancel()

	if *postID != 0 {
		post, comments, err := c.GetPost(ctx, *postID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("#%d %s — %s (%s)\n\n%s\n", post.ID, post.Title, post.Nickname, post.CreatedAt.Format("2006-01-02 15:04"), post.Content)
		if len(comments) > 0 {
			fmt.Printf("\n%d comment(s):\n", len(comments))
		}
		for _, cm := range comments {
			if cm.ReplyToUsername != nil {
				fmt.Printf("  [%d] %s → %s: %s\n", cm.ID, cm.Nickname, *cm.ReplyToUsername, cm.Content)
			} else {
				fmt.Printf("  [%d] %s: %s\n", cm.ID, cm.Nickname, cm.Content)
			}
		}
		return
	}

	result, err := c.ListPosts(ctx, *page, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, p := range result.Posts {
		fmt.Printf("#%-5d %-50s %s (%d comments)\n", p.ID, p.Title, p.Nickname, p.CommentCount)
	}
	fmt.Printf("\nPage %d/%d (%d posts)\n", result.Pagination.CurrentPage, result.Pagination.TotalPages, result.Pagination.Total)
}

func cmdDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	postID := fs.Int64("post", 0, "Post ID (required)")
	url, timeout := newClientFlags(fs)
	fs.Parse(args)

	if *postID == 0 {
		fmt.Fprintln(os.Stderr, "Error: --post is required")
		os.Exit(1)
	}

	c, _ := loadClient(*url)
	requireSession(c)
	ctx, cancel := callCtx(*timeout)
	defer cancel()

	if err := c.DeletePost(ctx, *postID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Deleted post #%d (and its comments)\n", *postID)
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	url, timeout := newClientFlags(fs)
	fs.Parse(args)

	c, sessions := loadClient(*url)
	fmt.Printf("Server:  %s\n", c.BaseURL)
	fmt.Printf("Session: %s\n", sessions.Path)
	if !c.Session.Valid() {
		fmt.Println("Status:  not logged in")
		return
	}
	fmt.Printf("User:    %s <%s> (id %d)\n", c.Session.User.Username, c.Session.User.Email, c.Session.User.ID)
	fmt.Printf("Expires: %s\n", c.Session.ExpiresAt.Format(time.RFC3339))

	ctx, cancel := callCtx(*timeout)
	defer cancel()
	if err := c.Health(ctx); err != nil {
		fmt.Printf("Server:  unreachable (%v)\n", err)
	} else {
		fmt.Println("Server:  ok")
	}
}

func requireSession(c *client.Client) {
	if c.Session.Token == "" {
		fmt.Fprintln(os.Stderr, "Error: not logged in (run 'antler register' or 'antler login')")
		os.Exit(1)
	}
	if !c.Session.Valid() {
		fmt.Fprintln(os.Stderr, "Error: session expired (run 'antler login')")
		os.Exit(1)
	}
}
