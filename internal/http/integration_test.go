package httpapp

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/antlerhq/antler/internal/auth"
	"github.com/antlerhq/antler/internal/client"
	"github.com/antlerhq/antler/internal/config"
	"github.com/antlerhq/antler/internal/store/sqlite"

	"golang.org/x/crypto/bcrypt"
)

// newTestEnv starts a real HTTP server backed by an in-memory database
// and returns its base URL.
func newTestEnv(t *testing.T) string {
	t.Helper()
	st, err := sqlite.Open("file:"+t.Name()+"_itest?mode=memory&cache=shared", 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	authSvc := auth.NewService(st, "test-secret", time.Hour, bcrypt.MinCost)
	ts := httptest.NewServer(NewServer(st, authSvc, config.Config{}))
	t.Cleanup(func() {
		ts.Close()
		_ = st.Close()
	})
	return ts.URL
}

func TestFullUserJourney(t *testing.T) {
	baseURL := newTestEnv(t)
	ctx := context.Background()

	alice := client.New(baseURL)
	if err := alice.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}

	user, err := alice.Register(ctx, "alice", "pw123456", "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !alice.Session.Valid() {
		t.Fatalf("expected a valid session after register")
	}
	// The session expiry comes from the server, whose TTL here is one
	// hour, not the 7-day production default.
	if alice.Session.ExpiresAt.After(time.Now().Add(2 * time.Hour)) {
		t.Fatalf("session expiry must track the server's TTL, got %v", alice.Session.ExpiresAt)
	}

	post, err := alice.CreatePost(ctx, "First post", "Hello, world.")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if post.UserID != user.ID || post.Username != "alice" {
		t.Fatalf("unexpected post: %+v", post)
	}

	comment, err := alice.CreateComment(ctx, post.ID, "And a first comment.", nil, nil)
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}

	got, comments, err := alice.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Title != "First post" || got.CommentCount != 1 {
		t.Fatalf("unexpected post detail: %+v", got)
	}
	if len(comments) != 1 || comments[0].ID != comment.ID {
		t.Fatalf("expected the new comment, got %+v", comments)
	}

	// A fresh client can log in with the same credentials and read the post.
	reader := client.New(baseURL)
	if _, err := reader.Login(ctx, "alice", "pw123456"); err != nil {
		t.Fatalf("login: %v", err)
	}
	page, err := reader.ListPosts(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(page.Posts) != 1 || page.Pagination.Total != 1 {
		t.Fatalf("unexpected listing: %+v", page)
	}
}

func TestClientPaginationWalk(t *testing.T) {
	baseURL := newTestEnv(t)
	ctx := context.Background()

	alice := client.New(baseURL)
	if _, err := alice.Register(ctx, "alice", "pw123456", "alice@example.com", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	for i := 0; i < 7; i++ {
		if _, err := alice.CreatePost(ctx, fmt.Sprintf("post %d", i), "body"); err != nil {
			t.Fatalf("create post %d: %v", i, err)
		}
	}

	seen := make(map[int64]bool)
	for p := 1; p <= 3; p++ {
		page, err := alice.ListPosts(ctx, p, 3)
		if err != nil {
			t.Fatalf("list page %d: %v", p, err)
		}
		if page.Pagination.TotalPages != 3 {
			t.Fatalf("expected 3 pages, got %d", page.Pagination.TotalPages)
		}
		for _, post := range page.Posts {
			if seen[post.ID] {
				t.Fatalf("post %d repeated across pages", post.ID)
			}
			seen[post.ID] = true
		}
	}
	if len(seen) != 7 {
		t.Fatalf("expected all 7 posts across pages, got %d", len(seen))
	}
}

func TestClientOwnershipErrors(t *testing.T) {
	baseURL := newTestEnv(t)
	ctx := context.Background()

	alice := client.New(baseURL)
	if _, err := alice.Register(ctx, "alice", "pw123456", "alice@example.com", ""); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	post, err := alice.CreatePost(ctx, "mine", "hands off")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	bob := client.New(baseURL)
	if _, err := bob.Register(ctx, "bob", "pw123456", "bob@example.com", ""); err != nil {
		t.Fatalf("register bob: %v", err)
	}
	err = bob.DeletePost(ctx, post.ID)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected a 403 error, got %v", err)
	}

	// An anonymous client cannot post at all.
	anon := client.New(baseURL)
	if _, err := anon.CreatePost(ctx, "nope", "nope"); err == nil {
		t.Fatalf("expected unauthenticated create to fail")
	}

	if err := alice.DeletePost(ctx, post.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, _, err := alice.GetPost(ctx, post.ID); err == nil {
		t.Fatalf("expected deleted post to be gone")
	}
}

func TestClientLogout(t *testing.T) {
	baseURL := newTestEnv(t)
	ctx := context.Background()

	alice := client.New(baseURL)
	if _, err := alice.Register(ctx, "alice", "pw123456", "alice@example.com", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	token := alice.Session.Token

	alice.Logout()
	if alice.Session.Valid() {
		t.Fatalf("expected session cleared")
	}
	if _, err := alice.CreatePost(ctx, "t", "c"); err == nil {
		t.Fatalf("expected create to fail after logout")
	}

	// Tokens are stateless: the old token itself still works.
	alice.Session = client.Session{Token: token, ExpiresAt: time.Now().Add(time.Hour)}
	if _, err := alice.CreatePost(ctx, "t", "c"); err != nil {
		t.Fatalf("old token should remain valid: %v", err)
	}
}
