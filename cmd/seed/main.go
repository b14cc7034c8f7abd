package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/antlerhq/antler/internal/client"
)

var users = []struct {
	username string
	nickname string
}{
	{"alice", "Alice"},
	{"bob", "Bob the Builder"},
	{"carol", "Carol"},
	{"dave", "Dave"},
	{"erin", "Erin"},
}

var posts = []struct {
	title   string
	content string
}{
	{"Welcome to the forum", "Introduce yourself here. What brings you around?"},
	{"Best hiking trails near the city?", "Looking for something doable in a morning. Bonus points for a lake view."},
	{"Show and tell: my balcony garden", "Three tomato plants, some basil, and an ambitious chili. Photos soon."},
	{"Weekly reading thread", "What are you reading this week? I just started a history of the silk road."},
	{"Anyone else into film photography?", "Picked up an old rangefinder at a flea market and I'm hooked."},
	{"Recipe swap: weeknight dinners", "Post your go-to meals that take under 30 minutes."},
	{"Looking for board game recommendations", "Two players, not too heavy, plays in about an hour."},
	{"Tips for first-time marathon training?", "Signed up for the autumn race. Currently regretting everything."},
	{"What's your desk setup like?", "Working from home permanently now and my kitchen chair has to go."},
	{"Local repair cafe this weekend", "Bring your broken toasters and bikes. Volunteers welcome."},
}

var comments = []string{
	"Great post, thanks for sharing!",
	"I was wondering about this too.",
	"Can you share more details?",
	"This is exactly what I needed.",
	"Not sure I agree, but interesting perspective.",
	"Following this thread.",
	"Tried it last weekend and it worked out great.",
	"Bookmarked for later.",
	"Welcome! Glad to have you here.",
	"Same here. Let's compare notes.",
	"That's a solid recommendation.",
	"Would love a follow-up on this.",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Antler server URL")
	flag.Parse()

	log.Printf("Seeding forum at %s...\n", *baseURL)
	ctx := context.Background()

	// Register all users and keep their authenticated clients.
	var clients []*client.Client
	for _, u := range users {
		c := client.New(*baseURL)
		email := fmt.Sprintf("%s@example.com", u.username)
		if _, err := c.Register(ctx, u.username, "pw123456", email, u.nickname); err != nil {
			// Re-running the seeder against an existing database.
			if _, lerr := c.Login(ctx, u.username, "pw123456"); lerr != nil {
				log.Fatalf("register %s: %v (login fallback: %v)", u.username, err, lerr)
			}
		}
		log.Printf("✓ User: %s", u.username)
		clients = append(clients, c)
	}

	// Publish posts from random users.
	var postIDs []int64
	for _, p := range posts {
		idx := rand.Intn(len(clients))
		post, err := clients[idx].CreatePost(ctx, p.title, p.content)
		if err != nil {
			log.Printf("✗ Failed to post: %v", err)
			continue
		}
		postIDs = append(postIDs, post.ID)
		log.Printf("✓ Post #%d: %s (by %s)", post.ID, p.title, users[idx].username)

		// Small delay to spread out created_at times
		time.Sleep(50 * time.Millisecond)
	}

	// Add comments, some of them replies to earlier comments.
	for _, postID := range postIDs {
		numComments := rand.Intn(4) + 1
		var prev *client.Client
		var prevCommentID, prevUserID int64
		for i := 0; i < numComments; i++ {
			idx := rand.Intn(len(clients))
			c := clients[idx]
			text := comments[rand.Intn(len(comments))]

			var replyTo, replyUser *int64
			if prev != nil && rand.Intn(2) == 0 {
				replyTo = &prevCommentID
				replyUser = &prevUserID
			}

			comment, err := c.CreateComment(ctx, postID, text, replyTo, replyUser)
			if err != nil {
				log.Printf("✗ Failed to comment: %v", err)
				continue
			}
			log.Printf("✓ Comment #%d on post #%d (by %s)", comment.ID, postID, users[idx].username)

			prev = c
			prevCommentID = comment.ID
			prevUserID = c.Session.User.ID
			time.Sleep(20 * time.Millisecond)
		}
	}

	log.Println("Done.")
}
