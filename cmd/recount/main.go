// Command recount rebuilds post and comment counters from the vote ledger.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"opinara/internal/config"
	"opinara/internal/database"
	"opinara/internal/repository"
	"opinara/internal/service"
)

func main() {
	postID := flag.Uint("post", 0, "Recount a single post instead of all posts")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	posts := service.NewPostService(repository.NewStore(db), nil, nil, nil, service.PostServiceOptions{})

	if *postID != 0 {
		report, err := posts.RecountPost(ctx, *postID)
		if err != nil {
			log.Fatalf("Recount failed: %v", err)
		}
		log.Printf("post %d: upvote drift %d, downvote drift %d, comment drift %d, comments corrected %d",
			report.PostID, report.UpvoteDrift, report.DownvoteDrift, report.CommentDrift, report.CommentsCorrected)
		return
	}

	summary, err := posts.RecountAll(ctx)
	if err != nil {
		log.Fatalf("Recount failed: %v", err)
	}
	log.Printf("checked %d posts, corrected %d posts and %d comments",
		summary.PostsChecked, summary.PostsCorrected, summary.CommentsCorrected)
}
