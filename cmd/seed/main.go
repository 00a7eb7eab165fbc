// Command seed populates the database with demo users, waves, posts and votes.
package main

import (
	"context"
	"flag"
	"log"

	"opinara/internal/config"
	"opinara/internal/database"
	"opinara/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	numWaves := flag.Int("waves", 5, "Number of waves to create")
	numPosts := flag.Int("posts", 100, "Number of posts to create")
	maxComments := flag.Int("comments", 8, "Maximum comments per post")
	maxVotes := flag.Int("votes", 15, "Maximum votes per post or comment")
	maxDays := flag.Int("days", 30, "Spread post creation over this many past days")
	seedValue := flag.Int64("seed", 0, "Random seed, 0 picks one from the clock")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Hash passwords with the minimum bcrypt cost")
	flag.Parse()

	log.Printf("Seeding: %d users, %d waves, %d posts, clean=%v", *numUsers, *numWaves, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	report, err := seed.Seed(context.Background(), db, seed.Options{
		NumUsers:         *numUsers,
		NumWaves:         *numWaves,
		NumPosts:         *numPosts,
		MaxComments:      *maxComments,
		MaxVotes:         *maxVotes,
		MaxDays:          *maxDays,
		Seed:             *seedValue,
		ShouldClean:      *shouldClean,
		FastPasswordCost: *fast,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done: %d users, %d waves, %d posts, %d comments, %d votes",
		report.Users, report.Waves, report.Posts, report.Comments, report.Votes)
	log.Printf("All seeded users have the password: %s", seed.DemoPassword)
}
