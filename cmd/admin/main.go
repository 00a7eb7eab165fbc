// Package main provides admin management utilities for Opinara.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"opinara/internal/config"
	"opinara/internal/database"
	"opinara/internal/models"

	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin promote <user_id|email>   - Promote user to admin")
		fmt.Println("  go run ./cmd/admin demote <user_id|email>    - Demote user from admin")
		fmt.Println("  go run ./cmd/admin list-admins               - List all admins")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: go run ./cmd/admin %s <user_id|email>\n", command)
			os.Exit(1)
		}
		setAdmin(db, os.Args[2], command == "promote")
	case "list-admins":
		listAdmins(db)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func findUser(db *gorm.DB, ref string) (*models.User, error) {
	var user models.User
	q := db.Where("is_deleted = ?", false)
	if id, err := strconv.ParseUint(ref, 10, 32); err == nil {
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("email = ?", strings.ToLower(strings.TrimSpace(ref)))
	}
	if err := q.First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func setAdmin(db *gorm.DB, ref string, admin bool) {
	user, err := findUser(db, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("User %s not found\n", ref)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}

	if user.IsAdmin == admin {
		fmt.Printf("User %s (ID: %d) already has admin=%t\n", user.Email, user.ID, admin)
		return
	}

	if err := db.Model(user).UpdateColumn("is_admin", admin).Error; err != nil {
		log.Fatalf("Failed to update user: %v", err)
	}
	fmt.Printf("Updated %s (ID: %d): admin=%t\n", user.Email, user.ID, admin)
}

func listAdmins(db *gorm.DB) {
	var admins []models.User
	if err := db.Where("is_admin = ? AND is_deleted = ?", true, false).Order("id").Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found")
		return
	}
	for _, admin := range admins {
		fmt.Printf("ID: %d | Name: %s | Email: %s\n", admin.ID, admin.Fullname, admin.Email)
	}
}
