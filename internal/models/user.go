// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User is an account that authors waves, posts, comments and votes.
// Karma is the net vote balance collected on the user's content.
type User struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Email     string     `gorm:"uniqueIndex;not null" json:"email"`
	Fullname  string     `gorm:"not null" json:"fullname"`
	Password  string     `gorm:"not null" json:"-"`
	Bio       string     `json:"bio"`
	Karma     int        `gorm:"not null;default:0" json:"karma"`
	IsAdmin   bool       `gorm:"not null;default:false" json:"isAdmin"`
	IsDeleted bool       `gorm:"not null;default:false;index" json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
