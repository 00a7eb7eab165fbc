package models

import (
	"time"
)

// MediaType is the kind of an attachment on a post.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// PostMedia is an already uploaded attachment referenced by a post.
type PostMedia struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	PostID   uint      `gorm:"not null;index" json:"postId"`
	Type     MediaType `gorm:"size:16;not null" json:"type"`
	URL      string    `gorm:"not null" json:"url"`
	PublicID string    `json:"publicId"`
}

// Post is a piece of user content inside a wave.
//
// UpvoteCount, DownvoteCount and CommentCount are denormalized counters; they are
// only ever changed by atomic increments and can be rebuilt from the vote ledger.
// An orphaned post lost its wave: it stays readable but no longer accepts votes
// or comments.
type Post struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	UserID         uint        `gorm:"not null;index" json:"userId"`
	WaveID         *uint       `gorm:"index" json:"waveId"`
	Title          string      `gorm:"size:300;not null" json:"title"`
	Content        string      `gorm:"type:text" json:"content"`
	Media          []PostMedia `gorm:"foreignKey:PostID" json:"media"`
	UpvoteCount    int         `gorm:"not null;default:0" json:"upvoteCount"`
	DownvoteCount  int         `gorm:"not null;default:0" json:"downvoteCount"`
	CommentCount   int         `gorm:"not null;default:0" json:"commentCount"`
	IsToxic        bool        `gorm:"not null;default:false" json:"isToxic"`
	ToxicityReason *string     `json:"toxicityReason"`
	IsDeleted      bool        `gorm:"not null;default:false;index" json:"isDeleted"`
	IsOrphaned     bool        `gorm:"not null;default:false" json:"isOrphaned"`
	DeletedAt      *time.Time  `json:"deletedAt,omitempty"`
	CreatedAt      time.Time   `gorm:"index" json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// NetVotes is upvotes minus downvotes.
func (p *Post) NetVotes() int {
	return p.UpvoteCount - p.DownvoteCount
}

// AcceptsEngagement reports whether the post may still receive votes and comments.
func (p *Post) AcceptsEngagement() bool {
	return !p.IsDeleted && !p.IsOrphaned
}
