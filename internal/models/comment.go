package models

import (
	"time"
)

// DeletedCommentText replaces the text of a soft-deleted comment when it is rendered.
const DeletedCommentText = "[deleted]"

// Comment is a node of a post's comment forest. Root comments have a nil
// ParentCommentID; the parent link is fixed at insert time.
type Comment struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	PostID          uint       `gorm:"not null;index:idx_comments_post_parent" json:"postId"`
	UserID          uint       `gorm:"not null;index" json:"userId"`
	Text            string     `gorm:"size:1000;not null" json:"text"`
	ParentCommentID *uint      `gorm:"index;index:idx_comments_post_parent" json:"parentCommentId"`
	UpvoteCount     int        `gorm:"not null;default:0" json:"upvoteCount"`
	DownvoteCount   int        `gorm:"not null;default:0" json:"downvoteCount"`
	IsDeleted       bool       `gorm:"not null;default:false" json:"isDeleted"`
	DeletedAt       *time.Time `json:"deletedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	// ReplyCount is computed per read and never persisted.
	ReplyCount int64 `gorm:"-" json:"replyCount"`
}

// NetVotes is upvotes minus downvotes.
func (c *Comment) NetVotes() int {
	return c.UpvoteCount - c.DownvoteCount
}

// Redact hides the text of a soft-deleted comment while keeping its place in the tree.
func (c *Comment) Redact() {
	if c.IsDeleted {
		c.Text = DeletedCommentText
	}
}
