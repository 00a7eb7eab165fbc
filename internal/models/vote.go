package models

import (
	"time"
)

// VoteType is the direction of a vote.
type VoteType string

const (
	VoteUp   VoteType = "upvote"
	VoteDown VoteType = "downvote"
)

// Valid reports whether t is a known vote direction.
func (t VoteType) Valid() bool {
	return t == VoteUp || t == VoteDown
}

// TargetType names the kind of content a vote applies to.
type TargetType string

const (
	TargetPost    TargetType = "Post"
	TargetComment TargetType = "Comment"
)

// Valid reports whether t is a votable content kind.
func (t TargetType) Valid() bool {
	return t == TargetPost || t == TargetComment
}

// Vote is one user's current opinion on one post or comment. The unique index
// guarantees at most one row per (user, target).
type Vote struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;uniqueIndex:idx_votes_user_target,priority:1" json:"userId"`
	TargetType TargetType `gorm:"size:16;not null;uniqueIndex:idx_votes_user_target,priority:2;index:idx_votes_target,priority:1" json:"targetType"`
	TargetID   uint       `gorm:"not null;uniqueIndex:idx_votes_user_target,priority:3;index:idx_votes_target,priority:2" json:"targetId"`
	Type       VoteType   `gorm:"size:16;not null;index:idx_votes_target,priority:3" json:"type"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
