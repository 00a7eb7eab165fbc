package models

import (
	"fmt"
	"time"
)

// Wave is a topic community that groups posts.
type Wave struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"uniqueIndex;not null" json:"name"`
	Description   string     `gorm:"size:500" json:"description"`
	Summary       string     `gorm:"size:1000" json:"summary"`
	CoverImageURL string     `json:"coverImageUrl"`
	CreatedBy     uint       `gorm:"not null;index" json:"createdBy"`
	PostCount     int        `gorm:"not null;default:0" json:"postCount"`
	IsDeleted     bool       `gorm:"not null;default:false;index" json:"isDeleted"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// DefaultWaveDescription is used when a wave is created without a description.
func DefaultWaveDescription(name string) string {
	return fmt.Sprintf("Welcome to %s's wave.", name)
}
