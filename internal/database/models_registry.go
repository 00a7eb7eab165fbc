package database

import "opinara/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Wave{},
		&models.Post{},
		&models.PostMedia{},
		&models.Comment{},
		&models.Vote{},
	}
}
