package repository

import (
	"context"
	"errors"
	"time"

	"opinara/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	AdjustKarma(ctx context.Context, id uint, delta int) error
	UpdateBio(ctx context.Context, id uint, bio string) error
	HasActivity(ctx context.Context, id uint) (bool, error)
	SoftDelete(ctx context.Context, id uint, at time.Time) error
	HardDelete(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no account uses the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// AdjustKarma adds delta to the user's karma in place.
func (r *userRepository) AdjustKarma(ctx context.Context, id uint, delta int) error {
	if delta == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("karma", gorm.Expr("karma + ?", delta)).Error
}

// UpdateBio sets the bio of a live account.
func (r *userRepository) UpdateBio(ctx context.Context, id uint, bio string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("bio", bio)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

// HasActivity reports whether the user authored any wave, post or comment or cast any vote.
func (r *userRepository) HasActivity(ctx context.Context, id uint) (bool, error) {
	for _, model := range []any{&models.Post{}, &models.Comment{}, &models.Vote{}} {
		var count int64
		if err := r.db.WithContext(ctx).Model(model).Where("user_id = ?", id).Limit(1).Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	var waves int64
	if err := r.db.WithContext(ctx).Model(&models.Wave{}).Where("created_by = ?", id).Limit(1).Count(&waves).Error; err != nil {
		return false, err
	}
	return waves > 0, nil
}

func (r *userRepository) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_deleted": true, "deleted_at": at}).Error
}

func (r *userRepository) HardDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.User{}, id).Error
}
