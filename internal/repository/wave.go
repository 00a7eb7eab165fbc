package repository

import (
	"context"
	"errors"
	"time"

	"opinara/internal/models"

	"gorm.io/gorm"
)

// WaveRepository defines persistence operations for waves.
type WaveRepository interface {
	Create(ctx context.Context, wave *models.Wave) error
	GetByID(ctx context.Context, id uint) (*models.Wave, error)
	GetByName(ctx context.Context, name string) (*models.Wave, error)
	IncrementPostCount(ctx context.Context, id uint, delta int) error
	SoftDelete(ctx context.Context, id uint, at time.Time) error
	HardDelete(ctx context.Context, id uint) error
}

type waveRepository struct {
	db *gorm.DB
}

// NewWaveRepository returns a new WaveRepository implementation.
func NewWaveRepository(db *gorm.DB) WaveRepository {
	return &waveRepository{db: db}
}

func (r *waveRepository) Create(ctx context.Context, wave *models.Wave) error {
	return r.db.WithContext(ctx).Create(wave).Error
}

func (r *waveRepository) GetByID(ctx context.Context, id uint) (*models.Wave, error) {
	var wave models.Wave
	if err := r.db.WithContext(ctx).First(&wave, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Wave", id)
		}
		return nil, err
	}
	return &wave, nil
}

// GetByName returns nil, nil when the name is free.
func (r *waveRepository) GetByName(ctx context.Context, name string) (*models.Wave, error) {
	var wave models.Wave
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&wave).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wave, nil
}

func (r *waveRepository) IncrementPostCount(ctx context.Context, id uint, delta int) error {
	return r.db.WithContext(ctx).Model(&models.Wave{}).
		Where("id = ?", id).
		UpdateColumn("post_count", gorm.Expr("post_count + ?", delta)).Error
}

func (r *waveRepository) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Wave{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_deleted": true, "deleted_at": at}).Error
}

func (r *waveRepository) HardDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Wave{}, id).Error
}
