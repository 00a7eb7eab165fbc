package repository

import (
	"context"
	"errors"
	"time"

	"opinara/internal/models"
	"opinara/internal/ranking"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	ListByIDs(ctx context.Context, ids []uint) ([]*models.Post, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
	RankingItemsByWave(ctx context.Context, waveID uint) ([]ranking.Item, error)
	CountByWave(ctx context.Context, waveID uint) (int64, error)
	OrphanByWave(ctx context.Context, waveID uint) (int64, error)
	IDsByUser(ctx context.Context, userID uint) ([]uint, error)
	AllIDs(ctx context.Context) ([]uint, error)

	ApplyVoteDelta(ctx context.Context, id uint, up, down int) error
	IncrementCommentCount(ctx context.Context, id uint, delta int) error
	SetCounters(ctx context.Context, id uint, up, down, comments int) error
	SetVerdict(ctx context.Context, id uint, isToxic bool, reason *string) error

	SoftDelete(ctx context.Context, ids []uint, at time.Time) error
	HardDelete(ctx context.Context, id uint) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Media").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, err
	}
	return &post, nil
}

// ListByIDs loads posts in no particular order; callers reorder with ranking.Reorder.
func (r *postRepository) ListByIDs(ctx context.Context, ids []uint) ([]*models.Post, error) {
	var posts []*models.Post
	if len(ids) == 0 {
		return posts, nil
	}
	err := r.db.WithContext(ctx).Preload("Media").Where("id IN ?", ids).Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Preload("Media").
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Count(&count).Error
	return count, err
}

// RankingItemsByWave returns the ranking projection of the wave's live posts.
func (r *postRepository) RankingItemsByWave(ctx context.Context, waveID uint) ([]ranking.Item, error) {
	var rows []rankingRow
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("id, upvote_count, downvote_count, created_at").
		Where("wave_id = ? AND is_deleted = ?", waveID, false).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toItems(rows), nil
}

// CountByWave counts every post row that still references the wave, deleted or not.
func (r *postRepository) CountByWave(ctx context.Context, waveID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("wave_id = ?", waveID).Count(&count).Error
	return count, err
}

// OrphanByWave detaches all posts from the wave and marks them orphaned.
func (r *postRepository) OrphanByWave(ctx context.Context, waveID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("wave_id = ?", waveID).
		Updates(map[string]any{"wave_id": nil, "is_orphaned": true})
	return res.RowsAffected, res.Error
}

func (r *postRepository) IDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", userID).Pluck("id", &ids).Error
	return ids, err
}

func (r *postRepository) AllIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Post{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

// ApplyVoteDelta shifts the cached vote counters in one UPDATE statement.
func (r *postRepository) ApplyVoteDelta(ctx context.Context, id uint, up, down int) error {
	if up == 0 && down == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"upvote_count":   gorm.Expr("upvote_count + ?", up),
			"downvote_count": gorm.Expr("downvote_count + ?", down),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) IncrementCommentCount(ctx context.Context, id uint, delta int) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("comment_count", gorm.Expr("comment_count + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

// SetCounters overwrites the cached counters; used only by the ledger rebuild.
func (r *postRepository) SetCounters(ctx context.Context, id uint, up, down, comments int) error {
	return r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"upvote_count":   up,
			"downvote_count": down,
			"comment_count":  comments,
		}).Error
}

func (r *postRepository) SetVerdict(ctx context.Context, id uint, isToxic bool, reason *string) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"is_toxic": isToxic, "toxicity_reason": reason})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) SoftDelete(ctx context.Context, ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id IN ? AND is_deleted = ?", ids, false).
		Updates(map[string]any{"is_deleted": true, "deleted_at": at}).Error
}

// HardDelete removes the post row and its media.
func (r *postRepository) HardDelete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Where("post_id = ?", id).Delete(&models.PostMedia{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&models.Post{}, id).Error
}

type rankingRow struct {
	ID            uint
	UpvoteCount   int
	DownvoteCount int
	CreatedAt     time.Time
}

func toItems(rows []rankingRow) []ranking.Item {
	items := make([]ranking.Item, len(rows))
	for i, row := range rows {
		items[i] = ranking.Item{
			ID:        row.ID,
			Upvotes:   row.UpvoteCount,
			Downvotes: row.DownvoteCount,
			CreatedAt: row.CreatedAt,
		}
	}
	return items
}
