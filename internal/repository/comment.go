package repository

import (
	"context"
	"errors"
	"time"

	"opinara/internal/models"
	"opinara/internal/ranking"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByIDs(ctx context.Context, ids []uint) ([]*models.Comment, error)
	RootRankingItems(ctx context.Context, postID uint) ([]ranking.Item, error)
	ReplyRankingItems(ctx context.Context, parentID uint) ([]ranking.Item, error)
	ReplyCounts(ctx context.Context, parentIDs []uint) (map[uint]int64, error)
	CountByPost(ctx context.Context, postID uint) (int64, error)
	IDsByPost(ctx context.Context, postID uint) ([]uint, error)

	ApplyVoteDelta(ctx context.Context, id uint, up, down int) error
	SetVoteCounters(ctx context.Context, id uint, up, down int) error

	SoftDelete(ctx context.Context, id uint, at time.Time) error
	SoftDeleteByPosts(ctx context.Context, postIDs []uint, at time.Time) error
	SoftDeleteByUser(ctx context.Context, userID uint, at time.Time) error
	HardDeleteByPost(ctx context.Context, postID uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) ListByIDs(ctx context.Context, ids []uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	if len(ids) == 0 {
		return comments, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&comments).Error
	return comments, err
}

// RootRankingItems returns the ranking projection of a post's top-level comments.
// Soft-deleted comments are included so their subtrees stay reachable.
func (r *commentRepository) RootRankingItems(ctx context.Context, postID uint) ([]ranking.Item, error) {
	var rows []rankingRow
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("id, upvote_count, downvote_count, created_at").
		Where("post_id = ? AND parent_comment_id IS NULL", postID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toItems(rows), nil
}

// ReplyRankingItems returns the ranking projection of a comment's direct children.
func (r *commentRepository) ReplyRankingItems(ctx context.Context, parentID uint) ([]ranking.Item, error) {
	var rows []rankingRow
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("id, upvote_count, downvote_count, created_at").
		Where("parent_comment_id = ?", parentID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toItems(rows), nil
}

// ReplyCounts counts direct children per parent with a single grouped query.
// Parents without children are absent from the map.
func (r *commentRepository) ReplyCounts(ctx context.Context, parentIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(parentIDs))
	if len(parentIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		ParentCommentID uint
		Count           int64
	}
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("parent_comment_id, COUNT(*) AS count").
		Where("parent_comment_id IN ?", parentIDs).
		Group("parent_comment_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ParentCommentID] = row.Count
	}
	return counts, nil
}

// CountByPost counts every comment row of a post, which is what comment_count tracks.
func (r *commentRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

func (r *commentRepository) IDsByPost(ctx context.Context, postID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Pluck("id", &ids).Error
	return ids, err
}

func (r *commentRepository) ApplyVoteDelta(ctx context.Context, id uint, up, down int) error {
	if up == 0 && down == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"upvote_count":   gorm.Expr("upvote_count + ?", up),
			"downvote_count": gorm.Expr("downvote_count + ?", down),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

func (r *commentRepository) SetVoteCounters(ctx context.Context, id uint, up, down int) error {
	return r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"upvote_count": up, "downvote_count": down}).Error
}

func (r *commentRepository) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_deleted": true, "deleted_at": at}).Error
}

func (r *commentRepository) SoftDeleteByPosts(ctx context.Context, postIDs []uint, at time.Time) error {
	if len(postIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id IN ? AND is_deleted = ?", postIDs, false).
		Updates(map[string]any{"is_deleted": true, "deleted_at": at}).Error
}

func (r *commentRepository) SoftDeleteByUser(ctx context.Context, userID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Updates(map[string]any{"is_deleted": true, "deleted_at": at}).Error
}

func (r *commentRepository) HardDeleteByPost(ctx context.Context, postID uint) error {
	return r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Comment{}).Error
}
