package repository

import (
	"context"
	"errors"

	"opinara/internal/models"

	"gorm.io/gorm"
)

// ErrVoteChanged means the ledger row was changed by another transaction
// between the lookup and the write.
var ErrVoteChanged = errors.New("vote changed concurrently")

// VoteTally is the ledger's count of each vote direction for one target.
type VoteTally struct {
	Up   int
	Down int
}

// VoteRepository is the vote ledger: at most one row per (user, target).
type VoteRepository interface {
	Find(ctx context.Context, userID uint, targetType models.TargetType, targetID uint) (*models.Vote, error)
	Create(ctx context.Context, vote *models.Vote) error
	UpdateType(ctx context.Context, id uint, from, to models.VoteType) error
	Delete(ctx context.Context, id uint) error
	Tally(ctx context.Context, targetType models.TargetType, targetIDs []uint) (map[uint]VoteTally, error)
	CountByTargets(ctx context.Context, targetType models.TargetType, targetIDs []uint) (int64, error)
	DeleteByTargets(ctx context.Context, targetType models.TargetType, targetIDs []uint) error
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository creates a new VoteRepository
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Find returns nil, nil when the user has no vote on the target.
func (r *voteRepository) Find(ctx context.Context, userID uint, targetType models.TargetType, targetID uint) (*models.Vote, error) {
	var vote models.Vote
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
		First(&vote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &vote, nil
}

func (r *voteRepository) Create(ctx context.Context, vote *models.Vote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

// UpdateType switches a vote only if it still has the type the caller read.
// Zero affected rows means a concurrent write won and returns ErrVoteChanged.
func (r *voteRepository) UpdateType(ctx context.Context, id uint, from, to models.VoteType) error {
	res := r.db.WithContext(ctx).Model(&models.Vote{}).
		Where("id = ? AND type = ?", id, from).
		Update("type", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVoteChanged
	}
	return nil
}

// Delete removes a vote. Zero affected rows returns ErrVoteChanged.
func (r *voteRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Vote{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVoteChanged
	}
	return nil
}

// Tally counts ledger rows per target and direction. Targets without votes are absent.
func (r *voteRepository) Tally(ctx context.Context, targetType models.TargetType, targetIDs []uint) (map[uint]VoteTally, error) {
	tallies := make(map[uint]VoteTally, len(targetIDs))
	if len(targetIDs) == 0 {
		return tallies, nil
	}
	var rows []struct {
		TargetID uint
		Type     models.VoteType
		Count    int
	}
	err := r.db.WithContext(ctx).Model(&models.Vote{}).
		Select("target_id, type, COUNT(*) AS count").
		Where("target_type = ? AND target_id IN ?", targetType, targetIDs).
		Group("target_id, type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		t := tallies[row.TargetID]
		switch row.Type {
		case models.VoteUp:
			t.Up = row.Count
		case models.VoteDown:
			t.Down = row.Count
		}
		tallies[row.TargetID] = t
	}
	return tallies, nil
}

func (r *voteRepository) CountByTargets(ctx context.Context, targetType models.TargetType, targetIDs []uint) (int64, error) {
	var count int64
	if len(targetIDs) == 0 {
		return 0, nil
	}
	err := r.db.WithContext(ctx).Model(&models.Vote{}).
		Where("target_type = ? AND target_id IN ?", targetType, targetIDs).
		Count(&count).Error
	return count, err
}

func (r *voteRepository) DeleteByTargets(ctx context.Context, targetType models.TargetType, targetIDs []uint) error {
	if len(targetIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("target_type = ? AND target_id IN ?", targetType, targetIDs).
		Delete(&models.Vote{}).Error
}
