package service

import (
	"context"
	"time"
	"unicode/utf8"

	"opinara/internal/cache"
	"opinara/internal/models"
	"opinara/internal/ranking"
	"opinara/internal/repository"
	"opinara/internal/validation"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxWaveDescriptionLen = 500
	maxWaveSummaryLen     = 1000
)

type WaveService struct {
	store       repository.Store
	policy      *bluemonday.Policy
	defaultSort ranking.Mode
}

type CreateWaveInput struct {
	UserID        uint
	Name          string
	Description   string
	Summary       string
	CoverImageURL string
}

type ListWavePostsInput struct {
	WaveID uint
	Page   int
	Sort   string
}

// WaveDeleteResult reports how a wave deletion was carried out.
type WaveDeleteResult struct {
	Mode          DeleteMode `json:"mode"`
	OrphanedPosts int64      `json:"orphanedPosts"`
}

func NewWaveService(store repository.Store, defaultSort ranking.Mode) *WaveService {
	if defaultSort == "" {
		defaultSort = ranking.ModeHot
	}
	return &WaveService{store: store, policy: bluemonday.StrictPolicy(), defaultSort: defaultSort}
}

func (s *WaveService) CreateWave(ctx context.Context, in CreateWaveInput) (*models.Wave, error) {
	name := validation.NormalizeWaveName(sanitize(s.policy, in.Name))
	if err := validation.ValidateWaveName(name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	description := sanitize(s.policy, in.Description)
	if description == "" {
		description = models.DefaultWaveDescription(name)
	}
	if utf8.RuneCountInString(description) > maxWaveDescriptionLen {
		return nil, models.NewValidationError("Description cannot exceed 500 characters")
	}
	summary := sanitize(s.policy, in.Summary)
	if utf8.RuneCountInString(summary) > maxWaveSummaryLen {
		return nil, models.NewValidationError("Summary cannot exceed 1000 characters")
	}

	existing, err := s.store.Waves().GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("A wave with this name already exists", nil)
	}

	wave := &models.Wave{
		Name:          name,
		Description:   description,
		Summary:       summary,
		CoverImageURL: in.CoverImageURL,
		CreatedBy:     in.UserID,
	}
	if err := s.store.Waves().Create(ctx, wave); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, models.NewConflictError("A wave with this name already exists", err)
		}
		return nil, err
	}
	return wave, nil
}

// GetWave returns a live wave, served from the cache when possible.
func (s *WaveService) GetWave(ctx context.Context, waveID uint) (*models.Wave, error) {
	var wave models.Wave
	err := cache.Aside(ctx, cache.WaveKey(waveID), &wave, cache.WaveTTL, func() error {
		w, err := s.store.Waves().GetByID(ctx, waveID)
		if err != nil {
			return err
		}
		if w.IsDeleted {
			return models.NewNotFoundError("Wave", waveID)
		}
		wave = *w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wave, nil
}

// ListWavePosts ranks the wave's live posts and returns one page of ten.
func (s *WaveService) ListWavePosts(ctx context.Context, in ListWavePostsInput) (*PostPage, error) {
	page := in.Page
	if page == 0 {
		page = 1
	}
	if page < 0 {
		return nil, models.NewValidationError("page must be positive")
	}
	mode, err := ranking.ParseMode(in.Sort, s.defaultSort)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if _, err := s.GetWave(ctx, in.WaveID); err != nil {
		return nil, err
	}

	items, err := s.store.Posts().RankingItemsByWave(ctx, in.WaveID)
	if err != nil {
		return nil, err
	}
	ranking.Sort(items, mode)
	ids := ranking.Window(items, page, postsPerPage)
	rows, err := s.store.Posts().ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	return &PostPage{
		Posts:   ranking.Reorder(ids, rows, func(p *models.Post) uint { return p.ID }),
		Page:    page,
		Limit:   postsPerPage,
		Total:   int64(len(items)),
		HasMore: ranking.HasMore(len(items), page, postsPerPage),
	}, nil
}

// DeleteWave hard-deletes an empty wave. A wave that still has posts is
// soft-deleted and its posts are orphaned: kept, detached and closed to
// new votes and comments.
func (s *WaveService) DeleteWave(ctx context.Context, userID, waveID uint) (*WaveDeleteResult, error) {
	result := &WaveDeleteResult{}
	var livePosts []uint
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		wave, err := tx.Waves().GetByID(ctx, waveID)
		if err != nil {
			return err
		}
		if wave.IsDeleted {
			return models.NewNotFoundError("Wave", waveID)
		}
		if wave.CreatedBy != userID {
			return models.NewForbiddenError("You can only delete your own waves")
		}

		count, err := tx.Posts().CountByWave(ctx, waveID)
		if err != nil {
			return err
		}
		if count == 0 {
			result.Mode = DeleteHard
			return tx.Waves().HardDelete(ctx, waveID)
		}

		items, err := tx.Posts().RankingItemsByWave(ctx, waveID)
		if err != nil {
			return err
		}
		livePosts = ranking.IDs(items)

		result.Mode = DeleteSoft
		if result.OrphanedPosts, err = tx.Posts().OrphanByWave(ctx, waveID); err != nil {
			return err
		}
		return tx.Waves().SoftDelete(ctx, waveID, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateWave(ctx, waveID)
	for _, id := range livePosts {
		cache.InvalidatePost(ctx, id)
	}
	return result, nil
}
