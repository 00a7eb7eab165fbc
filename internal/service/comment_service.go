package service

import (
	"context"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"opinara/internal/cache"
	"opinara/internal/models"
	"opinara/internal/notifications"
	"opinara/internal/ranking"
	"opinara/internal/repository"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxCommentLen       = 1000
	defaultCommentLimit = 20
	maxCommentLimit     = 100
)

type CommentService struct {
	store       repository.Store
	notifier    *notifications.Notifier
	policy      *bluemonday.Policy
	defaultSort ranking.Mode
}

type CreateCommentInput struct {
	UserID          uint
	PostID          uint
	Text            string
	ParentCommentID *uint
}

// ListRootCommentsInput selects a page of a post's top-level comments. Zero
// Page and Limit mean the defaults; negative values are rejected.
type ListRootCommentsInput struct {
	PostID uint
	Page   int
	Limit  int
	Sort   string
}

// CommentPage is one page of root comments.
type CommentPage struct {
	Comments []*models.Comment `json:"comments"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
	Total    int               `json:"total"`
	HasMore  bool              `json:"hasMore"`
}

func NewCommentService(store repository.Store, notifier *notifications.Notifier, defaultSort ranking.Mode) *CommentService {
	if defaultSort == "" {
		defaultSort = ranking.ModeHot
	}
	return &CommentService{
		store:       store,
		notifier:    notifier,
		policy:      bluemonday.StrictPolicy(),
		defaultSort: defaultSort,
	}
}

// sanitize strips markup and returns plain, trimmed text.
func sanitize(policy *bluemonday.Policy, s string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(s)))
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	text := sanitize(s.policy, in.Text)
	if text == "" {
		return nil, models.NewValidationError("Comment text is required")
	}
	if utf8.RuneCountInString(text) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 1000 characters)")
	}

	comment := &models.Comment{
		PostID:          in.PostID,
		UserID:          in.UserID,
		Text:            text,
		ParentCommentID: in.ParentCommentID,
	}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		post, err := tx.Posts().GetByID(ctx, in.PostID)
		if err != nil {
			return err
		}
		if post.IsDeleted {
			return models.NewNotFoundError("Post", in.PostID)
		}
		if post.IsOrphaned {
			return models.NewForbiddenError("Post no longer accepts comments")
		}

		if in.ParentCommentID != nil {
			parent, err := tx.Comments().GetByID(ctx, *in.ParentCommentID)
			if err != nil {
				return err
			}
			if parent.PostID != in.PostID {
				return models.NewValidationError("Parent comment belongs to another post")
			}
			if parent.IsDeleted {
				return models.NewForbiddenError("Cannot reply to a deleted comment")
			}
		}

		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}
		return tx.Posts().IncrementCommentCount(ctx, in.PostID, 1)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidatePost(ctx, in.PostID)
	s.notifier.PublishAsync(ctx, notifications.EventCommentCreated, in.PostID, comment)
	return comment, nil
}

// ListRootComments ranks a post's top-level comments and returns one page,
// each comment carrying its direct reply count.
func (s *CommentService) ListRootComments(ctx context.Context, in ListRootCommentsInput) (*CommentPage, error) {
	page, limit := in.Page, in.Limit
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultCommentLimit
	}
	if page < 0 || limit < 0 {
		return nil, models.NewValidationError("page and limit must be positive")
	}
	if limit > maxCommentLimit {
		limit = maxCommentLimit
	}
	mode, err := s.parseSort(in.Sort)
	if err != nil {
		return nil, err
	}

	post, err := s.store.Posts().GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.IsDeleted {
		return nil, models.NewNotFoundError("Post", in.PostID)
	}

	items, err := s.store.Comments().RootRankingItems(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	ranking.Sort(items, mode)
	comments, err := s.loadRanked(ctx, ranking.Window(items, page, limit))
	if err != nil {
		return nil, err
	}

	return &CommentPage{
		Comments: comments,
		Page:     page,
		Limit:    limit,
		Total:    len(items),
		HasMore:  ranking.HasMore(len(items), page, limit),
	}, nil
}

// ListReplies returns every direct child of a comment, one level only.
func (s *CommentService) ListReplies(ctx context.Context, commentID uint, sort string) ([]*models.Comment, error) {
	mode, err := s.parseSort(sort)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Comments().GetByID(ctx, commentID); err != nil {
		return nil, err
	}

	items, err := s.store.Comments().ReplyRankingItems(ctx, commentID)
	if err != nil {
		return nil, err
	}
	ranking.Sort(items, mode)
	return s.loadRanked(ctx, ranking.IDs(items))
}

// DeleteComment soft-deletes the caller's comment. Replies stay attached and
// the post's comment count is unchanged.
func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID uint) error {
	comment, err := s.store.Comments().GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != userID {
		return models.NewForbiddenError("You can only delete your own comments")
	}
	if comment.IsDeleted {
		return nil
	}
	if err := s.store.Comments().SoftDelete(ctx, commentID, time.Now().UTC()); err != nil {
		return err
	}
	cache.InvalidatePost(ctx, comment.PostID)
	return nil
}

// loadRanked loads full rows for ids in order and fills reply counts with one
// grouped query.
func (s *CommentService) loadRanked(ctx context.Context, ids []uint) ([]*models.Comment, error) {
	if len(ids) == 0 {
		return []*models.Comment{}, nil
	}
	rows, err := s.store.Comments().ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.Comments().ReplyCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	comments := ranking.Reorder(ids, rows, func(c *models.Comment) uint { return c.ID })
	for _, c := range comments {
		c.ReplyCount = counts[c.ID]
		c.Redact()
	}
	return comments, nil
}

func (s *CommentService) parseSort(sort string) (ranking.Mode, error) {
	mode, err := ranking.ParseMode(sort, s.defaultSort)
	if err != nil {
		return "", models.NewValidationError(err.Error())
	}
	return mode, nil
}
