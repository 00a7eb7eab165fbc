package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"opinara/internal/cache"
	"opinara/internal/middleware"
	"opinara/internal/models"
	"opinara/internal/moderation"
	"opinara/internal/notifications"
	"opinara/internal/observability"
	"opinara/internal/ranking"
	"opinara/internal/repository"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	maxTitleLen     = 300
	maxContentLen   = 50000
	maxMediaPerPost = 10
	postsPerPage    = 10
)

// TextClassifier scores one text for toxicity. *moderation.Aggregator satisfies it.
type TextClassifier interface {
	ClassifyText(ctx context.Context, text string) (moderation.Verdict, error)
}

// Summarizer condenses a text. *llm.Client satisfies it.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// PostServiceOptions tunes background moderation.
type PostServiceOptions struct {
	ClassifyOnCreate bool
	// ClassifyTimeout bounds one background classification.
	ClassifyTimeout time.Duration
	// MaxBackgroundClassifications caps concurrent background runs.
	MaxBackgroundClassifications int64
}

type PostService struct {
	store      repository.Store
	classifier TextClassifier
	summarizer Summarizer
	notifier   *notifications.Notifier
	policy     *bluemonday.Policy
	opts       PostServiceOptions

	background sync.WaitGroup
	slots      *semaphore.Weighted
}

type MediaInput struct {
	Type     models.MediaType `json:"type"`
	URL      string           `json:"url"`
	PublicID string           `json:"publicId"`
}

type CreatePostInput struct {
	UserID  uint
	WaveID  *uint
	Title   string
	Content string
	Media   []MediaInput
}

// PostPage is one page of posts.
type PostPage struct {
	Posts   []*models.Post `json:"posts"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	Total   int64          `json:"total"`
	HasMore bool           `json:"hasMore"`
}

// DeleteMode tells a caller how a deletion was carried out.
type DeleteMode string

const (
	DeleteHard DeleteMode = "hard"
	DeleteSoft DeleteMode = "soft"
)

// ClassificationResult is the combined moderation outcome for a post.
type ClassificationResult struct {
	PostID         uint               `json:"postId"`
	IsToxic        bool               `json:"isToxic"`
	ToxicityReason *string            `json:"toxicityReason"`
	Title          moderation.Verdict `json:"title"`
	Content        moderation.Verdict `json:"content"`
}

// RecountReport lists the drift corrected on one post.
type RecountReport struct {
	PostID            uint `json:"postId"`
	UpvoteDrift       int  `json:"upvoteDrift"`
	DownvoteDrift     int  `json:"downvoteDrift"`
	CommentDrift      int  `json:"commentDrift"`
	CommentsCorrected int  `json:"commentsCorrected"`
}

// Drifted reports whether anything had to be corrected.
func (r RecountReport) Drifted() bool {
	return r.UpvoteDrift != 0 || r.DownvoteDrift != 0 || r.CommentDrift != 0 || r.CommentsCorrected != 0
}

// RecountSummary aggregates a full rebuild.
type RecountSummary struct {
	PostsChecked      int `json:"postsChecked"`
	PostsCorrected    int `json:"postsCorrected"`
	CommentsCorrected int `json:"commentsCorrected"`
}

func NewPostService(
	store repository.Store,
	classifier TextClassifier,
	summarizer Summarizer,
	notifier *notifications.Notifier,
	opts PostServiceOptions,
) *PostService {
	if opts.ClassifyTimeout <= 0 {
		opts.ClassifyTimeout = 30 * time.Second
	}
	if opts.MaxBackgroundClassifications <= 0 {
		opts.MaxBackgroundClassifications = 4
	}
	return &PostService{
		store:      store,
		classifier: classifier,
		summarizer: summarizer,
		notifier:   notifier,
		policy:     bluemonday.StrictPolicy(),
		opts:       opts,
		slots:      semaphore.NewWeighted(opts.MaxBackgroundClassifications),
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	title := sanitize(s.policy, in.Title)
	content := sanitize(s.policy, in.Content)
	if title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return nil, models.NewValidationError("Title too long (max 300 characters)")
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return nil, models.NewValidationError("Content too long (max 50000 characters)")
	}
	media, err := validateMedia(in.Media)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:  in.UserID,
		WaveID:  in.WaveID,
		Title:   title,
		Content: content,
		Media:   media,
	}
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if in.WaveID != nil {
			wave, err := tx.Waves().GetByID(ctx, *in.WaveID)
			if err != nil {
				return err
			}
			if wave.IsDeleted {
				return models.NewNotFoundError("Wave", *in.WaveID)
			}
		}
		if err := tx.Posts().Create(ctx, post); err != nil {
			return err
		}
		if in.WaveID != nil {
			return tx.Waves().IncrementPostCount(ctx, *in.WaveID, 1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.WaveID != nil {
		cache.InvalidateWave(ctx, *in.WaveID)
	}
	if s.opts.ClassifyOnCreate {
		s.classifyInBackground(ctx, post.ID)
	}
	return post, nil
}

func validateMedia(in []MediaInput) ([]models.PostMedia, error) {
	if len(in) > maxMediaPerPost {
		return nil, models.NewValidationError(fmt.Sprintf("At most %d media items per post", maxMediaPerPost))
	}
	media := make([]models.PostMedia, 0, len(in))
	for _, m := range in {
		if m.Type != models.MediaTypeImage && m.Type != models.MediaTypeVideo {
			return nil, models.NewValidationError("Media type must be image or video")
		}
		u, err := url.ParseRequestURI(strings.TrimSpace(m.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, models.NewValidationError("Media url must be an absolute http(s) URL")
		}
		media = append(media, models.PostMedia{Type: m.Type, URL: u.String(), PublicID: strings.TrimSpace(m.PublicID)})
	}
	return media, nil
}

// GetPost returns a live post, served from the cache when possible.
func (s *PostService) GetPost(ctx context.Context, postID uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(postID), &post, cache.PostTTL, func() error {
		p, err := s.store.Posts().GetByID(ctx, postID)
		if err != nil {
			return err
		}
		if p.IsDeleted {
			return models.NewNotFoundError("Post", postID)
		}
		post = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// ListUserPosts returns the user's live posts, newest first.
func (s *PostService) ListUserPosts(ctx context.Context, userID uint, page int) (*PostPage, error) {
	if page == 0 {
		page = 1
	}
	if page < 0 {
		return nil, models.NewValidationError("page must be positive")
	}
	total, err := s.store.Posts().CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := &PostPage{
		Posts:   []*models.Post{},
		Page:    page,
		Limit:   postsPerPage,
		Total:   total,
		HasMore: ranking.HasMore(int(total), page, postsPerPage),
	}
	if page > ranking.PageCount(int(total), postsPerPage) {
		return result, nil
	}
	result.Posts, err = s.store.Posts().ListByUser(ctx, userID, postsPerPage, (page-1)*postsPerPage)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeletePost removes a post outright when nobody engaged with it and
// soft-deletes it together with its comments otherwise.
func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) (DeleteMode, error) {
	var mode DeleteMode
	var waveID *uint
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		post, err := tx.Posts().GetByID(ctx, postID)
		if err != nil {
			return err
		}
		if post.IsDeleted {
			return models.NewNotFoundError("Post", postID)
		}
		if post.UserID != userID {
			return models.NewForbiddenError("You can only delete your own posts")
		}
		waveID = post.WaveID

		comments, err := tx.Comments().CountByPost(ctx, postID)
		if err != nil {
			return err
		}
		votes, err := tx.Votes().CountByTargets(ctx, models.TargetPost, []uint{postID})
		if err != nil {
			return err
		}

		if comments == 0 && votes == 0 {
			mode = DeleteHard
			if err := tx.Posts().HardDelete(ctx, postID); err != nil {
				return err
			}
			if post.WaveID != nil {
				return tx.Waves().IncrementPostCount(ctx, *post.WaveID, -1)
			}
			return nil
		}

		mode = DeleteSoft
		now := time.Now().UTC()
		if err := tx.Posts().SoftDelete(ctx, []uint{postID}, now); err != nil {
			return err
		}
		return tx.Comments().SoftDeleteByPosts(ctx, []uint{postID}, now)
	})
	if err != nil {
		return "", err
	}

	cache.InvalidatePost(ctx, postID)
	if waveID != nil {
		cache.InvalidateWave(ctx, *waveID)
	}
	s.notifier.PublishAsync(ctx, notifications.EventPostDeleted, postID, map[string]any{"mode": mode})
	return mode, nil
}

// ClassifyPost runs moderation on the title and the content concurrently and
// stores the verdict. A post is toxic only when both parts are.
func (s *PostService) ClassifyPost(ctx context.Context, postID uint) (*ClassificationResult, error) {
	if s.classifier == nil {
		return nil, models.NewUpstreamError("Moderation is not configured", nil)
	}
	post, err := s.store.Posts().GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.IsDeleted {
		return nil, models.NewNotFoundError("Post", postID)
	}

	span, ctx := observability.NewSpan(ctx, "post.Classify", attribute.Int("post.id", int(postID)))
	defer span.End()
	start := time.Now()

	var title, content moderation.Verdict
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		title, err = s.classifier.ClassifyText(gctx, post.Title)
		return err
	})
	g.Go(func() error {
		if strings.TrimSpace(post.Content) == "" {
			content = moderation.Verdict{Label: moderation.LabelSafe}
			return nil
		}
		var err error
		content, err = s.classifier.ClassifyText(gctx, post.Content)
		return err
	})
	if err := g.Wait(); err != nil {
		span.SetError(err)
		observability.ObserveModeration("error", start)
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			err = models.NewUpstreamError("Moderation service unavailable", err)
		}
		return nil, err
	}

	result := &ClassificationResult{
		PostID:  postID,
		IsToxic: title.Toxic() && content.Toxic(),
		Title:   title,
		Content: content,
	}
	if result.IsToxic {
		reason := "Toxic content: " + string(title.TopCategory)
		result.ToxicityReason = &reason
	}

	if err := s.store.Posts().SetVerdict(ctx, postID, result.IsToxic, result.ToxicityReason); err != nil {
		span.SetError(err)
		observability.ObserveModeration("error", start)
		return nil, err
	}

	label := string(moderation.LabelSafe)
	if result.IsToxic {
		label = string(moderation.LabelToxic)
	}
	observability.ObserveModeration("ok", start)
	observability.ModerationVerdicts.WithLabelValues(label).Inc()
	span.AddAttributes(attribute.Bool("post.is_toxic", result.IsToxic))

	cache.InvalidatePost(ctx, postID)
	s.notifier.PublishAsync(ctx, notifications.EventPostClassified, postID, result)
	return result, nil
}

// classifyInBackground schedules ClassifyPost detached from the request.
// Failures are logged and counted, never reported to the author.
func (s *PostService) classifyInBackground(ctx context.Context, postID uint) {
	if s.classifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer func() {
			if r := recover(); r != nil {
				middleware.Logger.ErrorContext(ctx, "panic in background classification", slog.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, s.opts.ClassifyTimeout)
		defer cancel()
		if err := s.slots.Acquire(ctx, 1); err != nil {
			middleware.Logger.WarnContext(ctx, "background classification skipped",
				slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
			return
		}
		defer s.slots.Release(1)

		if _, err := s.ClassifyPost(ctx, postID); err != nil {
			middleware.Logger.WarnContext(ctx, "background classification failed",
				slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until scheduled background work has finished.
func (s *PostService) Wait() {
	s.background.Wait()
}

// Summarize asks the model for a short summary of a post. Nothing is stored.
func (s *PostService) Summarize(ctx context.Context, postID uint) (string, error) {
	if s.summarizer == nil {
		return "", models.NewUpstreamError("Summarizer is not configured", nil)
	}
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return "", err
	}
	text := post.Title
	if post.Content != "" {
		text += "\n\n" + post.Content
	}
	summary, err := s.summarizer.Summarize(ctx, text)
	if err != nil {
		return "", models.NewUpstreamError("Summary failed", err)
	}
	return summary, nil
}

// RecountPost rebuilds a post's counters and its comments' vote counters from
// the ledger.
func (s *PostService) RecountPost(ctx context.Context, postID uint) (*RecountReport, error) {
	report := &RecountReport{PostID: postID}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		post, err := tx.Posts().GetByID(ctx, postID)
		if err != nil {
			return err
		}

		tallies, err := tx.Votes().Tally(ctx, models.TargetPost, []uint{postID})
		if err != nil {
			return err
		}
		comments, err := tx.Comments().CountByPost(ctx, postID)
		if err != nil {
			return err
		}
		t := tallies[postID]
		report.UpvoteDrift = post.UpvoteCount - t.Up
		report.DownvoteDrift = post.DownvoteCount - t.Down
		report.CommentDrift = post.CommentCount - int(comments)
		if report.UpvoteDrift != 0 || report.DownvoteDrift != 0 || report.CommentDrift != 0 {
			if err := tx.Posts().SetCounters(ctx, postID, t.Up, t.Down, int(comments)); err != nil {
				return err
			}
		}

		ids, err := tx.Comments().IDsByPost(ctx, postID)
		if err != nil {
			return err
		}
		rows, err := tx.Comments().ListByIDs(ctx, ids)
		if err != nil {
			return err
		}
		commentTallies, err := tx.Votes().Tally(ctx, models.TargetComment, ids)
		if err != nil {
			return err
		}
		for _, c := range rows {
			ct := commentTallies[c.ID]
			if c.UpvoteCount == ct.Up && c.DownvoteCount == ct.Down {
				continue
			}
			if err := tx.Comments().SetVoteCounters(ctx, c.ID, ct.Up, ct.Down); err != nil {
				return err
			}
			report.CommentsCorrected++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report.Drifted() {
		observability.CounterDrift.WithLabelValues("upvote").Add(float64(abs(report.UpvoteDrift)))
		observability.CounterDrift.WithLabelValues("downvote").Add(float64(abs(report.DownvoteDrift)))
		observability.CounterDrift.WithLabelValues("comment").Add(float64(abs(report.CommentDrift)))
		observability.CounterDrift.WithLabelValues("comment_votes").Add(float64(report.CommentsCorrected))
		middleware.Logger.WarnContext(ctx, "counter drift corrected",
			slog.Uint64("post_id", uint64(postID)),
			slog.Int("upvote_drift", report.UpvoteDrift),
			slog.Int("downvote_drift", report.DownvoteDrift),
			slog.Int("comment_drift", report.CommentDrift),
			slog.Int("comments_corrected", report.CommentsCorrected))
		cache.InvalidatePost(ctx, postID)
	}
	return report, nil
}

// RecountAll runs RecountPost over every post, one transaction per post.
func (s *PostService) RecountAll(ctx context.Context) (*RecountSummary, error) {
	ids, err := s.store.Posts().AllIDs(ctx)
	if err != nil {
		return nil, err
	}
	summary := &RecountSummary{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		report, err := s.RecountPost(ctx, id)
		if err != nil {
			return summary, fmt.Errorf("recount post %d: %w", id, err)
		}
		summary.PostsChecked++
		if report.Drifted() {
			summary.PostsCorrected++
		}
		summary.CommentsCorrected += report.CommentsCorrected
	}
	return summary, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
