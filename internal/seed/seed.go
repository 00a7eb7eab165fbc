package seed

import (
	"context"
	"fmt"
	"log/slog"

	"opinara/internal/middleware"
	"opinara/internal/models"
	"opinara/internal/ranking"
	"opinara/internal/repository"
	"opinara/internal/service"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

// Options configuration for the seeder
type Options struct {
	NumUsers         int
	NumWaves         int
	NumPosts         int
	MaxComments      int
	MaxVotes         int
	MaxDays          int
	Seed             int64
	ShouldClean      bool
	FastPasswordCost bool
}

// Report counts what a run created.
type Report struct {
	Users    int
	Waves    int
	Posts    int
	Comments int
	Votes    int
}

// Seeder drives the regular services so every counter stays consistent with
// the rows it summarizes.
type Seeder struct {
	db       *gorm.DB
	opts     Options
	factory  *Factory
	users    *service.UserService
	waves    *service.WaveService
	posts    *service.PostService
	comments *service.CommentService
	votes    *service.VoteService
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	store := repository.NewStore(db)
	cost := bcrypt.DefaultCost
	if opts.FastPasswordCost {
		cost = bcrypt.MinCost
	}
	return &Seeder{
		db:       db,
		opts:     opts,
		factory:  NewFactory(opts.Seed, opts.MaxDays),
		users:    service.NewUserService(store, cost),
		waves:    service.NewWaveService(store, ranking.ModeHot),
		posts:    service.NewPostService(store, nil, nil, nil, service.PostServiceOptions{}),
		comments: service.NewCommentService(store, nil, ranking.ModeHot),
		votes:    service.NewVoteService(store, nil),
	}
}

// Seed populates the database with demo data
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Report, error) {
	return NewSeeder(db, opts).Run(ctx)
}

// Run creates users, waves, posts, comment threads and votes.
func (s *Seeder) Run(ctx context.Context) (*Report, error) {
	middleware.Logger.InfoContext(ctx, "starting database seeding",
		slog.Int("users", s.opts.NumUsers), slog.Int("waves", s.opts.NumWaves), slog.Int("posts", s.opts.NumPosts))

	if s.opts.ShouldClean {
		if err := Clean(ctx, s.db); err != nil {
			return nil, fmt.Errorf("clean: %w", err)
		}
	}

	report := &Report{}
	users, err := s.createUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	report.Users = len(users)
	if len(users) == 0 {
		return report, nil
	}

	waves, err := s.createWaves(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("failed to create waves: %w", err)
	}
	report.Waves = len(waves)

	for i := 0; i < s.opts.NumPosts; i++ {
		author := users[s.factory.Intn(len(users))]
		var waveID *uint
		if len(waves) > 0 {
			waveID = &waves[s.factory.Intn(len(waves))].ID
		}
		post, err := s.posts.CreatePost(ctx, s.factory.Post(author.ID, waveID))
		if err != nil {
			return nil, fmt.Errorf("failed to create post: %w", err)
		}
		createdAt := s.factory.CreatedAt()
		if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("created_at", createdAt).Error; err != nil {
			return nil, err
		}
		report.Posts++

		comments, err := s.createThread(ctx, post.ID, users)
		if err != nil {
			return nil, err
		}
		report.Comments += len(comments)

		votes, err := s.castVotes(ctx, models.TargetPost, post.ID, users)
		if err != nil {
			return nil, err
		}
		report.Votes += votes
		for _, c := range comments {
			n, err := s.castVotes(ctx, models.TargetComment, c.ID, users)
			if err != nil {
				return nil, err
			}
			report.Votes += n
		}
	}

	middleware.Logger.InfoContext(ctx, "database seeding completed",
		slog.Int("users", report.Users), slog.Int("waves", report.Waves), slog.Int("posts", report.Posts),
		slog.Int("comments", report.Comments), slog.Int("votes", report.Votes))
	return report, nil
}

func (s *Seeder) createUsers(ctx context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.NumUsers)
	for i := 0; i < s.opts.NumUsers; i++ {
		user, err := s.users.Signup(ctx, s.factory.Signup(i, DemoPassword))
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) createWaves(ctx context.Context, users []*models.User) ([]*models.Wave, error) {
	waves := make([]*models.Wave, 0, s.opts.NumWaves)
	for i := 0; i < s.opts.NumWaves; i++ {
		owner := users[s.factory.Intn(len(users))]
		wave, err := s.waves.CreateWave(ctx, s.factory.Wave(i, owner.ID))
		if err != nil {
			return nil, err
		}
		waves = append(waves, wave)
	}
	return waves, nil
}

// createThread adds up to MaxComments comments to a post. Each comment
// replies to an earlier one about half the time.
func (s *Seeder) createThread(ctx context.Context, postID uint, users []*models.User) ([]*models.Comment, error) {
	n := s.factory.Intn(s.opts.MaxComments + 1)
	comments := make([]*models.Comment, 0, n)
	for i := 0; i < n; i++ {
		in := service.CreateCommentInput{
			UserID: users[s.factory.Intn(len(users))].ID,
			PostID: postID,
			Text:   s.factory.CommentText(),
		}
		if len(comments) > 0 && s.factory.Intn(2) == 0 {
			parent := comments[s.factory.Intn(len(comments))]
			in.ParentCommentID = &parent.ID
		}
		c, err := s.comments.CreateComment(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to create comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// castVotes has up to MaxVotes distinct users vote once on the target.
func (s *Seeder) castVotes(ctx context.Context, targetType models.TargetType, targetID uint, users []*models.User) (int, error) {
	n := s.factory.Intn(min(s.opts.MaxVotes, len(users)) + 1)
	start := s.factory.Intn(len(users))
	for i := 0; i < n; i++ {
		voter := users[(start+i)%len(users)]
		if _, err := s.votes.CastVote(ctx, service.CastVoteInput{
			UserID:     voter.ID,
			TargetID:   targetID,
			TargetType: targetType,
			Action:     s.factory.VoteAction(),
		}); err != nil {
			return 0, fmt.Errorf("failed to cast vote: %w", err)
		}
	}
	return n, nil
}

// Clean removes all domain rows, children first.
func Clean(ctx context.Context, db *gorm.DB) error {
	middleware.Logger.InfoContext(ctx, "clearing existing data")
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.Vote{}, &models.Comment{}, &models.PostMedia{}, &models.Post{}, &models.Wave{}, &models.User{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
