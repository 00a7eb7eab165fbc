package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"opinara/internal/models"
	"opinara/internal/repository"
	"opinara/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCounterDelta(t *testing.T) {
	t.Parallel()
	up, down := models.VoteUp, models.VoteDown
	tests := []struct {
		name      string
		old, next *models.VoteType
		want      CounterDelta
	}{
		{"none to upvote", nil, &up, CounterDelta{Up: 1}},
		{"none to downvote", nil, &down, CounterDelta{Down: 1}},
		{"remove upvote", &up, nil, CounterDelta{Up: -1}},
		{"remove downvote", &down, nil, CounterDelta{Down: -1}},
		{"down to up", &down, &up, CounterDelta{Up: 1, Down: -1}},
		{"up to down", &up, &down, CounterDelta{Up: -1, Down: 1}},
		{"same", &up, &up, CounterDelta{}},
		{"nothing", nil, nil, CounterDelta{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeCounterDelta(tt.old, tt.next))
		})
	}
}

func TestCastVote_ThreeWayToggle(t *testing.T) {
	t.Parallel()
	db, store := newTestStore(t)
	svc := NewVoteService(store, nil)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	voter := testutil.CreateUser(t, db, "voter")
	post := testutil.CreatePost(t, db, author.ID, nil, "hello")

	cast := func(action models.VoteType) *VoteResult {
		t.Helper()
		res, err := svc.CastVote(ctx, CastVoteInput{UserID: voter.ID, TargetID: post.ID, TargetType: models.TargetPost, Action: action})
		require.NoError(t, err)
		return res
	}

	res := cast(models.VoteUp)
	assert.Equal(t, VoteCreated, res.Outcome)
	require.NotNil(t, res.Vote)
	assert.Equal(t, models.VoteUp, res.Vote.Type)
	assert.Equal(t, 1, res.UpvoteCount)
	assert.Equal(t, 0, res.DownvoteCount)

	res = cast(models.VoteDown)
	assert.Equal(t, VoteSwitched, res.Outcome)
	assert.Equal(t, models.VoteDown, res.Vote.Type)
	assert.Equal(t, 0, res.UpvoteCount)
	assert.Equal(t, 1, res.DownvoteCount)

	res = cast(models.VoteDown)
	assert.Equal(t, VoteRemoved, res.Outcome)
	assert.Nil(t, res.Vote)
	assert.Equal(t, 0, res.UpvoteCount)
	assert.Equal(t, 0, res.DownvoteCount)

	var rows int64
	require.NoError(t, db.Model(&models.Vote{}).Where("user_id = ?", voter.ID).Count(&rows).Error)
	assert.Zero(t, rows)

	// Toggle idempotence leaves karma where it started.
	assert.Equal(t, 0, testutil.Reload[models.User](t, db, author.ID).Karma)

	cast(models.VoteUp)
	assert.Equal(t, 1, testutil.Reload[models.User](t, db, author.ID).Karma)
}

func TestCastVote_CommentTarget(t *testing.T) {
	t.Parallel()
	db, store := newTestStore(t)
	svc := NewVoteService(store, nil)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	post := testutil.CreatePost(t, db, author.ID, nil, "post")
	comment := testutil.CreateComment(t, db, post.ID, author.ID, nil, "first")

	for i := 0; i < 3; i++ {
		voter := testutil.CreateUser(t, db, fmt.Sprintf("voter%d", i))
		action := models.VoteUp
		if i == 2 {
			action = models.VoteDown
		}
		_, err := svc.CastVote(ctx, CastVoteInput{UserID: voter.ID, TargetID: comment.ID, TargetType: models.TargetComment, Action: action})
		require.NoError(t, err)
	}

	got := testutil.Reload[models.Comment](t, db, comment.ID)
	assert.Equal(t, 2, got.UpvoteCount)
	assert.Equal(t, 1, got.DownvoteCount)
	assert.Equal(t, 1, testutil.Reload[models.User](t, db, author.ID).Karma)

	// Comment votes never touch the post's counters.
	p := testutil.Reload[models.Post](t, db, post.ID)
	assert.Zero(t, p.UpvoteCount)
	assert.Zero(t, p.DownvoteCount)
}

func TestCastVote_Rejections(t *testing.T) {
	t.Parallel()
	db, store := newTestStore(t)
	svc := NewVoteService(store, nil)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "user")
	live := testutil.CreatePost(t, db, user.ID, nil, "live")
	deleted := testutil.CreatePost(t, db, user.ID, nil, "deleted")
	require.NoError(t, db.Model(deleted).Update("is_deleted", true).Error)
	orphaned := testutil.CreatePost(t, db, user.ID, nil, "orphaned")
	require.NoError(t, db.Model(orphaned).Update("is_orphaned", true).Error)
	deletedComment := testutil.CreateComment(t, db, live.ID, user.ID, nil, "gone")
	require.NoError(t, db.Model(deletedComment).Update("is_deleted", true).Error)
	commentOnOrphan := testutil.CreateComment(t, db, orphaned.ID, user.ID, nil, "stranded")

	tests := []struct {
		name string
		in   CastVoteInput
		code string
	}{
		{"bad action", CastVoteInput{TargetID: live.ID, TargetType: models.TargetPost, Action: "sideways"}, models.ErrCodeValidation},
		{"bad target type", CastVoteInput{TargetID: live.ID, TargetType: "Wave", Action: models.VoteUp}, models.ErrCodeValidation},
		{"missing post", CastVoteInput{TargetID: 9999, TargetType: models.TargetPost, Action: models.VoteUp}, models.ErrCodeNotFound},
		{"missing comment", CastVoteInput{TargetID: 9999, TargetType: models.TargetComment, Action: models.VoteUp}, models.ErrCodeNotFound},
		{"deleted post", CastVoteInput{TargetID: deleted.ID, TargetType: models.TargetPost, Action: models.VoteUp}, models.ErrCodeForbidden},
		{"orphaned post", CastVoteInput{TargetID: orphaned.ID, TargetType: models.TargetPost, Action: models.VoteUp}, models.ErrCodeForbidden},
		{"deleted comment", CastVoteInput{TargetID: deletedComment.ID, TargetType: models.TargetComment, Action: models.VoteUp}, models.ErrCodeForbidden},
		{"comment on orphaned post", CastVoteInput{TargetID: commentOnOrphan.ID, TargetType: models.TargetComment, Action: models.VoteUp}, models.ErrCodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.UserID = user.ID
			_, err := svc.CastVote(ctx, tt.in)
			assertAppError(t, err, tt.code)
		})
	}

	var votes int64
	require.NoError(t, db.Model(&models.Vote{}).Count(&votes).Error)
	assert.Zero(t, votes)
}

func TestCastVote_ConcurrentVotersKeepCountersConsistent(t *testing.T) {
	t.Parallel()
	db, store := newTestStore(t)
	svc := NewVoteService(store, nil)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	post := testutil.CreatePost(t, db, author.ID, nil, "popular")

	const voters = 24
	users := make([]uint, voters)
	for i := range users {
		users[i] = testutil.CreateUser(t, db, fmt.Sprintf("v%d", i)).ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, voters*2)
	for i, uid := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			action := models.VoteUp
			if i%3 == 0 {
				action = models.VoteDown
			}
			_, err := svc.CastVote(ctx, CastVoteInput{UserID: uid, TargetID: post.ID, TargetType: models.TargetPost, Action: action})
			errs <- err
			if i%4 == 0 {
				// Same action again un-votes.
				_, err = svc.CastVote(ctx, CastVoteInput{UserID: uid, TargetID: post.ID, TargetType: models.TargetPost, Action: action})
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got := testutil.Reload[models.Post](t, db, post.ID)
	assert.Equal(t, int(countVotes(t, db, models.TargetPost, post.ID, models.VoteUp)), got.UpvoteCount)
	assert.Equal(t, int(countVotes(t, db, models.TargetPost, post.ID, models.VoteDown)), got.DownvoteCount)
	assert.Equal(t, got.NetVotes(), testutil.Reload[models.User](t, db, author.ID).Karma)
}

// blindVoteStore hides existing votes from the ledger lookup, reproducing two
// requests that both saw "no vote yet".
type blindVoteStore struct {
	repository.Store
}

type blindVotes struct {
	repository.VoteRepository
}

func (blindVotes) Find(context.Context, uint, models.TargetType, uint) (*models.Vote, error) {
	return nil, nil
}

func (s blindVoteStore) Votes() repository.VoteRepository {
	return blindVotes{s.Store.Votes()}
}

func (s blindVoteStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(blindVoteStore{tx})
	})
}

func TestCastVote_DuplicateInsertIsConflictAndRollsBack(t *testing.T) {
	t.Parallel()
	db, store := newTestStore(t)
	svc := NewVoteService(blindVoteStore{store}, nil)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	voter := testutil.CreateUser(t, db, "voter")
	post := testutil.CreatePost(t, db, author.ID, nil, "race")
	in := CastVoteInput{UserID: voter.ID, TargetID: post.ID, TargetType: models.TargetPost, Action: models.VoteUp}

	_, err := svc.CastVote(ctx, in)
	require.NoError(t, err)

	_, err = svc.CastVote(ctx, in)
	assertAppError(t, err, models.ErrCodeConflict)

	got := testutil.Reload[models.Post](t, db, post.ID)
	assert.Equal(t, 1, got.UpvoteCount)
	assert.Equal(t, int64(1), countVotes(t, db, models.TargetPost, post.ID, models.VoteUp))
	assert.Equal(t, 1, testutil.Reload[models.User](t, db, author.ID).Karma)
}

// staleVoteStore serves a ledger lookup captured before a concurrent request
// committed, like the second click of a double click.
type staleVoteStore struct {
	repository.Store
	seen *models.Vote
}

type staleVotes struct {
	repository.VoteRepository
	seen *models.Vote
}

func (v staleVotes) Find(context.Context, uint, models.TargetType, uint) (*models.Vote, error) {
	cp := *v.seen
	return &cp, nil
}

func (s staleVoteStore) Votes() repository.VoteRepository {
	return staleVotes{s.Store.Votes(), s.seen}
}

func (s staleVoteStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(staleVoteStore{tx, s.seen})
	})
}

func TestCastVote_StaleLedgerReadIsConflict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		// second is what a concurrent request did after the stale read.
		second models.VoteType
		// retry is what the stale request sends.
		retry    models.VoteType
		wantUp   int
		wantDown int
	}{
		{name: "double unvote", second: models.VoteUp, retry: models.VoteUp, wantUp: 0, wantDown: 0},
		{name: "switch after unvote", second: models.VoteUp, retry: models.VoteDown, wantUp: 0, wantDown: 0},
		{name: "double switch", second: models.VoteDown, retry: models.VoteDown, wantUp: 0, wantDown: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db, store := newTestStore(t)
			svc := NewVoteService(store, nil)
			ctx := context.Background()

			author := testutil.CreateUser(t, db, "author")
			voter := testutil.CreateUser(t, db, "voter")
			post := testutil.CreatePost(t, db, author.ID, nil, "stale")
			in := CastVoteInput{UserID: voter.ID, TargetID: post.ID, TargetType: models.TargetPost, Action: models.VoteUp}

			first, err := svc.CastVote(ctx, in)
			require.NoError(t, err)
			seen := *first.Vote

			in.Action = tt.second
			_, err = svc.CastVote(ctx, in)
			require.NoError(t, err)

			stale := NewVoteService(staleVoteStore{store, &seen}, nil)
			in.Action = tt.retry
			_, err = stale.CastVote(ctx, in)
			assertAppError(t, err, models.ErrCodeConflict)

			got := testutil.Reload[models.Post](t, db, post.ID)
			assert.Equal(t, tt.wantUp, got.UpvoteCount)
			assert.Equal(t, tt.wantDown, got.DownvoteCount)
			assert.Equal(t, int64(tt.wantUp), countVotes(t, db, models.TargetPost, post.ID, models.VoteUp))
			assert.Equal(t, int64(tt.wantDown), countVotes(t, db, models.TargetPost, post.ID, models.VoteDown))
			assert.Equal(t, tt.wantUp-tt.wantDown, testutil.Reload[models.User](t, db, author.ID).Karma)
		})
	}
}
