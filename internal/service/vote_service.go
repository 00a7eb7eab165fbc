package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"opinara/internal/cache"
	"opinara/internal/middleware"
	"opinara/internal/models"
	"opinara/internal/notifications"
	"opinara/internal/observability"
	"opinara/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// VoteOutcome describes what a cast did to the ledger.
type VoteOutcome string

const (
	VoteCreated  VoteOutcome = "created"
	VoteRemoved  VoteOutcome = "removed"
	VoteSwitched VoteOutcome = "switched"
)

// CounterDelta is the change a vote transition makes to a target's counters.
type CounterDelta struct {
	Up   int
	Down int
}

// Net is the change in upvotes minus downvotes.
func (d CounterDelta) Net() int {
	return d.Up - d.Down
}

// ComputeCounterDelta maps a transition from old to next (nil meaning no vote)
// onto counter increments.
func ComputeCounterDelta(old, next *models.VoteType) CounterDelta {
	var d CounterDelta
	if old != nil {
		switch *old {
		case models.VoteUp:
			d.Up--
		case models.VoteDown:
			d.Down--
		}
	}
	if next != nil {
		switch *next {
		case models.VoteUp:
			d.Up++
		case models.VoteDown:
			d.Down++
		}
	}
	return d
}

type VoteService struct {
	store    repository.Store
	notifier *notifications.Notifier
}

type CastVoteInput struct {
	UserID     uint
	TargetID   uint
	TargetType models.TargetType
	Action     models.VoteType
}

// VoteResult is returned by CastVote. Vote is nil after an un-vote.
type VoteResult struct {
	Vote          *models.Vote      `json:"vote"`
	Outcome       VoteOutcome       `json:"outcome"`
	TargetType    models.TargetType `json:"targetType"`
	TargetID      uint              `json:"targetId"`
	UpvoteCount   int               `json:"upvoteCount"`
	DownvoteCount int               `json:"downvoteCount"`
}

func NewVoteService(store repository.Store, notifier *notifications.Notifier) *VoteService {
	return &VoteService{store: store, notifier: notifier}
}

// voteTarget is what CastVote needs to know about the voted content.
type voteTarget struct {
	authorID uint
	postID   uint
}

// CastVote applies the three-way toggle: no vote creates one, the same action
// removes it and the opposite action switches it. The ledger row, the target's
// counters and the author's karma change in one transaction.
func (s *VoteService) CastVote(ctx context.Context, in CastVoteInput) (*VoteResult, error) {
	if !in.Action.Valid() {
		return nil, models.NewValidationError("Vote type must be upvote or downvote")
	}
	if !in.TargetType.Valid() {
		return nil, models.NewValidationError("Target type must be Post or Comment")
	}

	span, ctx := observability.NewSpan(ctx, "vote.Cast",
		attribute.String("vote.target_type", string(in.TargetType)),
		attribute.Int("vote.target_id", int(in.TargetID)),
		attribute.String("vote.action", string(in.Action)),
	)
	defer span.End()

	var result *VoteResult
	var target voteTarget
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		target, err = loadVoteTarget(ctx, tx, in.TargetType, in.TargetID)
		if err != nil {
			return err
		}

		existing, err := tx.Votes().Find(ctx, in.UserID, in.TargetType, in.TargetID)
		if err != nil {
			return err
		}

		result = &VoteResult{TargetType: in.TargetType, TargetID: in.TargetID}
		var old, next *models.VoteType
		switch {
		case existing == nil:
			next = &in.Action
			vote := &models.Vote{UserID: in.UserID, TargetType: in.TargetType, TargetID: in.TargetID, Type: in.Action}
			if err := tx.Votes().Create(ctx, vote); err != nil {
				if repository.IsUniqueViolation(err) {
					return models.NewConflictError("Vote already recorded, retry the request", err)
				}
				return err
			}
			result.Vote, result.Outcome = vote, VoteCreated
		case existing.Type == in.Action:
			old = &existing.Type
			if err := tx.Votes().Delete(ctx, existing.ID); err != nil {
				return staleVoteError(err)
			}
			result.Outcome = VoteRemoved
		default:
			prev := existing.Type
			old, next = &prev, &in.Action
			if err := tx.Votes().UpdateType(ctx, existing.ID, prev, in.Action); err != nil {
				return staleVoteError(err)
			}
			existing.Type = in.Action
			result.Vote, result.Outcome = existing, VoteSwitched
		}

		delta := ComputeCounterDelta(old, next)
		if err := applyVoteDelta(ctx, tx, in.TargetType, in.TargetID, delta); err != nil {
			return err
		}
		if err := tx.Users().AdjustKarma(ctx, target.authorID, delta.Net()); err != nil {
			return fmt.Errorf("adjust karma: %w", err)
		}

		result.UpvoteCount, result.DownvoteCount, err = readCounters(ctx, tx, in.TargetType, in.TargetID)
		return err
	})
	if err != nil {
		span.SetError(err)
		outcome := "error"
		if models.HasCode(err, models.ErrCodeConflict) {
			observability.VoteConflicts.Inc()
			outcome = "conflict"
		}
		observability.VotesCast.WithLabelValues(string(in.TargetType), outcome).Inc()
		return nil, err
	}

	observability.VotesCast.WithLabelValues(string(in.TargetType), string(result.Outcome)).Inc()
	if in.TargetType == models.TargetPost {
		cache.InvalidatePost(ctx, in.TargetID)
	}
	s.notifier.PublishAsync(ctx, notifications.EventVoteUpdated, target.postID, result)
	middleware.Logger.DebugContext(ctx, "vote cast",
		slog.String("target_type", string(in.TargetType)),
		slog.Uint64("target_id", uint64(in.TargetID)),
		slog.String("outcome", string(result.Outcome)))
	return result, nil
}

func staleVoteError(err error) error {
	if errors.Is(err, repository.ErrVoteChanged) {
		return models.NewConflictError("Vote changed by another request, retry the request", err)
	}
	return err
}

// loadVoteTarget checks that the target exists and still accepts votes.
func loadVoteTarget(ctx context.Context, tx repository.Store, targetType models.TargetType, targetID uint) (voteTarget, error) {
	if targetType == models.TargetPost {
		post, err := tx.Posts().GetByID(ctx, targetID)
		if err != nil {
			return voteTarget{}, err
		}
		if !post.AcceptsEngagement() {
			return voteTarget{}, models.NewForbiddenError("Post no longer accepts votes")
		}
		return voteTarget{authorID: post.UserID, postID: post.ID}, nil
	}

	comment, err := tx.Comments().GetByID(ctx, targetID)
	if err != nil {
		return voteTarget{}, err
	}
	if comment.IsDeleted {
		return voteTarget{}, models.NewForbiddenError("Comment has been deleted")
	}
	post, err := tx.Posts().GetByID(ctx, comment.PostID)
	if err != nil {
		return voteTarget{}, err
	}
	if !post.AcceptsEngagement() {
		return voteTarget{}, models.NewForbiddenError("Post no longer accepts votes")
	}
	return voteTarget{authorID: comment.UserID, postID: post.ID}, nil
}

func applyVoteDelta(ctx context.Context, tx repository.Store, targetType models.TargetType, targetID uint, d CounterDelta) error {
	if targetType == models.TargetPost {
		return tx.Posts().ApplyVoteDelta(ctx, targetID, d.Up, d.Down)
	}
	return tx.Comments().ApplyVoteDelta(ctx, targetID, d.Up, d.Down)
}

func readCounters(ctx context.Context, tx repository.Store, targetType models.TargetType, targetID uint) (int, int, error) {
	if targetType == models.TargetPost {
		post, err := tx.Posts().GetByID(ctx, targetID)
		if err != nil {
			return 0, 0, err
		}
		return post.UpvoteCount, post.DownvoteCount, nil
	}
	comment, err := tx.Comments().GetByID(ctx, targetID)
	if err != nil {
		return 0, 0, err
	}
	return comment.UpvoteCount, comment.DownvoteCount, nil
}
