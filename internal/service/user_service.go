package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"opinara/internal/cache"
	"opinara/internal/models"
	"opinara/internal/repository"
	"opinara/internal/validation"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/crypto/bcrypt"
)

const maxBioLen = 100

type UserService struct {
	store        repository.Store
	passwordCost int
	policy       *bluemonday.Policy
}

type SignupInput struct {
	Email    string
	Fullname string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// NewUserService returns a UserService hashing with bcrypt at passwordCost
// (bcrypt.DefaultCost when zero).
func NewUserService(store repository.Store, passwordCost int) *UserService {
	if passwordCost == 0 {
		passwordCost = bcrypt.DefaultCost
	}
	return &UserService{store: store, passwordCost: passwordCost, policy: bluemonday.StrictPolicy()}
}

func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fullname := strings.TrimSpace(in.Fullname)
	if email == "" || fullname == "" || in.Password == "" {
		return nil, models.NewValidationError("Email, fullname and password are required")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.passwordCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{Email: email, Fullname: fullname, Password: string(hash)}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, models.NewConflictError("User already exists", err)
		}
		return nil, err
	}
	return user, nil
}

// Login verifies credentials. Unknown, deleted and wrong-password accounts
// all fail the same way.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	invalid := models.NewUnauthorizedError("Invalid email or password")
	user, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		return nil, err
	}
	if user == nil || user.IsDeleted {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, invalid
		}
		return nil, models.NewInternalError(err)
	}
	return user, nil
}

// GetUser returns a live account.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsDeleted {
		return nil, models.NewNotFoundError("User", id)
	}
	return user, nil
}

// UpdateBio replaces the profile bio with plain text of 1 to 100 characters.
func (s *UserService) UpdateBio(ctx context.Context, userID uint, bio string) (*models.User, error) {
	bio = sanitize(s.policy, bio)
	if bio == "" {
		return nil, models.NewValidationError("Bio is required")
	}
	if utf8.RuneCountInString(bio) > maxBioLen {
		return nil, models.NewValidationError("Bio too long (max 100 characters)")
	}
	if err := s.store.Users().UpdateBio(ctx, userID, bio); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

// DeleteUser removes an account with no activity outright. Otherwise the
// account, its posts, the comments on those posts and its own comments are
// soft-deleted together.
func (s *UserService) DeleteUser(ctx context.Context, id uint) (DeleteMode, error) {
	var mode DeleteMode
	var postIDs []uint
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if user.IsDeleted {
			return models.NewNotFoundError("User", id)
		}

		active, err := tx.Users().HasActivity(ctx, id)
		if err != nil {
			return err
		}
		if !active {
			mode = DeleteHard
			return tx.Users().HardDelete(ctx, id)
		}

		mode = DeleteSoft
		now := time.Now().UTC()
		if postIDs, err = tx.Posts().IDsByUser(ctx, id); err != nil {
			return err
		}
		if err := tx.Users().SoftDelete(ctx, id, now); err != nil {
			return err
		}
		if err := tx.Posts().SoftDelete(ctx, postIDs, now); err != nil {
			return err
		}
		if err := tx.Comments().SoftDeleteByPosts(ctx, postIDs, now); err != nil {
			return err
		}
		return tx.Comments().SoftDeleteByUser(ctx, id, now)
	})
	if err != nil {
		return "", err
	}
	for _, postID := range postIDs {
		cache.InvalidatePost(ctx, postID)
	}
	return mode, nil
}
