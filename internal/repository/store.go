// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Store groups the repositories that share one database handle. Inside
// WithinTx every repository obtained from the callback's Store runs on the
// same transaction.
type Store interface {
	Users() UserRepository
	Waves() WaveRepository
	Posts() PostRepository
	Comments() CommentRepository
	Votes() VoteRepository

	// WithinTx runs fn in a transaction. The transaction commits when fn
	// returns nil and rolls back on error or panic.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Users() UserRepository       { return NewUserRepository(s.db) }
func (s *gormStore) Waves() WaveRepository       { return NewWaveRepository(s.db) }
func (s *gormStore) Posts() PostRepository       { return NewPostRepository(s.db) }
func (s *gormStore) Comments() CommentRepository { return NewCommentRepository(s.db) }
func (s *gormStore) Votes() VoteRepository       { return NewVoteRepository(s.db) }

func (s *gormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// IsUniqueViolation reports whether err comes from a unique index.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
