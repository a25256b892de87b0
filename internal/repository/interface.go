package repository

import (
	"context"
	"errors"

	"github.com/kurantoB/TwitterClone-sub000/internal/domain"
)

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrSerialization marks a transaction the database aborted because of a
	// concurrent writer. The whole unit of work may be retried.
	ErrSerialization = errors.New("serialization failure")
)

// GraphTx is the unit of work handed to GraphStore.Transact. All calls run
// on the same serializable transaction.
type GraphTx interface {
	BlockTx

	// LockUsers locks the rows of ids (in id order) for the rest of the
	// transaction. It fails with ErrUserNotFound if any id is missing.
	LockUsers(ids ...string) error

	FollowExists(followerID, followingID string) (bool, error)
	InsertFollow(followerID, followingID string) error
	// DeleteFollow reports whether an edge was removed.
	DeleteFollow(followerID, followingID string) (bool, error)

	// RecomputeCounters rewrites follower, following and mutual counts of
	// ids from the follows table.
	RecomputeCounters(ids ...string) error
}

// BlockTx is the transactional half of the block registry.
type BlockTx interface {
	BlockExists(blockerID, blockedID string) (bool, error)
	// BlockedEither reports a block from a to b or from b to a.
	BlockedEither(a, b string) (bool, error)
	InsertBlock(blockerID, blockedID string) error
	// DeleteBlock reports whether a block was removed.
	DeleteBlock(blockerID, blockedID string) (bool, error)
}

// GraphStore persists accounts, follow edges and counters.
type GraphStore interface {
	// Transact runs fn in one serializable transaction. Errors returned by
	// fn are passed through; driver conflicts are reported as ErrSerialization.
	Transact(ctx context.Context, fn func(tx GraphTx) error) error

	// CountUsers returns how many of ids exist.
	CountUsers(ctx context.Context, ids ...string) (int, error)
	GetCounters(ctx context.Context, userID string) (*domain.Counters, error)
	RelationStatus(ctx context.Context, viewerID, otherID string) (*domain.RelationStatus, error)
	// ListRelationship returns the accounts matching expr, excluding the
	// endpoints, ordered by creation time then id.
	ListRelationship(ctx context.Context, expr domain.Expr, ends domain.Endpoints, page domain.Page) ([]domain.Account, error)
	// RecomputeCounters repairs counters outside of any user request.
	RecomputeCounters(ctx context.Context, ids ...string) error
}

// BlockRegistry lists blocks outside of a write transaction. Writes go
// through BlockTx.
type BlockRegistry interface {
	ListBlocked(ctx context.Context, blockerID string, page domain.Page) ([]domain.Account, error)
}
