package service

import (
	"context"
	"errors"

	"github.com/kurantoB/TwitterClone-sub000/internal/domain"
)

var (
	ErrNotFound            = errors.New("account not found")
	ErrSelfReference       = errors.New("source and target must be different accounts")
	ErrBlocked             = errors.New("a block exists between these accounts")
	ErrConcurrencyConflict = errors.New("concurrent modification conflict")
	ErrTryAgain            = errors.New("too much contention, try again")
	ErrInvalidPagination   = errors.New("offset must be >= 0 and amount >= 1")
	ErrUnknownRelationship = errors.New("unknown relationship")
	ErrTargetRequired      = errors.New("relationship requires a target account")
)

// FollowCoordinator is the only writer of follow edges, blocks and counters.
// Every operation is idempotent in its end state.
type FollowCoordinator interface {
	Follow(ctx context.Context, sourceID, targetID string) error
	Unfollow(ctx context.Context, sourceID, targetID string) error
	Block(ctx context.Context, sourceID, targetID string) error
	Unblock(ctx context.Context, sourceID, targetID string) error
}

// RelationshipQueryEngine answers read-only questions about the graph.
type RelationshipQueryEngine interface {
	// Query lists the accounts in relationship rel. targetID is ignored for
	// single-account relationships.
	Query(ctx context.Context, rel domain.Relationship, viewerID, targetID string, page domain.Page) ([]domain.Account, error)
	Counters(ctx context.Context, userID string) (*domain.Counters, error)
	Status(ctx context.Context, viewerID, otherID string) (*domain.RelationStatus, error)
	ListBlocked(ctx context.Context, viewerID string, page domain.Page) ([]domain.Account, error)
	// NormalizePage fills in the default amount and clamps it to the maximum.
	NormalizePage(offset, amount int) (domain.Page, error)
}

// CounterTracker records which accounts need counter reconciliation.
type CounterTracker interface {
	MarkDirty(ctx context.Context, userIDs ...string) error
	RecordAccess(ctx context.Context, userID string) error
}
