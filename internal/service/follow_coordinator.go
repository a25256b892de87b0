package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kurantoB/TwitterClone-sub000/internal/audit"
	"github.com/kurantoB/TwitterClone-sub000/internal/config"
	"github.com/kurantoB/TwitterClone-sub000/internal/events"
	"github.com/kurantoB/TwitterClone-sub000/internal/repository"
	pkglog "github.com/kurantoB/TwitterClone-sub000/pkg/log"
)

const tracerName = "github.com/kurantoB/TwitterClone-sub000/internal/service"

type mutation struct {
	name      string
	eventType string
	action    string
}

var (
	opFollow   = mutation{"follow", events.TypeFollowed, audit.ActionFollow}
	opUnfollow = mutation{"unfollow", events.TypeUnfollowed, audit.ActionUnfollow}
	opBlock    = mutation{"block", events.TypeBlocked, audit.ActionBlock}
	opUnblock  = mutation{"unblock", events.TypeUnblocked, audit.ActionUnblock}
)

// followCoordinator implements FollowCoordinator.
type followCoordinator struct {
	graph     repository.GraphStore
	tracker   CounterTracker
	publisher events.Publisher
	cfg       config.GraphConfig
	tracer    trace.Tracer
}

// NewFollowCoordinator creates a new FollowCoordinator. tracker and publisher
// are best effort; their failures are logged, never returned.
func NewFollowCoordinator(graph repository.GraphStore, tracker CounterTracker, publisher events.Publisher, cfg config.GraphConfig) FollowCoordinator {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	return &followCoordinator{
		graph:     graph,
		tracker:   tracker,
		publisher: publisher,
		cfg:       cfg,
		tracer:    otel.Tracer(tracerName),
	}
}

// Follow adds the edge source -> target unless a block exists either way.
func (c *followCoordinator) Follow(ctx context.Context, sourceID, targetID string) error {
	return c.mutate(ctx, opFollow, sourceID, targetID, func(tx repository.GraphTx) (bool, error) {
		if err := tx.LockUsers(sourceID, targetID); err != nil {
			return false, err
		}
		blocked, err := tx.BlockedEither(sourceID, targetID)
		if err != nil {
			return false, err
		}
		if blocked {
			return false, ErrBlocked
		}
		return follow(tx, sourceID, targetID)
	})
}

// Unfollow removes the edge source -> target if present.
func (c *followCoordinator) Unfollow(ctx context.Context, sourceID, targetID string) error {
	return c.mutate(ctx, opUnfollow, sourceID, targetID, func(tx repository.GraphTx) (bool, error) {
		if err := tx.LockUsers(sourceID, targetID); err != nil {
			return false, err
		}
		return unfollow(tx, sourceID, targetID)
	})
}

// Block records source blocking target and removes the follow edges in
// both directions, all in one transaction.
func (c *followCoordinator) Block(ctx context.Context, sourceID, targetID string) error {
	return c.mutate(ctx, opBlock, sourceID, targetID, func(tx repository.GraphTx) (bool, error) {
		if err := tx.LockUsers(sourceID, targetID); err != nil {
			return false, err
		}

		exists, err := tx.BlockExists(sourceID, targetID)
		if err != nil {
			return false, err
		}
		if !exists {
			if err := tx.InsertBlock(sourceID, targetID); err != nil {
				return false, err
			}
		}

		outgoing, err := unfollow(tx, sourceID, targetID)
		if err != nil {
			return false, err
		}
		incoming, err := unfollow(tx, targetID, sourceID)
		if err != nil {
			return false, err
		}
		return !exists || outgoing || incoming, nil
	})
}

// Unblock removes the block only. Edges removed by Block stay removed.
func (c *followCoordinator) Unblock(ctx context.Context, sourceID, targetID string) error {
	return c.mutate(ctx, opUnblock, sourceID, targetID, func(tx repository.GraphTx) (bool, error) {
		if err := tx.LockUsers(sourceID, targetID); err != nil {
			return false, err
		}
		return tx.DeleteBlock(sourceID, targetID)
	})
}

func follow(tx repository.GraphTx, sourceID, targetID string) (bool, error) {
	exists, err := tx.FollowExists(sourceID, targetID)
	if err != nil || exists {
		return false, err
	}
	if err := tx.InsertFollow(sourceID, targetID); err != nil {
		return false, err
	}
	return true, tx.RecomputeCounters(sourceID, targetID)
}

func unfollow(tx repository.GraphTx, sourceID, targetID string) (bool, error) {
	removed, err := tx.DeleteFollow(sourceID, targetID)
	if err != nil || !removed {
		return false, err
	}
	return true, tx.RecomputeCounters(sourceID, targetID)
}

func (c *followCoordinator) mutate(ctx context.Context, m mutation, sourceID, targetID string, fn txFunc) error {
	ctx, span := c.tracer.Start(ctx, "FollowCoordinator."+m.name, trace.WithAttributes(
		attribute.String(pkglog.FieldSourceID, sourceID),
		attribute.String(pkglog.FieldTargetID, targetID),
	))
	defer span.End()

	l := pkglog.Ctx(ctx)

	if sourceID == "" || targetID == "" {
		return ErrNotFound
	}
	if sourceID == targetID {
		return ErrSelfReference
	}

	changed, err := c.runTx(ctx, m.name, fn)
	if err != nil {
		if isTerminal(err) {
			return err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.Error().Err(err).
			Str(pkglog.FieldSourceID, sourceID).
			Str(pkglog.FieldTargetID, targetID).
			Msgf("failed to %s", m.name)
		// The last attempt may or may not have committed.
		c.markDirty(ctx, sourceID, targetID)
		return err
	}

	span.SetAttributes(attribute.Bool("changed", changed))
	audit.Log(ctx, m.action, sourceID, targetID, changed)

	if changed {
		if err := c.publisher.RelationshipChanged(ctx, m.eventType, sourceID, targetID); err != nil {
			l.Warn().Err(err).Str("event_type", m.eventType).Msg("failed to publish relationship event")
		}
	}
	return nil
}

func (c *followCoordinator) markDirty(ctx context.Context, ids ...string) {
	if err := c.tracker.MarkDirty(context.WithoutCancel(ctx), ids...); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Strs("user_ids", ids).Msg("failed to mark counters dirty")
	}
}
