package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kurantoB/TwitterClone-sub000/internal/config"
	"github.com/kurantoB/TwitterClone-sub000/internal/domain"
	"github.com/kurantoB/TwitterClone-sub000/internal/repository"
	pkglog "github.com/kurantoB/TwitterClone-sub000/pkg/log"
)

// relationshipQueryEngine implements RelationshipQueryEngine. It resolves a
// relationship name to its set expression and lets the store evaluate it.
type relationshipQueryEngine struct {
	graph   repository.GraphStore
	blocks  repository.BlockRegistry
	tracker CounterTracker
	cfg     config.GraphConfig
	tracer  trace.Tracer
}

// NewRelationshipQueryEngine creates a new RelationshipQueryEngine.
func NewRelationshipQueryEngine(graph repository.GraphStore, blocks repository.BlockRegistry, tracker CounterTracker, cfg config.GraphConfig) RelationshipQueryEngine {
	if cfg.DefaultPageSize < 1 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	return &relationshipQueryEngine{
		graph:   graph,
		blocks:  blocks,
		tracker: tracker,
		cfg:     cfg,
		tracer:  otel.Tracer(tracerName),
	}
}

// NormalizePage turns request parameters into a page. amount 0 selects the
// default size and anything above the maximum is clamped.
func (q *relationshipQueryEngine) NormalizePage(offset, amount int) (domain.Page, error) {
	if offset < 0 || amount < 0 {
		return domain.Page{}, ErrInvalidPagination
	}
	if amount == 0 {
		amount = q.cfg.DefaultPageSize
	}
	if amount > q.cfg.MaxPageSize {
		amount = q.cfg.MaxPageSize
	}
	return domain.Page{Offset: offset, Amount: amount}, nil
}

func (q *relationshipQueryEngine) Query(ctx context.Context, rel domain.Relationship, viewerID, targetID string, page domain.Page) ([]domain.Account, error) {
	ctx, span := q.tracer.Start(ctx, "RelationshipQueryEngine.Query", trace.WithAttributes(
		attribute.String(pkglog.FieldRelationship, string(rel)),
		attribute.Int("offset", page.Offset),
		attribute.Int("amount", page.Amount),
	))
	defer span.End()

	expr, ok := rel.Definition()
	if !ok {
		return nil, ErrUnknownRelationship
	}
	if page.Offset < 0 || page.Amount < 1 {
		return nil, ErrInvalidPagination
	}

	ends := domain.Endpoints{Viewer: viewerID}
	if rel.RequiresTarget() {
		if targetID == "" {
			return nil, ErrTargetRequired
		}
		if targetID == viewerID {
			return nil, ErrSelfReference
		}
		ends.Target = targetID
	}

	if err := q.requireUsers(ctx, ends.IDs()...); err != nil {
		return nil, err
	}

	accounts, err := q.graph.ListRelationship(ctx, expr, ends, page)
	if err != nil {
		span.RecordError(err)
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Str(pkglog.FieldRelationship, string(rel)).
			Str(pkglog.FieldUserID, viewerID).
			Str(pkglog.FieldTargetID, targetID).
			Msg("failed to list relationship")
		return nil, err
	}
	span.SetAttributes(attribute.Int("results", len(accounts)))
	return accounts, nil
}

// Counters returns the stored counters and counts the read toward the hot
// key ranking used by the reconciler. Only existing accounts are ranked.
func (q *relationshipQueryEngine) Counters(ctx context.Context, userID string) (*domain.Counters, error) {
	l := pkglog.Ctx(ctx)

	counters, err := q.graph.GetCounters(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		l.Error().Err(err).Str(pkglog.FieldUserID, userID).Msg("failed to get counters")
		return nil, err
	}

	if err := q.tracker.RecordAccess(ctx, userID); err != nil {
		l.Warn().Err(err).Str(pkglog.FieldUserID, userID).Msg("failed to record hot key access")
	}
	return counters, nil
}

func (q *relationshipQueryEngine) Status(ctx context.Context, viewerID, otherID string) (*domain.RelationStatus, error) {
	if viewerID == otherID {
		return nil, ErrSelfReference
	}
	if err := q.requireUsers(ctx, viewerID, otherID); err != nil {
		return nil, err
	}
	return q.graph.RelationStatus(ctx, viewerID, otherID)
}

func (q *relationshipQueryEngine) ListBlocked(ctx context.Context, viewerID string, page domain.Page) ([]domain.Account, error) {
	if page.Offset < 0 || page.Amount < 1 {
		return nil, ErrInvalidPagination
	}
	if err := q.requireUsers(ctx, viewerID); err != nil {
		return nil, err
	}
	return q.blocks.ListBlocked(ctx, viewerID, page)
}

func (q *relationshipQueryEngine) requireUsers(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if id == "" {
			return ErrNotFound
		}
	}
	n, err := q.graph.CountUsers(ctx, ids...)
	if err != nil {
		return err
	}
	if n != len(ids) {
		return ErrNotFound
	}
	return nil
}
