package reconciler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kurantoB/TwitterClone-sub000/internal/config"
	"github.com/kurantoB/TwitterClone-sub000/internal/store"
	pkglog "github.com/kurantoB/TwitterClone-sub000/pkg/log"
)

// CounterRecomputer rewrites the counters of a set of accounts from the
// edge table.
type CounterRecomputer interface {
	RecomputeCounters(ctx context.Context, ids ...string) error
}

// Reconciler periodically recomputes counters of accounts flagged dirty by
// failed writes or CDC, plus the most read accounts.
type Reconciler struct {
	store  store.CounterStore
	repo   CounterRecomputer
	cfg    config.ReconcilerConfig
	quit   chan struct{}
	doneCh chan struct{}
}

// New creates a new Reconciler.
func New(store store.CounterStore, repo CounterRecomputer, cfg config.ReconcilerConfig) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 100
	}
	if cfg.DirtyBatch <= 0 {
		cfg.DirtyBatch = 500
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Reconciler{
		store:  store,
		repo:   repo,
		cfg:    cfg,
		quit:   make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the reconciler in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the reconciler to stop and returns immediately.
// Call Done() to wait for it to exit.
func (r *Reconciler) Stop() {
	close(r.quit)
}

// Done returns a channel that is closed when the reconciler has fully stopped.
func (r *Reconciler) Done() <-chan struct{} {
	return r.doneCh
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// reconcile runs one pass and returns how many accounts were recomputed.
// Dirty marks are acknowledged only after their chunk succeeds, so a failed
// chunk or a crash mid-pass leaves them queued for the next pass.
func (r *Reconciler) reconcile(ctx context.Context) int {
	l := pkglog.L()

	entries, err := r.store.PeekDirty(ctx, int64(r.cfg.DirtyBatch))
	if err != nil {
		l.Error().Err(err).Msg("reconciler: failed to read dirty accounts")
	}
	dirty := make([]string, 0, len(entries))
	for _, e := range entries {
		dirty = append(dirty, e.UserID)
	}
	hot, err := r.store.GetTopHotKeys(ctx, int64(r.cfg.TopN))
	if err != nil {
		l.Error().Err(err).Msg("reconciler: failed to get top hot keys")
	}

	ids := merge(dirty, hot)
	if len(ids) == 0 {
		l.Debug().Msg("reconciler: nothing to reconcile")
		return 0
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	results := make(chan []string, (len(ids)+r.cfg.ChunkSize-1)/r.cfg.ChunkSize)
	for _, chunk := range chunks(ids, r.cfg.ChunkSize) {
		g.Go(func() error {
			if err := r.repo.RecomputeCounters(gctx, chunk...); err != nil {
				l.Error().Err(err).Int("count", len(chunk)).Msg("reconciler: failed to recompute counters")
				results <- chunk
			}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	failed := make(map[string]struct{})
	for chunk := range results {
		for _, id := range chunk {
			failed[id] = struct{}{}
		}
	}

	acked := make([]store.DirtyEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := failed[e.UserID]; !ok {
			acked = append(acked, e)
		}
	}
	if err := r.store.AckDirty(ctx, acked...); err != nil {
		l.Error().Err(err).Int("count", len(acked)).Msg("reconciler: failed to ack dirty accounts")
	}

	if len(hot) > 0 {
		if err := r.store.ResetHotKeyScores(ctx); err != nil {
			l.Error().Err(err).Msg("reconciler: failed to reset hot key scores")
		}
	}

	done := len(ids) - len(failed)
	l.Info().
		Int("dirty", len(dirty)).
		Int("hot", len(hot)).
		Int("recomputed", done).
		Msg("reconciler: counter reconciliation complete")
	return done
}

func merge(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok || id == "" {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func chunks(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
