package service

import (
	"context"

	"github.com/kurantoB/TwitterClone-sub000/internal/consumer"
	pkglog "github.com/kurantoB/TwitterClone-sub000/pkg/log"
)

// edgeTables are the changelogs counterSync reacts to. A block row never
// changes a counter itself, but a block written outside the coordinator may
// sit next to follow edges that were never cascaded away.
var edgeTables = map[string]bool{"follows": true, "blocks": true}

// counterSync implements consumer.CDCEventHandler. Edge changes seen on the
// follows and blocks changelogs mark both endpoints dirty, which covers
// writes that bypass the coordinator.
type counterSync struct {
	tracker CounterTracker
}

// NewCounterSync creates a CDC handler that feeds the reconciler.
func NewCounterSync(tracker CounterTracker) consumer.CDCEventHandler {
	return &counterSync{tracker: tracker}
}

func (s *counterSync) HandleCDCEvent(ctx context.Context, event *consumer.DebeziumMessage) error {
	l := pkglog.Ctx(ctx)
	p := event.Payload

	if p.Source.Table != "" && !edgeTables[p.Source.Table] {
		return nil
	}

	switch p.Op {
	case "r":
		// Snapshot read: counters were already derived from these rows.
		return nil
	case "c", "u", "d":
	default:
		l.Warn().Str("op", p.Op).Msg("unknown CDC op")
		return nil
	}

	ids := append(p.Before.Endpoints(), p.After.Endpoints()...)
	if len(ids) == 0 {
		l.Warn().Str("op", p.Op).Msg("CDC event has no row image")
		return nil
	}
	return s.tracker.MarkDirty(ctx, ids...)
}
