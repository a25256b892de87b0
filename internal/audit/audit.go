package audit

import (
	"context"

	"github.com/kurantoB/TwitterClone-sub000/pkg/log"
)

// Audit actions for the social graph.
const (
	ActionFollow   = "social.follow"
	ActionUnfollow = "social.unfollow"
	ActionBlock    = "social.block"
	ActionUnblock  = "social.unblock"
)

const (
	FieldAction  = "action"
	FieldChanged = "changed"
)

// Log writes an audit entry for a relationship mutation. changed is false
// when the call was a no-op.
func Log(ctx context.Context, action, actorID, targetID string, changed bool) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, actorID).
		Str(log.FieldTargetID, targetID).
		Bool(FieldChanged, changed).
		Msg(action)
}
