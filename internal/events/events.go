package events

import (
	"context"
	"fmt"
	"time"

	"github.com/kurantoB/TwitterClone-sub000/pkg/pubsub"
)

// DefaultTopic carries every relationship change.
const DefaultTopic = "social.relationship"

// Event types.
const (
	TypeFollowed   = "social.follow"
	TypeUnfollowed = "social.unfollow"
	TypeBlocked    = "social.block"
	TypeUnblocked  = "social.unblock"
)

// RelationshipChanged is the payload of every relationship event.
type RelationshipChanged struct {
	ActorID    string    `json:"actor_id"`
	SubjectID  string    `json:"subject_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher announces committed relationship changes.
type Publisher interface {
	RelationshipChanged(ctx context.Context, eventType, actorID, subjectID string) error
}

// BusPublisher publishes relationship events on a pubsub topic keyed by the
// actor, so one actor's events keep their order.
type BusPublisher struct {
	bus   pubsub.Publisher
	topic string
	now   func() time.Time
}

// NewBusPublisher creates a publisher. An empty topic selects DefaultTopic.
func NewBusPublisher(bus pubsub.Publisher, topic string) *BusPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &BusPublisher{bus: bus, topic: topic, now: time.Now}
}

// RelationshipChanged implements Publisher.
func (p *BusPublisher) RelationshipChanged(ctx context.Context, eventType, actorID, subjectID string) error {
	evt, err := pubsub.NewEvent(eventType, actorID, RelationshipChanged{
		ActorID:    actorID,
		SubjectID:  subjectID,
		OccurredAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	return p.bus.Publish(ctx, p.topic, evt)
}

// Topic returns the destination topic.
func (p *BusPublisher) Topic() string { return p.topic }

var _ Publisher = (*BusPublisher)(nil)
