// Package events publishes moderation events to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/staffhub/shared/domain"
)

type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
	Close() error
}

// NewModerationEvent builds an event envelope for a transition applied to target by actor.
func NewModerationEvent(eventType string, target, actor domain.HashedEmail) domain.ModerationEvent {
	return domain.ModerationEvent{
		Id:          uuid.NewString(),
		Type:        eventType,
		HashedEmail: target,
		Actor:       actor,
		OccurredAt:  time.Now().UTC(),
	}
}

// PublishModeration encodes ev and publishes it keyed by the target identity,
// so all events of one user land on the same partition.
func PublishModeration(ctx context.Context, p Publisher, ev domain.ModerationEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return p.Publish(ctx, ev.Type, payload, ev.HashedEmail.String())
}
