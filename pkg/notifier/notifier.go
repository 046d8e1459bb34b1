// Package notifier fans enrichment events out to the listing owners. Delivery
// is best effort: a missed notification never fails the pipeline, the listing
// status remains the source of truth.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/listhub/listing-backend/pkg/types"
)

// Event types published on the user channels.
const (
	EventTypeProcessingComplete = "processing_complete"
	EventTypeProcessingFailed   = "processing_failed"
)

// EnrichmentEvent is the payload published when an enrichment run reaches a
// terminal state.
type EnrichmentEvent struct {
	Type       string                 `json:"type"`
	ListingUID types.ListingUIDType   `json:"listingId"`
	OwnerUID   types.OwnerUIDType     `json:"ownerId"`
	Status     types.ProcessingStatus `json:"status"`
	// Message carries a human-readable outcome, e.g. the failure reason.
	Message string `json:"message,omitempty"`
	// Suggestions applied during the run, when any.
	SuggestedTitle       string    `json:"suggestedTitle,omitempty"`
	SuggestedDescription string    `json:"suggestedDescription,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
}

// Notifier delivers enrichment events to users.
type Notifier interface {
	PublishEnrichmentEvent(ctx context.Context, event EnrichmentEvent) error
	// SubscribeUserEvents subscribes to the event channel of a user. The
	// caller owns the returned subscription and must close it.
	SubscribeUserEvents(ctx context.Context, ownerUID types.OwnerUIDType) *redis.PubSub
}

type redisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier returns a Notifier publishing events on redis pub/sub
// channels, one channel per user.
func NewRedisNotifier(client *redis.Client) Notifier {
	return &redisNotifier{client: client}
}

// UserEventsChannel returns the pub/sub channel name for a user.
func UserEventsChannel(ownerUID types.OwnerUIDType) string {
	return "user-events:" + ownerUID.String()
}

// PublishEnrichmentEvent publishes an event on the owner's channel. When
// nobody is subscribed the event is simply dropped.
func (n *redisNotifier) PublishEnrichmentEvent(ctx context.Context, event EnrichmentEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Type == "" {
		if event.Status == types.ProcessingStatusCompleted {
			event.Type = EventTypeProcessingComplete
		} else {
			event.Type = EventTypeProcessingFailed
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding enrichment event: %w", err)
	}

	if err := n.client.Publish(ctx, UserEventsChannel(event.OwnerUID), payload).Err(); err != nil {
		return fmt.Errorf("publishing enrichment event: %w", err)
	}

	return nil
}

// SubscribeUserEvents subscribes to the event channel of a user.
func (n *redisNotifier) SubscribeUserEvents(ctx context.Context, ownerUID types.OwnerUIDType) *redis.PubSub {
	return n.client.Subscribe(ctx, UserEventsChannel(ownerUID))
}
