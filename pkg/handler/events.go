package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/listhub/listing-backend/pkg/notifier"
)

// EventsHandler bridges the per-user notification channel to an SSE stream.
type EventsHandler struct {
	notifier notifier.Notifier
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(notifier notifier.Notifier) *EventsHandler {
	return &EventsHandler{notifier: notifier}
}

// Stream handles GET /v1/users/:id/events. Each enrichment event published
// for the user is forwarded as an SSE message until the client disconnects.
// Events published while nobody is connected are dropped, the listing status
// remains the source of truth.
func (h *EventsHandler) Stream(c *gin.Context) {
	ownerUID, ok := pathUID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	sub := h.notifier.SubscribeUserEvents(ctx, ownerUID)
	defer func() { _ = sub.Close() }()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	ch := sub.Channel()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, open := <-ch:
			if !open {
				return false
			}
			// The payload is already the JSON-encoded event.
			c.SSEvent("message", msg.Payload)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
