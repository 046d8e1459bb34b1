package worker

import (
	"context"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/listhub/listing-backend/pkg/notifier"
	"github.com/listhub/listing-backend/pkg/types"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

// NotifyEnrichmentActivityParam defines the parameters for the NotifyEnrichmentActivity
type NotifyEnrichmentActivityParam struct {
	ListingUID           types.ListingUIDType   // Listing unique identifier
	OwnerUID             types.OwnerUIDType     // Listing owner to notify
	Status               types.ProcessingStatus // Terminal status reached by the run
	Message              string                 // Human-readable outcome
	SuggestedTitle       string                 // Title applied by the run, if any
	SuggestedDescription string                 // Description applied by the run, if any
}

// NotifyEnrichmentActivity publishes the enrichment outcome to the listing
// owner. The workflow runs it with a single attempt and ignores failures:
// notifications are best effort and never change the outcome of a run.
func (w *Worker) NotifyEnrichmentActivity(ctx context.Context, param *NotifyEnrichmentActivityParam) error {
	w.log.Info("Notifying enrichment outcome",
		zap.String("listingUID", param.ListingUID.String()),
		zap.String("ownerUID", param.OwnerUID.String()),
		zap.String("status", param.Status.String()))

	err := w.notifier.PublishEnrichmentEvent(ctx, notifier.EnrichmentEvent{
		ListingUID:           param.ListingUID,
		OwnerUID:             param.OwnerUID,
		Status:               param.Status,
		Message:              param.Message,
		SuggestedTitle:       param.SuggestedTitle,
		SuggestedDescription: param.SuggestedDescription,
	})
	if err != nil {
		err = errorsx.AddMessage(err, "Unable to deliver the notification.")
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			notifyEnrichmentActivityError,
			err,
		)
	}

	return nil
}

const notifyEnrichmentActivityError = "NotifyEnrichmentActivity"
