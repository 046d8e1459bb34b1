package worker

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/listhub/listing-backend/pkg/types"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

// EmbedListingActivityParam defines the parameters for the EmbedListingActivity
type EmbedListingActivityParam struct {
	ListingUID types.ListingUIDType // Listing unique identifier
}

// EmbedListingActivityResult reports whether an embedding was stored.
type EmbedListingActivityResult struct {
	Embedded bool
}

// EmbedListingActivity recomputes the listing embedding from its current text
// and stores it in the relational and vector databases. The listing is
// re-read here rather than passed in so that retries always embed the latest
// text, including suggestions applied earlier in the run.
func (w *Worker) EmbedListingActivity(ctx context.Context, param *EmbedListingActivityParam) (*EmbedListingActivityResult, error) {
	w.log.Info("Embedding listing", zap.String("listingUID", param.ListingUID.String()))

	listing, err := w.repository.GetListingByUID(ctx, param.ListingUID)
	if err != nil {
		if errors.Is(err, errorsx.ErrNotFound) {
			err = errorsx.AddMessage(err, "Listing not found. It may have been deleted.")
			return nil, temporal.NewNonRetryableApplicationError(
				errorsx.MessageOrErr(err),
				embedListingActivityError,
				err,
			)
		}
		err = errorsx.AddMessage(err, "Unable to retrieve the listing. Please try again.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			embedListingActivityError,
			err,
		)
	}

	embedded, err := w.embedder.RefreshListingEmbedding(ctx, listing)
	if err != nil {
		err = errorsx.AddMessage(err, "Unable to index the listing for similarity search. Please try again.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			embedListingActivityError,
			err,
		)
	}

	return &EmbedListingActivityResult{Embedded: embedded}, nil
}

const embedListingActivityError = "EmbedListingActivity"
