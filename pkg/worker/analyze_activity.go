package worker

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/listhub/listing-backend/pkg/ai"
	"github.com/listhub/listing-backend/pkg/types"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

// AnalyzeListingActivityParam defines the parameters for the AnalyzeListingActivity
type AnalyzeListingActivityParam struct {
	ListingUID types.ListingUIDType // Listing unique identifier
}

// AnalyzeListingActivityResult carries the generated listing content.
type AnalyzeListingActivityResult struct {
	Title       string
	Description string
}

// AnalyzeListingActivity feeds the listing's first image to the vision model
// and returns a suggested title and description.
func (w *Worker) AnalyzeListingActivity(ctx context.Context, param *AnalyzeListingActivityParam) (*AnalyzeListingActivityResult, error) {
	w.log.Info("Analyzing listing image", zap.String("listingUID", param.ListingUID.String()))

	image, err := w.repository.GetFirstImage(ctx, param.ListingUID)
	if err != nil {
		if errors.Is(err, errorsx.ErrNoImage) {
			// No image is a permanent condition for this run. Retrying won't
			// make one appear.
			return nil, temporal.NewNonRetryableApplicationError(
				errorsx.MessageOrErr(err),
				analyzeListingActivityError,
				err,
			)
		}
		err = errorsx.AddMessage(err, "Unable to load the listing image. Please try again.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			analyzeListingActivityError,
			err,
		)
	}

	content, contentType, err := w.objectStore.GetObject(ctx, image.ObjectPath)
	if err != nil {
		err = errorsx.AddMessage(err, "Unable to load the listing image. Please try again.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			analyzeListingActivityError,
			err,
		)
	}
	if image.ContentType != "" {
		contentType = image.ContentType
	}

	var suggestion *ai.ListingSuggestion
	suggestion, err = w.analyzer.AnalyzeListingImage(ctx, content, contentType)
	if err != nil {
		err = errorsx.AddMessage(err, "The image analysis failed. Please try again.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			analyzeListingActivityError,
			err,
		)
	}

	w.log.Info("Listing image analyzed",
		zap.String("listingUID", param.ListingUID.String()),
		zap.String("title", suggestion.Title))

	return &AnalyzeListingActivityResult{
		Title:       suggestion.Title,
		Description: suggestion.Description,
	}, nil
}

const analyzeListingActivityError = "AnalyzeListingActivity"
