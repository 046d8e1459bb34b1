package worker

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/listhub/listing-backend/pkg/types"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

// This file contains status tracking activities used by EnrichListingWorkflow:
// - GetListingActivity - Retrieves the listing under enrichment
// - CompleteListingActivity - Transitions the listing to COMPLETED
// - FailListingActivity - Transitions the listing to FAILED

// GetListingActivityParam defines the parameters for the GetListingActivity
type GetListingActivityParam struct {
	ListingUID types.ListingUIDType // Listing unique identifier
}

// GetListingActivityResult carries the listing fields the workflow needs.
type GetListingActivityResult struct {
	ListingUID  types.ListingUIDType
	OwnerUID    types.OwnerUIDType
	Name        string
	Description string
	Category    string
	Status      types.ProcessingStatus
}

// GetListingActivity retrieves the listing under enrichment.
func (w *Worker) GetListingActivity(ctx context.Context, param *GetListingActivityParam) (*GetListingActivityResult, error) {
	w.log.Info("Getting listing", zap.String("listingUID", param.ListingUID.String()))

	listing, err := w.repository.GetListingByUID(ctx, param.ListingUID)
	if err != nil {
		if errors.Is(err, errorsx.ErrNotFound) {
			err = errorsx.AddMessage(err, "Listing not found. It may have been deleted.")
			// A deleted listing won't reappear, retrying is pointless.
			return nil, temporal.NewNonRetryableApplicationError(
				errorsx.MessageOrErr(err),
				getListingActivityError,
				err,
			)
		}
		err = errorsx.AddMessage(err, "Unable to retrieve the listing. Please try again.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			getListingActivityError,
			err,
		)
	}

	return &GetListingActivityResult{
		ListingUID:  listing.UID,
		OwnerUID:    listing.OwnerUID,
		Name:        listing.Name,
		Description: listing.Description,
		Category:    listing.Category,
		Status:      listing.ProcessingStatus,
	}, nil
}

// CompleteListingActivityParam defines the parameters for the CompleteListingActivity
type CompleteListingActivityParam struct {
	ListingUID types.ListingUIDType // Listing unique identifier
	RunUID     string               // Ownership token of the run
}

// CompleteListingActivity transitions the listing to COMPLETED and releases
// the workflow ownership.
func (w *Worker) CompleteListingActivity(ctx context.Context, param *CompleteListingActivityParam) error {
	w.log.Info("Completing listing enrichment",
		zap.String("listingUID", param.ListingUID.String()),
		zap.String("runUID", param.RunUID))

	err := w.repository.MarkListingTerminal(ctx, param.ListingUID, param.RunUID, types.ProcessingStatusCompleted)
	if err != nil {
		if errors.Is(err, errorsx.ErrInvalidTransition) {
			// Ownership was lost, e.g. the reconciliation job already resolved
			// this run. The listing status is someone else's to write now.
			w.log.Warn("Listing is no longer owned by this workflow, skipping completion",
				zap.String("listingUID", param.ListingUID.String()))
			return nil
		}
		err = errorsx.AddMessage(err, "Unable to update the listing status. Please try again.")
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			completeListingActivityError,
			err,
		)
	}

	return nil
}

// FailListingActivityParam defines the parameters for the FailListingActivity
type FailListingActivityParam struct {
	ListingUID types.ListingUIDType // Listing unique identifier
	RunUID     string               // Ownership token of the run
	Message    string               // Failure reason for display
}

// FailListingActivity transitions the listing to FAILED and releases the
// workflow ownership.
func (w *Worker) FailListingActivity(ctx context.Context, param *FailListingActivityParam) error {
	w.log.Info("Failing listing enrichment",
		zap.String("listingUID", param.ListingUID.String()),
		zap.String("runUID", param.RunUID),
		zap.String("message", param.Message))

	err := w.repository.MarkListingTerminal(ctx, param.ListingUID, param.RunUID, types.ProcessingStatusFailed)
	if err != nil {
		if errors.Is(err, errorsx.ErrInvalidTransition) {
			w.log.Warn("Listing is no longer owned by this workflow, skipping failure update",
				zap.String("listingUID", param.ListingUID.String()))
			return nil
		}
		if errors.Is(err, errorsx.ErrNotFound) {
			// The listing was deleted mid-run, nothing left to update.
			return nil
		}
		err = errorsx.AddMessage(err, "Unable to update the listing status. Please try again.")
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			failListingActivityError,
			err,
		)
	}

	return nil
}

// ApplySuggestionsActivityParam defines the parameters for the ApplySuggestionsActivity
type ApplySuggestionsActivityParam struct {
	ListingUID  types.ListingUIDType // Listing unique identifier
	Title       string               // Suggested listing title
	Description string               // Suggested listing description
}

// ApplySuggestionsActivity writes the AI-generated suggestions to the listing.
// Only empty fields are filled: seller-written content always wins.
func (w *Worker) ApplySuggestionsActivity(ctx context.Context, param *ApplySuggestionsActivityParam) error {
	w.log.Info("Applying listing suggestions",
		zap.String("listingUID", param.ListingUID.String()),
		zap.String("title", param.Title))

	err := w.repository.ApplyListingSuggestions(ctx, param.ListingUID, param.Title, param.Description)
	if err != nil {
		err = errorsx.AddMessage(err, "Unable to save the generated content. Please try again.")
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			applySuggestionsActivityError,
			err,
		)
	}

	return nil
}

// Activity error type constants
const (
	getListingActivityError       = "GetListingActivity"
	completeListingActivityError  = "CompleteListingActivity"
	failListingActivityError      = "FailListingActivity"
	applySuggestionsActivityError = "ApplySuggestionsActivity"
)
