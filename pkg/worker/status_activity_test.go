package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/listhub/listing-backend/pkg/repository"
	"github.com/listhub/listing-backend/pkg/types"
)

func TestGetListingActivity_NotFoundIsNonRetryable(t *testing.T) {
	w, _ := newTestWorker(t)

	_, err := w.GetListingActivity(context.Background(), &GetListingActivityParam{
		ListingUID: uuid.Must(uuid.NewV4()),
	})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, "GetListingActivity", appErr.Type())
}

func TestCompleteListingActivity_LostOwnership(t *testing.T) {
	ctx := context.Background()
	w, deps := newTestWorker(t)

	listing, err := deps.repo.CreateListing(ctx, &repository.ListingModel{
		OwnerUID:    uuid.Must(uuid.NewV4()),
		Name:        "Camera",
		Description: "description",
		Category:    "electronics",
	})
	require.NoError(t, err)
	require.NoError(t, deps.repo.MarkListingProcessing(ctx, listing.UID, "wf-1", "run-1"))

	// The sweeper resolved this run in the meantime.
	require.NoError(t, deps.repo.SweepListingTerminal(ctx, listing.UID, types.ProcessingStatusFailed))

	// The late completion must not fail the activity nor clobber the status.
	err = w.CompleteListingActivity(ctx, &CompleteListingActivityParam{
		ListingUID: listing.UID,
		RunUID:     "run-1",
	})
	require.NoError(t, err)

	got, err := deps.repo.GetListingByUID(ctx, listing.UID)
	require.NoError(t, err)
	assert.Equal(t, types.ProcessingStatusFailed, got.ProcessingStatus)
}

func TestFailListingActivity_ListingDeleted(t *testing.T) {
	w, _ := newTestWorker(t)

	err := w.FailListingActivity(context.Background(), &FailListingActivityParam{
		ListingUID: uuid.Must(uuid.NewV4()),
		RunUID:     "run-1",
		Message:    "enrichment failed",
	})
	assert.NoError(t, err)
}
