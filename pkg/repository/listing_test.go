package repository

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"

	qt "github.com/frankban/quicktest"

	"github.com/listhub/listing-backend/pkg/types"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

func newDraftListing(c *qt.C, repo Repository, name, description string) *ListingModel {
	listing, err := repo.CreateListing(context.Background(), &ListingModel{
		OwnerUID:    uuid.Must(uuid.NewV4()),
		Name:        name,
		Description: description,
		Category:    "electronics",
	})
	c.Assert(err, qt.IsNil)
	return listing
}

func TestMarkListingProcessing(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	listing := newDraftListing(c, repo, "Camera", "35mm film camera")

	err := repo.MarkListingProcessing(ctx, listing.UID, "wf-1", "run-1")
	c.Assert(err, qt.IsNil)

	got, err := repo.GetListingByUID(ctx, listing.UID)
	c.Assert(err, qt.IsNil)
	c.Check(got.ProcessingStatus, qt.Equals, types.ProcessingStatusProcessing)
	c.Assert(got.WorkflowID, qt.IsNotNil)
	c.Check(*got.WorkflowID, qt.Equals, "wf-1")
	c.Assert(got.WorkflowRunUID, qt.IsNotNil)
	c.Check(*got.WorkflowRunUID, qt.Equals, "run-1")

	// A second claim must lose the race.
	err = repo.MarkListingProcessing(ctx, listing.UID, "wf-2", "run-2")
	c.Check(err, qt.ErrorIs, errorsx.ErrAlreadyProcessing)

	// The owning workflow is untouched by the failed claim.
	got, err = repo.GetListingByUID(ctx, listing.UID)
	c.Assert(err, qt.IsNil)
	c.Check(*got.WorkflowID, qt.Equals, "wf-1")
}

func TestMarkListingProcessing_NotFound(t *testing.T) {
	c := qt.New(t)
	repo, _ := newTestRepository(t)

	err := repo.MarkListingProcessing(context.Background(), uuid.Must(uuid.NewV4()), "wf-1", "run-1")
	c.Check(err, qt.ErrorIs, errorsx.ErrNotFound)
}

func TestMarkListingProcessing_AfterTerminal(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	listing := newDraftListing(c, repo, "Camera", "35mm film camera")

	c.Assert(repo.MarkListingProcessing(ctx, listing.UID, "wf-1", "run-1"), qt.IsNil)
	c.Assert(repo.MarkListingTerminal(ctx, listing.UID, "run-1", types.ProcessingStatusFailed), qt.IsNil)

	// A terminal listing can be re-enrolled.
	c.Assert(repo.MarkListingProcessing(ctx, listing.UID, "wf-2", "run-2"), qt.IsNil)

	got, err := repo.GetListingByUID(ctx, listing.UID)
	c.Assert(err, qt.IsNil)
	c.Check(got.ProcessingStatus, qt.Equals, types.ProcessingStatusProcessing)
	c.Check(*got.WorkflowID, qt.Equals, "wf-2")
}

func TestMarkListingTerminal(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	listing := newDraftListing(c, repo, "Camera", "35mm film camera")
	c.Assert(repo.MarkListingProcessing(ctx, listing.UID, "wf-1", "run-1"), qt.IsNil)

	// Only terminal statuses are accepted.
	err := repo.MarkListingTerminal(ctx, listing.UID, "run-1", types.ProcessingStatusDraft)
	c.Check(err, qt.ErrorIs, errorsx.ErrInvalidTransition)

	// A run that lost ownership can't write the terminal status.
	err = repo.MarkListingTerminal(ctx, listing.UID, "run-0", types.ProcessingStatusCompleted)
	c.Check(err, qt.ErrorIs, errorsx.ErrInvalidTransition)

	err = repo.MarkListingTerminal(ctx, listing.UID, "run-1", types.ProcessingStatusCompleted)
	c.Assert(err, qt.IsNil)

	got, err := repo.GetListingByUID(ctx, listing.UID)
	c.Assert(err, qt.IsNil)
	c.Check(got.ProcessingStatus, qt.Equals, types.ProcessingStatusCompleted)
	c.Check(got.WorkflowID, qt.IsNil)
	c.Check(got.WorkflowRunUID, qt.IsNil)

	// The transition is one way: a second terminal write must fail.
	err = repo.MarkListingTerminal(ctx, listing.UID, "run-1", types.ProcessingStatusFailed)
	c.Check(err, qt.ErrorIs, errorsx.ErrInvalidTransition)
}

func TestMarkListingTerminal_StaleRun(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	listing := newDraftListing(c, repo, "Camera", "35mm film camera")

	// First run claims the listing, gets swept, and the listing is
	// re-enrolled. The workflow ID is deterministic per listing so the second
	// run carries the same ID, but its run token differs.
	c.Assert(repo.MarkListingProcessing(ctx, listing.UID, "wf-1", "run-1"), qt.IsNil)
	c.Assert(repo.SweepListingTerminal(ctx, listing.UID, types.ProcessingStatusFailed), qt.IsNil)
	c.Assert(repo.MarkListingProcessing(ctx, listing.UID, "wf-1", "run-2"), qt.IsNil)

	// A straggler activity of the swept run must not clobber the new run.
	err := repo.MarkListingTerminal(ctx, listing.UID, "run-1", types.ProcessingStatusFailed)
	c.Check(err, qt.ErrorIs, errorsx.ErrInvalidTransition)

	got, err := repo.GetListingByUID(ctx, listing.UID)
	c.Assert(err, qt.IsNil)
	c.Check(got.ProcessingStatus, qt.Equals, types.ProcessingStatusProcessing)
	c.Assert(got.WorkflowRunUID, qt.IsNotNil)
	c.Check(*got.WorkflowRunUID, qt.Equals, "run-2")

	// The current run still owns the listing and can complete it.
	c.Assert(repo.MarkListingTerminal(ctx, listing.UID, "run-2", types.ProcessingStatusCompleted), qt.IsNil)
}

func TestSweepListingTerminal(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	listing := newDraftListing(c, repo, "Camera", "35mm film camera")
	c.Assert(repo.MarkListingProcessing(ctx, listing.UID, "wf-1", "run-1"), qt.IsNil)

	// The sweeper doesn't hold the run token, the unguarded write succeeds.
	err := repo.SweepListingTerminal(ctx, listing.UID, types.ProcessingStatusFailed)
	c.Assert(err, qt.IsNil)

	got, err := repo.GetListingByUID(ctx, listing.UID)
	c.Assert(err, qt.IsNil)
	c.Check(got.ProcessingStatus, qt.Equals, types.ProcessingStatusFailed)
	c.Check(got.WorkflowID, qt.IsNil)
	c.Check(got.WorkflowRunUID, qt.IsNil)

	// Sweeping a listing that already reached a terminal state fails: the
	// status was written by someone else in the meantime.
	err = repo.SweepListingTerminal(ctx, listing.UID, types.ProcessingStatusCompleted)
	c.Check(err, qt.ErrorIs, errorsx.ErrInvalidTransition)
}

func TestApplyListingSuggestions(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	c.Run("fills empty fields", func(c *qt.C) {
		listing := newDraftListing(c, repo, "", "")

		err := repo.ApplyListingSuggestions(ctx, listing.UID, "Vintage Camera", "A 35mm film camera in great shape.")
		c.Assert(err, qt.IsNil)

		got, err := repo.GetListingByUID(ctx, listing.UID)
		c.Assert(err, qt.IsNil)
		c.Check(got.Name, qt.Equals, "Vintage Camera")
		c.Check(got.Description, qt.Equals, "A 35mm film camera in great shape.")
	})

	c.Run("never overwrites seller input", func(c *qt.C) {
		listing := newDraftListing(c, repo, "My camera", "")

		err := repo.ApplyListingSuggestions(ctx, listing.UID, "Vintage Camera", "A 35mm film camera in great shape.")
		c.Assert(err, qt.IsNil)

		got, err := repo.GetListingByUID(ctx, listing.UID)
		c.Assert(err, qt.IsNil)
		c.Check(got.Name, qt.Equals, "My camera")
		c.Check(got.Description, qt.Equals, "A 35mm film camera in great shape.")
	})

	c.Run("empty suggestions are a no-op", func(c *qt.C) {
		listing := newDraftListing(c, repo, "", "")

		err := repo.ApplyListingSuggestions(ctx, listing.UID, "", "")
		c.Assert(err, qt.IsNil)

		got, err := repo.GetListingByUID(ctx, listing.UID)
		c.Assert(err, qt.IsNil)
		c.Check(got.Name, qt.Equals, "")
		c.Check(got.Description, qt.Equals, "")
	})
}

func TestListStuckProcessingListings(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo, db := newTestRepository(t)

	stale := newDraftListing(c, repo, "Stale", "stuck in processing")
	fresh := newDraftListing(c, repo, "Fresh", "recently updated")
	// A listing never enrolled must not be reported as stuck.
	newDraftListing(c, repo, "Draft", "never enrolled")

	c.Assert(repo.MarkListingProcessing(ctx, stale.UID, "wf-stale", "run-stale"), qt.IsNil)
	c.Assert(repo.MarkListingProcessing(ctx, fresh.UID, "wf-fresh", "run-fresh"), qt.IsNil)

	// Age the stale listing past the cutoff.
	past := time.Now().UTC().Add(-time.Hour)
	err := db.Model(&ListingModel{}).
		Where("uid = ?", stale.UID).
		Update(ListingColumn.UpdateTime, past).Error
	c.Assert(err, qt.IsNil)

	stuck, err := repo.ListStuckProcessingListings(ctx, time.Now().UTC().Add(-time.Minute))
	c.Assert(err, qt.IsNil)
	c.Assert(stuck, qt.HasLen, 1)
	c.Check(stuck[0].UID, qt.Equals, stale.UID)
}
