package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/listhub/listing-backend/pkg/logger"
	"github.com/listhub/listing-backend/pkg/repository"
	"github.com/listhub/listing-backend/pkg/types"
	"github.com/listhub/listing-backend/pkg/worker"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

// EnrichmentStatus describes the pipeline state of a listing.
type EnrichmentStatus struct {
	ListingUID  types.ListingUIDType   `json:"listing_uid"`
	Status      types.ProcessingStatus `json:"status"`
	WorkflowID  string                 `json:"workflow_id,omitempty"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	// Cancellable is true while an active workflow owns the listing.
	Cancellable bool `json:"cancellable"`
}

// EnrichmentResult is the terminal outcome of an enrichment run, keyed by its
// workflow ID.
type EnrichmentResult struct {
	WorkflowID  string                 `json:"workflow_id"`
	ListingUID  types.ListingUIDType   `json:"listing_uid"`
	Status      types.ProcessingStatus `json:"status"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Error       string                 `json:"error,omitempty"`
}

// StartEnrichment enrolls a listing into the enrichment pipeline and returns
// the workflow ID of the run. The listing is claimed with a conditional status
// update before the workflow is started, so concurrent requests for the same
// listing race on a single row update and exactly one of them wins. The owner
// identity is trusted as given; when non-nil it must match the listing owner.
func (s *service) StartEnrichment(ctx context.Context, listingUID types.ListingUIDType, ownerUID types.OwnerUIDType) (string, error) {
	log, _ := logger.GetZapLogger(ctx)
	log = log.With(zap.String("listing_uid", listingUID.String()))

	listing, err := s.repository.GetListingByUID(ctx, listingUID)
	if err != nil {
		return "", err
	}

	if ownerUID != uuid.Nil && listing.OwnerUID != ownerUID {
		return "", fmt.Errorf("listing %s does not belong to caller: %w", listingUID, errorsx.ErrUnauthorized)
	}

	// Fail fast when there is nothing to analyze. The workflow would reject
	// the listing anyway, but this way the client gets a synchronous error.
	if _, err := s.repository.GetFirstImage(ctx, listingUID); err != nil {
		return "", err
	}

	// The workflow ID is deterministic per listing; the run token is not. The
	// token is the ownership guard for terminal writes, so a stale run can
	// never clobber the state of its successor.
	workflowID := worker.EnrichListingWorkflowID(listingUID)
	runToken, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("generating run token: %w", err)
	}
	runUID := runToken.String()

	if err := s.repository.MarkListingProcessing(ctx, listingUID, workflowID, runUID); err != nil {
		return "", err
	}

	err = s.enrichTrigger.Execute(ctx, worker.EnrichListingWorkflowParam{
		ListingUID: listingUID,
		OwnerUID:   listing.OwnerUID,
		RunUID:     runUID,
	})
	if err != nil {
		// Release the claim so the listing doesn't stay stuck in PROCESSING
		// with no workflow behind it.
		if rollbackErr := s.repository.MarkListingTerminal(ctx, listingUID, runUID, types.ProcessingStatusFailed); rollbackErr != nil {
			log.Error("Failed to release listing claim after workflow start failure", zap.Error(rollbackErr))
		}
		return "", fmt.Errorf("starting enrichment workflow: %w", err)
	}

	log.Info("Enrichment workflow started", zap.String("workflow_id", workflowID))
	return workflowID, nil
}

// CancelEnrichment requests cancellation of a running enrichment. The
// workflow's cleanup transitions the listing to FAILED; until then the
// listing remains PROCESSING. Cancelling a listing that already reached a
// terminal status is a no-op.
func (s *service) CancelEnrichment(ctx context.Context, listingUID types.ListingUIDType) error {
	listing, err := s.repository.GetListingByUID(ctx, listingUID)
	if err != nil {
		return err
	}

	if listing.ProcessingStatus.IsTerminal() {
		return nil
	}
	if listing.ProcessingStatus != types.ProcessingStatusProcessing {
		return fmt.Errorf("listing %s is not being processed: %w", listingUID, errorsx.ErrInvalidTransition)
	}

	if err := s.enrichTrigger.Cancel(ctx, listingUID); err != nil {
		return fmt.Errorf("cancelling enrichment workflow: %w", err)
	}

	return nil
}

// EnrichmentStatus returns the pipeline state of a listing.
func (s *service) EnrichmentStatus(ctx context.Context, listingUID types.ListingUIDType) (*EnrichmentStatus, error) {
	listing, err := s.repository.GetListingByUID(ctx, listingUID)
	if err != nil {
		return nil, err
	}

	status := &EnrichmentStatus{
		ListingUID:  listing.UID,
		Status:      listing.ProcessingStatus,
		Name:        listing.Name,
		Description: listing.Description,
		Cancellable: listing.ProcessingStatus == types.ProcessingStatusProcessing,
	}
	if listing.WorkflowID != nil {
		status.WorkflowID = *listing.WorkflowID
	}
	return status, nil
}

// EnrichmentResult returns the outcome of an enrichment run by workflow ID.
// The run's workflow ID is deterministic per listing, so the listing row
// itself is the durable record of the outcome. A run that hasn't reached a
// terminal status yet is reported as still running.
func (s *service) EnrichmentResult(ctx context.Context, workflowID string) (*EnrichmentResult, error) {
	listingUID, err := worker.ListingUIDFromWorkflowID(workflowID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errorsx.ErrInvalidArgument, err)
	}

	listing, err := s.repository.GetListingByUID(ctx, listingUID)
	if err != nil {
		return nil, err
	}

	result := &EnrichmentResult{
		WorkflowID:  workflowID,
		ListingUID:  listing.UID,
		Status:      listing.ProcessingStatus,
		Name:        listing.Name,
		Description: listing.Description,
	}
	if listing.ProcessingStatus == types.ProcessingStatusFailed {
		result.Error = "Enrichment did not complete. You can start it again."
	}
	return result, nil
}

// GetListing returns a listing with its current (possibly enriched) content.
func (s *service) GetListing(ctx context.Context, listingUID types.ListingUIDType) (*repository.ListingModel, error) {
	return s.repository.GetListingByUID(ctx, listingUID)
}

// RefreshListingEmbedding recomputes the embedding of a listing from its
// current text. Intended for direct edits that bypass the pipeline: the
// similarity index must follow the text, not the enrichment schedule.
func (s *service) RefreshListingEmbedding(ctx context.Context, listingUID types.ListingUIDType) error {
	listing, err := s.repository.GetListingByUID(ctx, listingUID)
	if err != nil {
		return err
	}

	if _, err := s.embedder.RefreshListingEmbedding(ctx, listing); err != nil {
		return fmt.Errorf("refreshing listing embedding: %w", err)
	}
	return nil
}
