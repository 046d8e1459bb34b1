package worker

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/listhub/listing-backend/pkg/notifier"
	"github.com/listhub/listing-backend/pkg/types"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

// SweeperWorkflowID is the fixed workflow ID of the reconciliation singleton.
// Using a fixed ID guarantees at most one sweeper per namespace.
const SweeperWorkflowID = "stuck-listing-sweeper"

// sweepsPerRun bounds the history length of a single workflow run before it
// continues as new.
const sweepsPerRun = 60

// SweepStuckListingsWorkflowParam defines the parameters for SweepStuckListingsWorkflow
type SweepStuckListingsWorkflowParam struct {
	Interval     time.Duration // Time between sweep passes
	StaleTimeout time.Duration // PROCESSING age after which a listing is considered stuck
}

// SweeperTrigger starts the reconciliation singleton.
type SweeperTrigger interface {
	Execute(ctx context.Context, param SweepStuckListingsWorkflowParam) error
}

type sweepStuckListingsWorkflow struct {
	temporalClient client.Client
	worker         *Worker
}

// NewSweepStuckListingsWorkflow creates a new SweepStuckListingsWorkflow instance
func NewSweepStuckListingsWorkflow(temporalClient client.Client, worker *Worker) SweeperTrigger {
	return &sweepStuckListingsWorkflow{
		temporalClient: temporalClient,
		worker:         worker,
	}
}

// Execute starts the sweeper singleton. Starting it when it's already running
// is a no-op.
func (w *sweepStuckListingsWorkflow) Execute(ctx context.Context, param SweepStuckListingsWorkflowParam) error {
	workflowOptions := client.StartWorkflowOptions{
		ID:                    SweeperWorkflowID,
		TaskQueue:             TaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}

	_, err := w.temporalClient.ExecuteWorkflow(ctx, workflowOptions, w.worker.SweepStuckListingsWorkflow, param)
	if err != nil {
		// The singleton is already running, which is the desired state.
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			return nil
		}
		return err
	}
	return nil
}

// SweepStuckListingsWorkflow periodically reconciles listings stuck in
// PROCESSING. A listing whose workflow died before reaching a terminal
// activity would otherwise stay PROCESSING forever and refuse new enrichment
// runs. The workflow continues as new after a bounded number of passes to
// keep its event history short.
func (w *Worker) SweepStuckListingsWorkflow(ctx workflow.Context, param SweepStuckListingsWorkflowParam) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting SweepStuckListingsWorkflow",
		"interval", param.Interval.String(),
		"staleTimeout", param.StaleTimeout.String())

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: ActivityTimeoutStandard,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    RetryInitialInterval,
			BackoffCoefficient: RetryBackoffCoefficient,
			MaximumInterval:    RetryMaximumIntervalStandard,
			MaximumAttempts:    RetryMaximumAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	for i := 0; i < sweepsPerRun; i++ {
		if err := workflow.Sleep(ctx, param.Interval); err != nil {
			// The workflow was cancelled. Stop sweeping.
			return err
		}

		var result SweepStuckListingsActivityResult
		err := workflow.ExecuteActivity(ctx, w.SweepStuckListingsActivity, &SweepStuckListingsActivityParam{
			StaleTimeout: param.StaleTimeout,
		}).Get(ctx, &result)
		if err != nil {
			// Log and keep sweeping: the next pass will pick the same
			// listings up again.
			logger.Error("Sweep pass failed", "error", err)
			continue
		}

		if result.Completed+result.Failed > 0 {
			logger.Info("Sweep pass resolved stuck listings",
				"completed", result.Completed,
				"failed", result.Failed)
		}
	}

	return workflow.NewContinueAsNewError(ctx, w.SweepStuckListingsWorkflow, param)
}

// SweepStuckListingsActivityParam defines the parameters for the SweepStuckListingsActivity
type SweepStuckListingsActivityParam struct {
	StaleTimeout time.Duration // PROCESSING age after which a listing is considered stuck
}

// SweepStuckListingsActivityResult reports how many listings were resolved.
type SweepStuckListingsActivityResult struct {
	Completed int
	Failed    int
}

// SweepStuckListingsActivity resolves listings stuck in PROCESSING. A stuck
// listing whose embedding was stored made it through the essential part of
// the pipeline, so it is promoted to COMPLETED; one without an embedding is
// marked FAILED and can be re-enrolled.
func (w *Worker) SweepStuckListingsActivity(ctx context.Context, param *SweepStuckListingsActivityParam) (*SweepStuckListingsActivityResult, error) {
	updatedBefore := time.Now().UTC().Add(-param.StaleTimeout)

	stuck, err := w.repository.ListStuckProcessingListings(ctx, updatedBefore)
	if err != nil {
		err = errorsx.AddMessage(err, "Unable to list stuck listings.")
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			sweepStuckListingsActivityError,
			err,
		)
	}

	result := &SweepStuckListingsActivityResult{}
	for _, listing := range stuck {
		hasEmbedding, err := w.repository.HasEmbedding(ctx, listing.UID)
		if err != nil {
			w.log.Error("Failed to check embedding of stuck listing",
				zap.String("listingUID", listing.UID.String()), zap.Error(err))
			continue
		}

		status := types.ProcessingStatusFailed
		message := "Enrichment did not finish and was marked as failed. You can start it again."
		if hasEmbedding {
			status = types.ProcessingStatusCompleted
			message = "Your listing has been enriched and published."
		}

		if err := w.repository.SweepListingTerminal(ctx, listing.UID, status); err != nil {
			// A concurrent update (e.g. the workflow finally reporting in) is
			// fine, the listing reached a terminal state either way.
			w.log.Warn("Failed to sweep stuck listing",
				zap.String("listingUID", listing.UID.String()), zap.Error(err))
			continue
		}

		w.log.Info("Swept stuck listing",
			zap.String("listingUID", listing.UID.String()),
			zap.String("status", status.String()))

		// Best effort notification, same contract as the workflow's.
		if err := w.notifier.PublishEnrichmentEvent(ctx, notifier.EnrichmentEvent{
			ListingUID: listing.UID,
			OwnerUID:   listing.OwnerUID,
			Status:     status,
			Message:    message,
		}); err != nil {
			w.log.Warn("Failed to notify swept listing outcome",
				zap.String("listingUID", listing.UID.String()), zap.Error(err))
		}

		switch status {
		case types.ProcessingStatusCompleted:
			result.Completed++
		case types.ProcessingStatusFailed:
			result.Failed++
		}
	}

	return result, nil
}

const sweepStuckListingsActivityError = "SweepStuckListingsActivity"
