package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/listhub/listing-backend/pkg/types"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

// EnrichListingWorkflowParam defines the parameters for EnrichListingWorkflow
type EnrichListingWorkflowParam struct {
	ListingUID types.ListingUIDType // Listing unique identifier
	OwnerUID   types.OwnerUIDType   // Listing owner (for notifications)
	// RunUID is the ownership token recorded on the listing row at
	// enrollment. Terminal status writes are guarded by it, so a stale
	// activity of a superseded run can't touch a successor's state.
	RunUID string
}

// enrichListingWorkflowIDPrefix prefixes the deterministic workflow ID of an
// enrichment run.
const enrichListingWorkflowIDPrefix = "enrich-listing-"

// EnrichListingWorkflowID returns the deterministic workflow ID for a listing
// enrichment run. The ID is part of the ownership contract: the listing row
// records it while the run is active, and terminal status writes are guarded
// by it.
func EnrichListingWorkflowID(listingUID types.ListingUIDType) string {
	return enrichListingWorkflowIDPrefix + listingUID.String()
}

// ListingUIDFromWorkflowID is the inverse of EnrichListingWorkflowID.
func ListingUIDFromWorkflowID(workflowID string) (types.ListingUIDType, error) {
	if !strings.HasPrefix(workflowID, enrichListingWorkflowIDPrefix) {
		return uuid.Nil, fmt.Errorf("workflow ID %q is not an enrichment run", workflowID)
	}
	return uuid.FromString(strings.TrimPrefix(workflowID, enrichListingWorkflowIDPrefix))
}

// EnrichmentTrigger starts and cancels enrichment runs from outside the
// worker process.
type EnrichmentTrigger interface {
	Execute(ctx context.Context, param EnrichListingWorkflowParam) error
	Cancel(ctx context.Context, listingUID types.ListingUIDType) error
}

type enrichListingWorkflow struct {
	temporalClient client.Client
	worker         *Worker
}

// NewEnrichListingWorkflow creates a new EnrichListingWorkflow instance
func NewEnrichListingWorkflow(temporalClient client.Client, worker *Worker) EnrichmentTrigger {
	return &enrichListingWorkflow{
		temporalClient: temporalClient,
		worker:         worker,
	}
}

// Execute starts the enrichment workflow for a listing.
func (w *enrichListingWorkflow) Execute(ctx context.Context, param EnrichListingWorkflowParam) error {
	workflowOptions := client.StartWorkflowOptions{
		ID:                    EnrichListingWorkflowID(param.ListingUID),
		TaskQueue:             TaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}

	_, err := w.temporalClient.ExecuteWorkflow(ctx, workflowOptions, w.worker.EnrichListingWorkflow, param)
	return err
}

// Cancel requests cancellation of a running enrichment workflow.
func (w *enrichListingWorkflow) Cancel(ctx context.Context, listingUID types.ListingUIDType) error {
	return w.temporalClient.CancelWorkflow(ctx, EnrichListingWorkflowID(listingUID), "")
}

// EnrichListingWorkflow orchestrates the enrichment pipeline of a listing:
//
//  1. AnalyzeListingActivity: first image → vision model → title/description
//  2. ApplySuggestionsActivity: fill the empty listing fields
//  3. EmbedListingActivity: encode listing text and index it for similarity
//  4. CompleteListingActivity: PROCESSING → COMPLETED
//  5. NotifyEnrichmentActivity: tell the owner (best effort, single attempt)
//
// On any failure (or cancellation) the listing is transitioned to FAILED and
// the owner is notified. Data written by earlier steps is deliberately kept:
// a partially enriched listing is better than discarding the applied
// suggestions, and every step is idempotent so the next run converges.
func (w *Worker) EnrichListingWorkflow(ctx workflow.Context, param EnrichListingWorkflowParam) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting EnrichListingWorkflow",
		"listingUID", param.ListingUID.String(),
		"ownerUID", param.OwnerUID.String())

	completed := false

	// Defer cleanup: if the workflow is cancelled, terminated or times out,
	// release the listing as FAILED so it doesn't stay stuck in PROCESSING.
	// Use disconnected context so this runs even if workflow is cancelled.
	defer func() {
		if completed {
			return
		}
		cleanupCtx, _ := workflow.NewDisconnectedContext(ctx)
		cleanupCtx = workflow.WithActivityOptions(cleanupCtx, workflow.ActivityOptions{
			StartToCloseTimeout: time.Minute,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    RetryInitialInterval,
				BackoffCoefficient: RetryBackoffCoefficient,
				MaximumInterval:    RetryMaximumIntervalStandard,
				MaximumAttempts:    RetryMaximumAttempts,
			},
		})

		logger.Warn("Workflow did not complete successfully, marking listing as FAILED")

		// Best effort update - ignore errors
		_ = workflow.ExecuteActivity(cleanupCtx, w.FailListingActivity, &FailListingActivityParam{
			ListingUID: param.ListingUID,
			RunUID:     param.RunUID,
			Message:    "Enrichment was interrupted or cancelled before completion",
		}).Get(cleanupCtx, nil)

		notifyCtx := workflow.WithActivityOptions(cleanupCtx, workflow.ActivityOptions{
			StartToCloseTimeout: time.Minute,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
		})
		_ = workflow.ExecuteActivity(notifyCtx, w.NotifyEnrichmentActivity, &NotifyEnrichmentActivityParam{
			ListingUID: param.ListingUID,
			OwnerUID:   param.OwnerUID,
			Status:     types.ProcessingStatusFailed,
			Message:    "Enrichment was interrupted or cancelled before completion",
		}).Get(notifyCtx, nil)
	}()

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: ActivityTimeoutLong,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    RetryInitialInterval,
			BackoffCoefficient: RetryBackoffCoefficient,
			MaximumInterval:    RetryMaximumIntervalLong,
			MaximumAttempts:    RetryMaximumAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// handleError transitions the listing to FAILED, notifies the owner and
	// returns the error that fails the workflow in Temporal. The workflow
	// context may already be cancelled when an activity error lands here, so
	// both activities run on a disconnected context.
	handleError := func(stage string, err error) error {
		logger.Error("Failed at stage", "stage", stage, "listingUID", param.ListingUID.String(), "error", err)

		errMsg := errorsx.MessageOrErr(err)
		failMsg := fmt.Sprintf("%s: %s", stage, errMsg)

		failCtx, _ := workflow.NewDisconnectedContext(ctx)
		failCtx = workflow.WithActivityOptions(failCtx, workflow.ActivityOptions{
			StartToCloseTimeout: time.Minute,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    RetryInitialInterval,
				BackoffCoefficient: RetryBackoffCoefficient,
				MaximumInterval:    RetryMaximumIntervalStandard,
				MaximumAttempts:    RetryMaximumAttempts,
			},
		})

		statusErr := workflow.ExecuteActivity(failCtx, w.FailListingActivity, &FailListingActivityParam{
			ListingUID: param.ListingUID,
			RunUID:     param.RunUID,
			Message:    failMsg,
		}).Get(failCtx, nil)
		if statusErr != nil {
			// Leave completed unset: the deferred cleanup gets another shot at
			// the terminal write.
			logger.Error("Failed to update listing status to FAILED", "listingUID", param.ListingUID.String(), "statusError", statusErr)
		} else {
			completed = true
		}

		notifyCtx := workflow.WithActivityOptions(failCtx, workflow.ActivityOptions{
			StartToCloseTimeout: time.Minute,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
		})
		if notifyErr := workflow.ExecuteActivity(notifyCtx, w.NotifyEnrichmentActivity, &NotifyEnrichmentActivityParam{
			ListingUID: param.ListingUID,
			OwnerUID:   param.OwnerUID,
			Status:     types.ProcessingStatusFailed,
			Message:    failMsg,
		}).Get(notifyCtx, nil); notifyErr != nil {
			logger.Warn("Failed to notify enrichment failure", "error", notifyErr)
		}

		return errorsx.AddMessage(
			fmt.Errorf("%s: %s", stage, errMsg),
			fmt.Sprintf("Listing %s enrichment failed at %s stage. %s", param.ListingUID.String(), stage, errMsg),
		)
	}

	// Step 1: Fetch the listing. Aborts early when it was deleted between
	// enrollment and execution.
	var listing GetListingActivityResult
	if err := workflow.ExecuteActivity(ctx, w.GetListingActivity, &GetListingActivityParam{
		ListingUID: param.ListingUID,
	}).Get(ctx, &listing); err != nil {
		return handleError("get listing", err)
	}

	// Step 2: Analyze the first image.
	var suggestion AnalyzeListingActivityResult
	if err := workflow.ExecuteActivity(ctx, w.AnalyzeListingActivity, &AnalyzeListingActivityParam{
		ListingUID: param.ListingUID,
	}).Get(ctx, &suggestion); err != nil {
		return handleError("analyze image", err)
	}

	// Step 3: Apply the suggestions to the empty listing fields.
	if err := workflow.ExecuteActivity(ctx, w.ApplySuggestionsActivity, &ApplySuggestionsActivityParam{
		ListingUID:  param.ListingUID,
		Title:       suggestion.Title,
		Description: suggestion.Description,
	}).Get(ctx, nil); err != nil {
		return handleError("apply suggestions", err)
	}

	// Step 4: Embed the enriched listing text and index it.
	var embedResult EmbedListingActivityResult
	if err := workflow.ExecuteActivity(ctx, w.EmbedListingActivity, &EmbedListingActivityParam{
		ListingUID: param.ListingUID,
	}).Get(ctx, &embedResult); err != nil {
		return handleError("embed listing", err)
	}

	// Step 5: Mark the listing COMPLETED.
	if err := workflow.ExecuteActivity(ctx, w.CompleteListingActivity, &CompleteListingActivityParam{
		ListingUID: param.ListingUID,
		RunUID:     param.RunUID,
	}).Get(ctx, nil); err != nil {
		return handleError("complete listing", err)
	}

	completed = true

	// Step 6: Notify the owner. A single attempt, and failure doesn't fail
	// the workflow: the listing status is already terminal.
	notifyCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	if err := workflow.ExecuteActivity(notifyCtx, w.NotifyEnrichmentActivity, &NotifyEnrichmentActivityParam{
		ListingUID:           param.ListingUID,
		OwnerUID:             param.OwnerUID,
		Status:               types.ProcessingStatusCompleted,
		Message:              "Your listing has been enriched and published.",
		SuggestedTitle:       suggestion.Title,
		SuggestedDescription: suggestion.Description,
	}).Get(notifyCtx, nil); err != nil {
		logger.Warn("Failed to notify enrichment completion", "error", err)
	}

	logger.Info("EnrichListingWorkflow completed", "listingUID", param.ListingUID.String())
	return nil
}
