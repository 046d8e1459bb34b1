package types

import (
	"github.com/gofrs/uuid"
)

type (
	// ListingUIDType is the unique identifier of a listing.
	ListingUIDType = uuid.UUID
	// OwnerUIDType is the unique identifier of the user owning a listing.
	OwnerUIDType = uuid.UUID
	// ImageUIDType is the unique identifier of a listing image.
	ImageUIDType = uuid.UUID
	// EmbeddingUIDType is the unique identifier of an embedding record.
	EmbeddingUIDType = uuid.UUID
)

// ProcessingStatus is the enrichment pipeline status of a listing.
type ProcessingStatus string

const (
	// ProcessingStatusDraft is the initial status: no pipeline run yet, or
	// intentionally skipped.
	ProcessingStatusDraft ProcessingStatus = "DRAFT"
	// ProcessingStatusProcessing means exactly one active workflow owns the
	// listing.
	ProcessingStatusProcessing ProcessingStatus = "PROCESSING"
	// ProcessingStatusCompleted is terminal: the pipeline finished successfully.
	ProcessingStatusCompleted ProcessingStatus = "COMPLETED"
	// ProcessingStatusFailed is terminal: the pipeline failed, was cancelled or
	// gave up.
	ProcessingStatusFailed ProcessingStatus = "FAILED"
)

// String implements fmt.Stringer.
func (s ProcessingStatus) String() string { return string(s) }

// IsTerminal reports whether the status is a terminal pipeline state.
func (s ProcessingStatus) IsTerminal() bool {
	return s == ProcessingStatusCompleted || s == ProcessingStatusFailed
}

// IsValid reports whether the value is one of the known statuses.
func (s ProcessingStatus) IsValid() bool {
	switch s {
	case ProcessingStatusDraft, ProcessingStatusProcessing,
		ProcessingStatusCompleted, ProcessingStatusFailed:
		return true
	}
	return false
}

// CanStartEnrichment reports whether a new workflow may take ownership of a
// listing in this status. A listing already in PROCESSING is owned by another
// run and must not be re-enrolled.
func (s ProcessingStatus) CanStartEnrichment() bool {
	return s == ProcessingStatusDraft || s.IsTerminal()
}
