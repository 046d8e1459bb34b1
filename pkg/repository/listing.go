package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/listhub/listing-backend/pkg/types"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

const (
	// ListingTableName is the table name for listings
	ListingTableName = "listing"
)

// Listing is the interface for the listing repository
type Listing interface {
	CreateListing(ctx context.Context, listing *ListingModel) (*ListingModel, error)
	GetListingByUID(ctx context.Context, uid types.ListingUIDType) (*ListingModel, error)
	ListListingsByOwner(ctx context.Context, ownerUID types.OwnerUIDType) ([]ListingModel, error)
	ListListingsByUIDs(ctx context.Context, uids []types.ListingUIDType) ([]ListingModel, error)
	MarkListingProcessing(ctx context.Context, uid types.ListingUIDType, workflowID, runUID string) error
	MarkListingTerminal(ctx context.Context, uid types.ListingUIDType, runUID string, status types.ProcessingStatus) error
	SweepListingTerminal(ctx context.Context, uid types.ListingUIDType, status types.ProcessingStatus) error
	ApplyListingSuggestions(ctx context.Context, uid types.ListingUIDType, title, description string) error
	ListStuckProcessingListings(ctx context.Context, updatedBefore time.Time) ([]ListingModel, error)
}

// ListingModel is the model for the listing table
type ListingModel struct {
	UID              types.ListingUIDType   `gorm:"column:uid;type:uuid;primaryKey" json:"uid"`
	OwnerUID         types.OwnerUIDType     `gorm:"column:owner_uid;type:uuid;not null" json:"owner_uid"`
	Name             string                 `gorm:"column:name;size:255;not null" json:"name"`
	Description      string                 `gorm:"column:description;not null" json:"description"`
	Category         string                 `gorm:"column:category;size:255;not null" json:"category"`
	Price            *float64               `gorm:"column:price" json:"price"`
	ProcessingStatus types.ProcessingStatus `gorm:"column:processing_status;size:20;not null;default:DRAFT" json:"processing_status"`
	// WorkflowID is the identifier of the workflow currently owning the
	// listing. It is NULL whenever the listing isn't in PROCESSING.
	WorkflowID *string `gorm:"column:workflow_id;size:255" json:"workflow_id"`
	// WorkflowRunUID is the per-run ownership token. The workflow ID is
	// deterministic per listing and repeats across runs; the token does not,
	// so terminal writes guarded by it can't cross run boundaries.
	WorkflowRunUID *string    `gorm:"column:workflow_run_uid;size:36" json:"-"`
	CreateTime *time.Time `gorm:"column:create_time;not null;autoCreateTime" json:"create_time"`
	UpdateTime *time.Time `gorm:"column:update_time;not null;autoUpdateTime" json:"update_time"`
}

// ListingColumns is the columns for the listing table
type ListingColumns struct {
	UID              string
	OwnerUID         string
	Name             string
	Description      string
	Category         string
	Price            string
	ProcessingStatus string
	WorkflowID       string
	WorkflowRunUID   string
	CreateTime       string
	UpdateTime       string
}

// ListingColumn is the column for the listing table
var ListingColumn = ListingColumns{
	UID:              "uid",
	OwnerUID:         "owner_uid",
	Name:             "name",
	Description:      "description",
	Category:         "category",
	Price:            "price",
	ProcessingStatus: "processing_status",
	WorkflowID:       "workflow_id",
	WorkflowRunUID:   "workflow_run_uid",
	CreateTime:       "create_time",
	UpdateTime:       "update_time",
}

// TableName returns the table name of the Listing
func (ListingModel) TableName() string {
	return ListingTableName
}

// BeforeCreate assigns a UID when the client didn't provide one.
func (l *ListingModel) BeforeCreate(_ *gorm.DB) error {
	if l.UID == uuid.Nil {
		uid, err := uuid.NewV4()
		if err != nil {
			return err
		}
		l.UID = uid
	}
	return nil
}

// CreateListing inserts a new listing.
func (r *repository) CreateListing(ctx context.Context, listing *ListingModel) (*ListingModel, error) {
	if listing.ProcessingStatus == "" {
		listing.ProcessingStatus = types.ProcessingStatusDraft
	}
	if err := r.db.WithContext(ctx).Create(listing).Error; err != nil {
		return nil, fmt.Errorf("creating listing: %w", err)
	}
	return listing, nil
}

// GetListingByUID fetches a listing by its UID.
func (r *repository) GetListingByUID(ctx context.Context, uid types.ListingUIDType) (*ListingModel, error) {
	var listing ListingModel
	where := fmt.Sprintf("%s = ?", ListingColumn.UID)
	if err := r.db.WithContext(ctx).Where(where, uid).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fetching listing %s: %w", uid, errorsx.ErrNotFound)
		}
		return nil, err
	}
	return &listing, nil
}

// ListListingsByOwner fetches the listings of an owner, newest first.
func (r *repository) ListListingsByOwner(ctx context.Context, ownerUID types.OwnerUIDType) ([]ListingModel, error) {
	var listings []ListingModel
	where := fmt.Sprintf("%s = ?", ListingColumn.OwnerUID)
	err := r.db.WithContext(ctx).
		Where(where, ownerUID).
		Order(ListingColumn.CreateTime + " DESC").
		Find(&listings).Error
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// ListListingsByUIDs fetches a set of listings by their UIDs. Missing UIDs are
// silently skipped.
func (r *repository) ListListingsByUIDs(ctx context.Context, uids []types.ListingUIDType) ([]ListingModel, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	var listings []ListingModel
	where := fmt.Sprintf("%s IN ?", ListingColumn.UID)
	if err := r.db.WithContext(ctx).Where(where, uids).Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

// MarkListingProcessing transitions a listing to PROCESSING and records the
// owning workflow plus its per-run token. The transition is a single
// conditional UPDATE so that two concurrent enrichment requests can't both
// take ownership: it only succeeds when no other workflow owns the listing
// and the current status allows a new run.
func (r *repository) MarkListingProcessing(ctx context.Context, uid types.ListingUIDType, workflowID, runUID string) error {
	result := r.db.WithContext(ctx).
		Model(&ListingModel{}).
		Where(fmt.Sprintf("%s = ?", ListingColumn.UID), uid).
		Where(fmt.Sprintf("%s IS NULL", ListingColumn.WorkflowID)).
		Where(fmt.Sprintf("%s IN ?", ListingColumn.ProcessingStatus), []types.ProcessingStatus{
			types.ProcessingStatusDraft,
			types.ProcessingStatusCompleted,
			types.ProcessingStatusFailed,
		}).
		Updates(map[string]any{
			ListingColumn.ProcessingStatus: types.ProcessingStatusProcessing,
			ListingColumn.WorkflowID:       workflowID,
			ListingColumn.WorkflowRunUID:   runUID,
			ListingColumn.UpdateTime:       time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("marking listing %s as processing: %w", uid, result.Error)
	}
	if result.RowsAffected == 0 {
		// Either the listing doesn't exist or another workflow owns it.
		if _, err := r.GetListingByUID(ctx, uid); err != nil {
			return err
		}
		return fmt.Errorf("marking listing %s as processing: %w", uid, errorsx.ErrAlreadyProcessing)
	}
	return nil
}

// MarkListingTerminal transitions a listing from PROCESSING to a terminal
// status and releases the workflow ownership. The update is guarded by the
// per-run token, not the workflow ID: the ID is deterministic per listing and
// repeats across runs, so a stale activity of a superseded or swept run could
// otherwise clobber the status of a freshly re-triggered one.
func (r *repository) MarkListingTerminal(ctx context.Context, uid types.ListingUIDType, runUID string, status types.ProcessingStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %s is not terminal: %w", status, errorsx.ErrInvalidTransition)
	}
	result := r.db.WithContext(ctx).
		Model(&ListingModel{}).
		Where(fmt.Sprintf("%s = ?", ListingColumn.UID), uid).
		Where(fmt.Sprintf("%s = ?", ListingColumn.ProcessingStatus), types.ProcessingStatusProcessing).
		Where(fmt.Sprintf("%s = ?", ListingColumn.WorkflowRunUID), runUID).
		Updates(map[string]any{
			ListingColumn.ProcessingStatus: status,
			ListingColumn.WorkflowID:       nil,
			ListingColumn.WorkflowRunUID:   nil,
			ListingColumn.UpdateTime:       time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("marking listing %s as %s: %w", uid, status, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("marking listing %s as %s: %w", uid, status, errorsx.ErrInvalidTransition)
	}
	return nil
}

// SweepListingTerminal transitions a stuck PROCESSING listing to a terminal
// status regardless of the workflow that owns it. Only the reconciliation job
// should use this: it has already determined that the owning workflow is gone.
func (r *repository) SweepListingTerminal(ctx context.Context, uid types.ListingUIDType, status types.ProcessingStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %s is not terminal: %w", status, errorsx.ErrInvalidTransition)
	}
	result := r.db.WithContext(ctx).
		Model(&ListingModel{}).
		Where(fmt.Sprintf("%s = ?", ListingColumn.UID), uid).
		Where(fmt.Sprintf("%s = ?", ListingColumn.ProcessingStatus), types.ProcessingStatusProcessing).
		Updates(map[string]any{
			ListingColumn.ProcessingStatus: status,
			ListingColumn.WorkflowID:       nil,
			ListingColumn.WorkflowRunUID:   nil,
			ListingColumn.UpdateTime:       time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("sweeping listing %s to %s: %w", uid, status, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("sweeping listing %s to %s: %w", uid, status, errorsx.ErrInvalidTransition)
	}
	return nil
}

// ApplyListingSuggestions fills the listing's name and description with the
// AI-generated suggestions. Fields the seller already filled in are left
// untouched, so the suggestions never overwrite human input.
func (r *repository) ApplyListingSuggestions(ctx context.Context, uid types.ListingUIDType, title, description string) error {
	if title != "" {
		err := r.db.WithContext(ctx).
			Model(&ListingModel{}).
			Where(fmt.Sprintf("%s = ?", ListingColumn.UID), uid).
			Where(fmt.Sprintf("%s = ''", ListingColumn.Name)).
			Update(ListingColumn.Name, title).Error
		if err != nil {
			return fmt.Errorf("applying title suggestion to listing %s: %w", uid, err)
		}
	}
	if description != "" {
		err := r.db.WithContext(ctx).
			Model(&ListingModel{}).
			Where(fmt.Sprintf("%s = ?", ListingColumn.UID), uid).
			Where(fmt.Sprintf("%s = ''", ListingColumn.Description)).
			Update(ListingColumn.Description, description).Error
		if err != nil {
			return fmt.Errorf("applying description suggestion to listing %s: %w", uid, err)
		}
	}
	return nil
}

// ListStuckProcessingListings fetches listings that have been in PROCESSING
// without any update since the given time. These are candidates for
// reconciliation: their workflow most likely died without reaching a terminal
// activity.
func (r *repository) ListStuckProcessingListings(ctx context.Context, updatedBefore time.Time) ([]ListingModel, error) {
	var listings []ListingModel
	err := r.db.WithContext(ctx).
		Where(fmt.Sprintf("%s = ?", ListingColumn.ProcessingStatus), types.ProcessingStatusProcessing).
		Where(fmt.Sprintf("%s < ?", ListingColumn.UpdateTime), updatedBefore).
		Order(ListingColumn.UpdateTime + " ASC").
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("listing stuck listings: %w", err)
	}
	return listings, nil
}
