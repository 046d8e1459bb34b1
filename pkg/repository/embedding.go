package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/listhub/listing-backend/pkg/types"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

const (
	// EmbeddingTableName is the table name for embeddings
	EmbeddingTableName = "embedding"
)

// Embedding is the interface for the embedding repository
type Embedding interface {
	UpsertListingEmbedding(ctx context.Context, embedding EmbeddingModel, externalServiceCall func(EmbeddingModel) error) (EmbeddingModel, error)
	GetEmbeddingByListingUID(ctx context.Context, listingUID types.ListingUIDType) (*EmbeddingModel, error)
	HasEmbedding(ctx context.Context, listingUID types.ListingUIDType) (bool, error)
	DeleteEmbeddingByListingUID(ctx context.Context, listingUID types.ListingUIDType) error
}

// EmbeddingModel is the model for the embedding table. A listing has at most
// one embedding, recomputed in place whenever the listing text changes.
type EmbeddingModel struct {
	UID        types.EmbeddingUIDType `gorm:"column:uid;type:uuid;primaryKey" json:"uid"`
	ListingUID types.ListingUIDType   `gorm:"column:listing_uid;type:uuid;not null;uniqueIndex" json:"listing_uid"`
	Vector     Vector                 `gorm:"column:vector;type:jsonb;not null" json:"vector"`
	CreateTime *time.Time             `gorm:"column:create_time;not null;autoCreateTime" json:"create_time"`
	UpdateTime *time.Time             `gorm:"column:update_time;not null;autoUpdateTime" json:"update_time"`
	// OwnerUID is not stored in this table, it travels with the model so the
	// vector database can partition by owner.
	OwnerUID types.OwnerUIDType `gorm:"-" json:"owner_uid"`
}

// Vector is the type for the vector column
type Vector []float32

// Value implements the driver.Valuer interface
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	r, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(r), nil
}

// Scan implements the sql.Scanner interface
func (v *Vector) Scan(value any) error {
	if value == nil {
		*v = nil
		return nil
	}

	switch b := value.(type) {
	case []byte:
		return json.Unmarshal(b, v)
	case string:
		return json.Unmarshal([]byte(b), v)
	default:
		return fmt.Errorf("unsupported vector column type %T", value)
	}
}

// MarshalJSON implements the json.Marshaler interface
func (v Vector) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal([]float32(v))
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (v *Vector) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = nil
		return nil
	}
	var slice []float32
	if err := json.Unmarshal(data, &slice); err != nil {
		return err
	}
	*v = Vector(slice)
	return nil
}

// EmbeddingColumns is the columns for the embedding table
type EmbeddingColumns struct {
	UID        string
	ListingUID string
	Vector     string
	CreateTime string
	UpdateTime string
}

// EmbeddingColumn is the column for the embedding table
var EmbeddingColumn = EmbeddingColumns{
	UID:        "uid",
	ListingUID: "listing_uid",
	Vector:     "vector",
	CreateTime: "create_time",
	UpdateTime: "update_time",
}

// TableName returns the table name of the Embedding
func (EmbeddingModel) TableName() string {
	return EmbeddingTableName
}

// BeforeCreate assigns a UID when the client didn't provide one.
func (e *EmbeddingModel) BeforeCreate(_ *gorm.DB) error {
	if e.UID == uuid.Nil {
		uid, err := uuid.NewV4()
		if err != nil {
			return err
		}
		e.UID = uid
	}
	return nil
}

// UpsertListingEmbedding writes the embedding of a listing, replacing any
// previous vector. A function is passed as an argument as a way to call
// external services (i.e., the vector database) within the upsert transaction:
// when the external call fails the relational write is rolled back, so the two
// stores can't diverge.
func (r *repository) UpsertListingEmbedding(
	ctx context.Context,
	embedding EmbeddingModel,
	externalServiceCall func(EmbeddingModel) error,
) (EmbeddingModel, error) {

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: EmbeddingColumn.ListingUID}},
			DoUpdates: clause.AssignmentColumns([]string{
				EmbeddingColumn.Vector,
				EmbeddingColumn.UpdateTime,
			}),
		}).Create(&embedding).Error
		if err != nil {
			return fmt.Errorf("upserting embedding: %w", err)
		}

		if externalServiceCall != nil {
			if err := externalServiceCall(embedding); err != nil {
				return fmt.Errorf("calling external service: %w", err)
			}
		}

		return nil
	})

	if err != nil {
		return EmbeddingModel{}, fmt.Errorf("transaction failed: %w", err)
	}

	return embedding, nil
}

// GetEmbeddingByListingUID fetches the embedding of a listing.
func (r *repository) GetEmbeddingByListingUID(ctx context.Context, listingUID types.ListingUIDType) (*EmbeddingModel, error) {
	var embedding EmbeddingModel
	where := fmt.Sprintf("%s = ?", EmbeddingColumn.ListingUID)
	if err := r.db.WithContext(ctx).Where(where, listingUID).First(&embedding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fetching embedding of listing %s: %w", listingUID, errorsx.ErrNotFound)
		}
		return nil, err
	}
	return &embedding, nil
}

// HasEmbedding reports whether a listing has a stored embedding.
func (r *repository) HasEmbedding(ctx context.Context, listingUID types.ListingUIDType) (bool, error) {
	var count int64
	where := fmt.Sprintf("%s = ?", EmbeddingColumn.ListingUID)
	err := r.db.WithContext(ctx).
		Model(&EmbeddingModel{}).
		Where(where, listingUID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("counting embeddings of listing %s: %w", listingUID, err)
	}
	return count > 0, nil
}

// DeleteEmbeddingByListingUID deletes the embedding associated with a listing.
func (r *repository) DeleteEmbeddingByListingUID(ctx context.Context, listingUID types.ListingUIDType) error {
	where := fmt.Sprintf("%s = ?", EmbeddingColumn.ListingUID)
	return r.db.WithContext(ctx).Where(where, listingUID).Delete(&EmbeddingModel{}).Error
}
