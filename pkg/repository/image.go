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
	// ImageTableName is the table name for listing images
	ImageTableName = "image"
)

// Image is the interface for the listing image repository
type Image interface {
	CreateImage(ctx context.Context, image *ImageModel) (*ImageModel, error)
	AppendImage(ctx context.Context, image *ImageModel) (*ImageModel, error)
	GetFirstImage(ctx context.Context, listingUID types.ListingUIDType) (*ImageModel, error)
	ListImagesByListingUID(ctx context.Context, listingUID types.ListingUIDType) ([]ImageModel, error)
	ReorderImages(ctx context.Context, listingUID types.ListingUIDType, orderedUIDs []types.ImageUIDType) error
	DeleteImage(ctx context.Context, imageUID types.ImageUIDType) error
	DeleteImagesByListingUID(ctx context.Context, listingUID types.ListingUIDType) error
}

// ImageModel is the model for the image table
type ImageModel struct {
	UID        types.ImageUIDType   `gorm:"column:uid;type:uuid;primaryKey" json:"uid"`
	ListingUID types.ListingUIDType `gorm:"column:listing_uid;type:uuid;not null" json:"listing_uid"`
	// Position orders the images within a listing. The image at position 0 is
	// the one fed to the content analyzer.
	Position    int        `gorm:"column:position;not null;default:0" json:"position"`
	ObjectPath  string     `gorm:"column:object_path;size:1024;not null" json:"object_path"`
	ContentType string     `gorm:"column:content_type;size:100;not null" json:"content_type"`
	CreateTime  *time.Time `gorm:"column:create_time;not null;autoCreateTime" json:"create_time"`
}

// ImageColumns is the columns for the image table
type ImageColumns struct {
	UID         string
	ListingUID  string
	Position    string
	ObjectPath  string
	ContentType string
	CreateTime  string
}

// ImageColumn is the column for the image table
var ImageColumn = ImageColumns{
	UID:         "uid",
	ListingUID:  "listing_uid",
	Position:    "position",
	ObjectPath:  "object_path",
	ContentType: "content_type",
	CreateTime:  "create_time",
}

// TableName returns the table name of the Image
func (ImageModel) TableName() string {
	return ImageTableName
}

// BeforeCreate assigns a UID when the client didn't provide one.
func (i *ImageModel) BeforeCreate(_ *gorm.DB) error {
	if i.UID == uuid.Nil {
		uid, err := uuid.NewV4()
		if err != nil {
			return err
		}
		i.UID = uid
	}
	return nil
}

// CreateImage inserts a new listing image.
func (r *repository) CreateImage(ctx context.Context, image *ImageModel) (*ImageModel, error) {
	if err := r.db.WithContext(ctx).Create(image).Error; err != nil {
		return nil, fmt.Errorf("creating image: %w", err)
	}
	return image, nil
}

// AppendImage inserts a new listing image at the next free position, keeping
// the listing's ordering dense and zero-based. Callers that want explicit
// positions (with gaps allowed) use CreateImage instead.
func (r *repository) AppendImage(ctx context.Context, image *ImageModel) (*ImageModel, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int
		q := fmt.Sprintf("SELECT COALESCE(MAX(%s) + 1, 0) FROM %s WHERE %s = ?",
			ImageColumn.Position, ImageTableName, ImageColumn.ListingUID)
		if err := tx.Raw(q, image.ListingUID).Scan(&next).Error; err != nil {
			return err
		}
		image.Position = next
		return tx.Create(image).Error
	})
	if err != nil {
		return nil, fmt.Errorf("appending image: %w", err)
	}
	return image, nil
}

// GetFirstImage fetches the first image of a listing by position. It returns
// ErrNoImage when the listing has no images at all.
func (r *repository) GetFirstImage(ctx context.Context, listingUID types.ListingUIDType) (*ImageModel, error) {
	var image ImageModel
	where := fmt.Sprintf("%s = ?", ImageColumn.ListingUID)
	err := r.db.WithContext(ctx).
		Where(where, listingUID).
		Order(ImageColumn.Position + " ASC").
		First(&image).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fetching first image of listing %s: %w", listingUID, errorsx.ErrNoImage)
		}
		return nil, err
	}
	return &image, nil
}

// ListImagesByListingUID fetches the images of a listing ordered by position.
func (r *repository) ListImagesByListingUID(ctx context.Context, listingUID types.ListingUIDType) ([]ImageModel, error) {
	var images []ImageModel
	where := fmt.Sprintf("%s = ?", ImageColumn.ListingUID)
	err := r.db.WithContext(ctx).
		Where(where, listingUID).
		Order(ImageColumn.Position + " ASC").
		Find(&images).Error
	if err != nil {
		return nil, err
	}
	return images, nil
}

// ReorderImages rewrites the positions of a listing's images to a dense
// zero-based sequence following orderedUIDs. The UIDs must cover the listing's
// images exactly.
func (r *repository) ReorderImages(ctx context.Context, listingUID types.ListingUIDType, orderedUIDs []types.ImageUIDType) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var images []ImageModel
		where := fmt.Sprintf("%s = ?", ImageColumn.ListingUID)
		if err := tx.Where(where, listingUID).Find(&images).Error; err != nil {
			return err
		}
		if len(images) != len(orderedUIDs) {
			return fmt.Errorf("reordering images of listing %s: got %d UIDs, listing has %d images: %w",
				listingUID, len(orderedUIDs), len(images), errorsx.ErrInvalidArgument)
		}

		existing := make(map[types.ImageUIDType]struct{}, len(images))
		for _, image := range images {
			existing[image.UID] = struct{}{}
		}

		for position, imageUID := range orderedUIDs {
			if _, ok := existing[imageUID]; !ok {
				return fmt.Errorf("reordering images of listing %s: image %s does not belong to the listing: %w",
					listingUID, imageUID, errorsx.ErrInvalidArgument)
			}
			delete(existing, imageUID)

			err := tx.Model(&ImageModel{}).
				Where(fmt.Sprintf("%s = ?", ImageColumn.UID), imageUID).
				Update(ImageColumn.Position, position).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteImage deletes a single listing image. The remaining positions keep
// their values; gaps are allowed after explicit ordering.
func (r *repository) DeleteImage(ctx context.Context, imageUID types.ImageUIDType) error {
	where := fmt.Sprintf("%s = ?", ImageColumn.UID)
	result := r.db.WithContext(ctx).Where(where, imageUID).Delete(&ImageModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("deleting image %s: %w", imageUID, errorsx.ErrNotFound)
	}
	return nil
}

// DeleteImagesByListingUID deletes all the images associated with a listing.
func (r *repository) DeleteImagesByListingUID(ctx context.Context, listingUID types.ListingUIDType) error {
	where := fmt.Sprintf("%s = ?", ImageColumn.ListingUID)
	return r.db.WithContext(ctx).Where(where, listingUID).Delete(&ImageModel{}).Error
}
