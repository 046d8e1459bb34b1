package repository

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"

	qt "github.com/frankban/quicktest"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

func TestGetFirstImage(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	listingUID := uuid.Must(uuid.NewV4())

	// Insert out of order to make sure position drives the choice.
	_, err := repo.CreateImage(ctx, &ImageModel{
		ListingUID:  listingUID,
		Position:    1,
		ObjectPath:  "listings/img-back.jpg",
		ContentType: "image/jpeg",
	})
	c.Assert(err, qt.IsNil)
	_, err = repo.CreateImage(ctx, &ImageModel{
		ListingUID:  listingUID,
		Position:    0,
		ObjectPath:  "listings/img-front.jpg",
		ContentType: "image/jpeg",
	})
	c.Assert(err, qt.IsNil)

	first, err := repo.GetFirstImage(ctx, listingUID)
	c.Assert(err, qt.IsNil)
	c.Check(first.ObjectPath, qt.Equals, "listings/img-front.jpg")
}

func TestGetFirstImage_NoImage(t *testing.T) {
	c := qt.New(t)
	repo, _ := newTestRepository(t)

	_, err := repo.GetFirstImage(context.Background(), uuid.Must(uuid.NewV4()))
	c.Check(err, qt.ErrorIs, errorsx.ErrNoImage)
}

func TestAppendImage(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	listingUID := uuid.Must(uuid.NewV4())
	for i := 0; i < 3; i++ {
		img, err := repo.AppendImage(ctx, &ImageModel{
			ListingUID:  listingUID,
			ObjectPath:  "listings/img.jpg",
			ContentType: "image/jpeg",
		})
		c.Assert(err, qt.IsNil)
		c.Check(img.Position, qt.Equals, i)
	}

	// Appending after an explicit gap continues from the highest position.
	_, err := repo.CreateImage(ctx, &ImageModel{
		ListingUID:  listingUID,
		Position:    10,
		ObjectPath:  "listings/img.jpg",
		ContentType: "image/jpeg",
	})
	c.Assert(err, qt.IsNil)

	img, err := repo.AppendImage(ctx, &ImageModel{
		ListingUID:  listingUID,
		ObjectPath:  "listings/img.jpg",
		ContentType: "image/jpeg",
	})
	c.Assert(err, qt.IsNil)
	c.Check(img.Position, qt.Equals, 11)
}

func TestReorderImages(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	listingUID := uuid.Must(uuid.NewV4())
	var uids []uuid.UUID
	for i := 0; i < 3; i++ {
		img, err := repo.AppendImage(ctx, &ImageModel{
			ListingUID:  listingUID,
			ObjectPath:  "listings/img.jpg",
			ContentType: "image/jpeg",
		})
		c.Assert(err, qt.IsNil)
		uids = append(uids, img.UID)
	}

	// Reverse the ordering.
	err := repo.ReorderImages(ctx, listingUID, []uuid.UUID{uids[2], uids[1], uids[0]})
	c.Assert(err, qt.IsNil)

	images, err := repo.ListImagesByListingUID(ctx, listingUID)
	c.Assert(err, qt.IsNil)
	c.Assert(images, qt.HasLen, 3)
	c.Check(images[0].UID, qt.Equals, uids[2])
	c.Check(images[1].UID, qt.Equals, uids[1])
	c.Check(images[2].UID, qt.Equals, uids[0])

	// An incomplete or foreign UID set is rejected.
	err = repo.ReorderImages(ctx, listingUID, []uuid.UUID{uids[0]})
	c.Check(err, qt.ErrorIs, errorsx.ErrInvalidArgument)
	err = repo.ReorderImages(ctx, listingUID, []uuid.UUID{uids[0], uids[1], uuid.Must(uuid.NewV4())})
	c.Check(err, qt.ErrorIs, errorsx.ErrInvalidArgument)
}

func TestDeleteImage(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	listingUID := uuid.Must(uuid.NewV4())
	img, err := repo.AppendImage(ctx, &ImageModel{
		ListingUID:  listingUID,
		ObjectPath:  "listings/img.jpg",
		ContentType: "image/jpeg",
	})
	c.Assert(err, qt.IsNil)

	c.Assert(repo.DeleteImage(ctx, img.UID), qt.IsNil)
	c.Check(repo.DeleteImage(ctx, img.UID), qt.ErrorIs, errorsx.ErrNotFound)
}

func TestListImagesByListingUID(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	listingUID := uuid.Must(uuid.NewV4())
	for i := 2; i >= 0; i-- {
		_, err := repo.CreateImage(ctx, &ImageModel{
			ListingUID:  listingUID,
			Position:    i,
			ObjectPath:  "listings/img.jpg",
			ContentType: "image/png",
		})
		c.Assert(err, qt.IsNil)
	}

	images, err := repo.ListImagesByListingUID(ctx, listingUID)
	c.Assert(err, qt.IsNil)
	c.Assert(images, qt.HasLen, 3)
	for i, img := range images {
		c.Check(img.Position, qt.Equals, i)
	}

	c.Assert(repo.DeleteImagesByListingUID(ctx, listingUID), qt.IsNil)
	images, err = repo.ListImagesByListingUID(ctx, listingUID)
	c.Assert(err, qt.IsNil)
	c.Check(images, qt.HasLen, 0)
}
