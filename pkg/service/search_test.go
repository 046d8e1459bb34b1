package service

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"

	qt "github.com/frankban/quicktest"

	"github.com/listhub/listing-backend/pkg/repository"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

func TestFindSimilar_EmptyQuery(t *testing.T) {
	c := qt.New(t)
	svc, _ := newTestService(t)

	for _, query := range []string{"", "   "} {
		_, err := svc.FindSimilar(context.Background(), query, 10)
		c.Check(err, qt.ErrorIs, errorsx.ErrInvalidArgument)
	}
}

func TestFindSimilar_PreservesDistanceOrder(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	svc, deps := newTestService(t)

	closest := seedListing(c, deps, false)
	further := seedListing(c, deps, false)
	deleted := uuid.Must(uuid.NewV4()) // indexed but no longer in the relational store

	deps.vectorDB.searchResults = []repository.SimilarListingVector{
		{ListingVector: repository.ListingVector{ListingUID: closest.UID}, Distance: 0.1},
		{ListingVector: repository.ListingVector{ListingUID: deleted}, Distance: 0.2},
		{ListingVector: repository.ListingVector{ListingUID: further.UID}, Distance: 0.4},
	}

	results, err := svc.FindSimilar(ctx, "vintage camera", 10)
	c.Assert(err, qt.IsNil)

	// The stale match is dropped, the distance order is preserved.
	c.Assert(results, qt.HasLen, 2)
	c.Check(results[0].Listing.UID, qt.Equals, closest.UID)
	c.Check(results[0].Distance, qt.Equals, float32(0.1))
	c.Check(results[1].Listing.UID, qt.Equals, further.UID)
	c.Check(results[1].Distance, qt.Equals, float32(0.4))
}

func TestFindSimilar_ClampsTopK(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	svc, deps := newTestService(t)

	_, err := svc.FindSimilar(ctx, "vintage camera", 0)
	c.Assert(err, qt.IsNil)
	c.Check(deps.vectorDB.lastSearch.TopK, qt.Equals, uint32(defaultTopK))

	_, err = svc.FindSimilar(ctx, "vintage camera", 5000)
	c.Assert(err, qt.IsNil)
	c.Check(deps.vectorDB.lastSearch.TopK, qt.Equals, uint32(maxTopK))
}

func TestSimilarToListing(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	svc, deps := newTestService(t)

	listing := seedListing(c, deps, false)

	// No embedding yet: the listing has no position in the similarity space.
	_, err := svc.SimilarToListing(ctx, listing.UID, 10)
	c.Check(err, qt.ErrorIs, errorsx.ErrNotFound)

	c.Assert(svc.RefreshListingEmbedding(ctx, listing.UID), qt.IsNil)

	results, err := svc.SimilarToListing(ctx, listing.UID, 10)
	c.Assert(err, qt.IsNil)
	c.Check(results, qt.HasLen, 0)

	// The query listing itself is excluded from the search.
	c.Check(deps.vectorDB.lastSearch.ExcludeListingUID, qt.Equals, listing.UID)
	c.Check(deps.vectorDB.lastSearch.Vector, qt.HasLen, testVectorDimension)
}
